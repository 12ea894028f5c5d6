package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/operator-board/internal/roster"
)

const (
	TeamCount = 5
	SlotCount = 4

	// StorageKey is the key the persisted form lives under.
	StorageKey = "operatorTeams"
)

var ErrIndex = errors.New("team/slot index out of range")
var ErrInvalidField = errors.New("invalid equipment field")
var ErrDeserialize = errors.New("unreadable team state")
var ErrPersist = errors.New("persist team state")

type Field string

const (
	FieldArmor  Field = "armor"
	FieldGloves Field = "gloves"
	FieldKit1   Field = "kit1"
	FieldKit2   Field = "kit2"
)

var Fields = []Field{FieldArmor, FieldGloves, FieldKit1, FieldKit2}

func ParseField(s string) (Field, error) {
	for _, f := range Fields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidField, s)
}

// OperatorRef is a copy of an operator taken at assignment time. Later
// roster changes never reach it.
type OperatorRef struct {
	Name      string `json:"name"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

func RefOf(op roster.Operator) OperatorRef {
	return OperatorRef{Name: op.Name, Primary: op.Primary, Secondary: op.Secondary}
}

type Equipment struct {
	Armor  string `json:"armor"`
	Gloves string `json:"gloves"`
	Kit1   string `json:"kit1"`
	Kit2   string `json:"kit2"`
}

func (e Equipment) Get(f Field) (string, error) {
	switch f {
	case FieldArmor:
		return e.Armor, nil
	case FieldGloves:
		return e.Gloves, nil
	case FieldKit1:
		return e.Kit1, nil
	case FieldKit2:
		return e.Kit2, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidField, f)
}

func (e *Equipment) set(f Field, v string) error {
	switch f {
	case FieldArmor:
		e.Armor = v
	case FieldGloves:
		e.Gloves = v
	case FieldKit1:
		e.Kit1 = v
	case FieldKit2:
		e.Kit2 = v
	default:
		return fmt.Errorf("%w: %q", ErrInvalidField, f)
	}
	return nil
}

type Slot struct {
	Operator  *OperatorRef `json:"operator"`
	Equipment Equipment    `json:"equipment"`
}

func (s Slot) Empty() bool { return s.Operator == nil }

func (s Slot) clone() Slot {
	if s.Operator != nil {
		op := *s.Operator
		s.Operator = &op
	}
	return s
}

// Teams is the fixed 5x4 grid. Arrays keep the shape fixed.
type Teams [TeamCount][SlotCount]Slot

func (t Teams) clone() Teams {
	var out Teams
	for i := range t {
		for j := range t[i] {
			out[i][j] = t[i][j].clone()
		}
	}
	return out
}

// Saver is the persistence boundary. It receives the full serialized board
// after every mutation.
type Saver interface {
	Save(ctx context.Context, data []byte) error
}

type SaverFunc func(ctx context.Context, data []byte) error

func (f SaverFunc) Save(ctx context.Context, data []byte) error { return f(ctx, data) }

// Board is not safe for concurrent use; one owner applies every mutation.
type Board struct {
	teams Teams
	saver Saver
}

// New returns an empty board. A nil saver disables persistence.
func New(saver Saver) *Board {
	return &Board{saver: saver}
}

func CheckIndex(team, slot int) error {
	if team < 0 || team >= TeamCount || slot < 0 || slot >= SlotCount {
		return fmt.Errorf("%w: team=%d slot=%d", ErrIndex, team, slot)
	}
	return nil
}

func TeamLabel(team int) string {
	return fmt.Sprintf("Team %02d", team+1)
}

// Assign puts op into the slot. Existing equipment stays as it is.
func (b *Board) Assign(ctx context.Context, team, slot int, op OperatorRef) error {
	if err := CheckIndex(team, slot); err != nil {
		return err
	}
	return b.mutate(ctx, func(t *Teams) error {
		t[team][slot].Operator = &op
		return nil
	})
}

func (b *Board) SetEquipment(ctx context.Context, team, slot int, field Field, value string) error {
	if err := CheckIndex(team, slot); err != nil {
		return err
	}
	return b.mutate(ctx, func(t *Teams) error {
		return t[team][slot].Equipment.set(field, value)
	})
}

// Reset empties every slot.
func (b *Board) Reset(ctx context.Context) error {
	return b.mutate(ctx, func(t *Teams) error {
		*t = Teams{}
		return nil
	})
}

// mutate applies fn and saves. On any failure the board is restored so the
// in-memory grid never runs ahead of the stored one.
func (b *Board) mutate(ctx context.Context, fn func(t *Teams) error) error {
	prev := b.teams.clone()
	if err := fn(&b.teams); err != nil {
		b.teams = prev
		return err
	}
	if err := b.save(ctx); err != nil {
		b.teams = prev
		return err
	}
	return nil
}

func (b *Board) save(ctx context.Context) error {
	if b.saver == nil {
		return nil
	}
	data, err := b.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := b.saver.Save(ctx, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (b *Board) Slot(team, slot int) (Slot, error) {
	if err := CheckIndex(team, slot); err != nil {
		return Slot{}, err
	}
	return b.teams[team][slot].clone(), nil
}

// Teams returns a deep copy of the grid.
func (b *Board) Teams() Teams {
	return b.teams.clone()
}

// Filled counts slots holding an operator.
func (b *Board) Filled() int {
	n := 0
	for i := range b.teams {
		for j := range b.teams[i] {
			if !b.teams[i][j].Empty() {
				n++
			}
		}
	}
	return n
}

// Serialize produces the persisted form: 5 teams of 4 slots.
func (b *Board) Serialize() ([]byte, error) {
	return json.Marshal(b.teams)
}
