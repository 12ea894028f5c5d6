// Package picker implements the slot-picker selection protocol: open on a
// (team, slot) target, query the roster live, then either select an operator
// into the target or close without touching the board.
package picker

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/operator-board/internal/board"
	"github.com/DoyleJ11/operator-board/internal/roster"
)

var ErrNoPendingTarget = errors.New("picker has no pending target")
var ErrUnknownOperator = errors.New("unknown operator")

type Target struct {
	Team int `json:"team"`
	Slot int `json:"slot"`
}

// Roster is what the picker queries. Both *roster.Index and *roster.Holder
// satisfy it.
type Roster interface {
	Operators(query string) []roster.Operator
	Lookup(name string) (roster.Operator, bool)
}

// Picker is owned by the same loop that owns the board it assigns into.
type Picker struct {
	roster  Roster
	pending *Target
	query   string
}

func New(r Roster) *Picker {
	if r == nil {
		r = roster.Empty()
	}
	return &Picker{roster: r}
}

// Open records (team, slot) as the pending target and resets the query.
// Reopening replaces any earlier target.
func (p *Picker) Open(team, slot int) error {
	if err := board.CheckIndex(team, slot); err != nil {
		return err
	}
	p.pending = &Target{Team: team, Slot: slot}
	p.query = ""
	return nil
}

func (p *Picker) Pending() (Target, bool) {
	if p.pending == nil {
		return Target{}, false
	}
	return *p.pending, true
}

func (p *Picker) IsOpen() bool { return p.pending != nil }

func (p *Picker) Query() string { return p.query }

// Search records q as the live query and returns the matching operators.
func (p *Picker) Search(q string) []roster.Operator {
	p.query = q
	return p.roster.Operators(q)
}

// Results re-runs the current query.
func (p *Picker) Results() []roster.Operator {
	return p.roster.Operators(p.query)
}

// Select assigns the named operator to the pending target and closes the
// picker. Without a pending target nothing happens. If the assignment fails
// the picker stays open on the same target.
func (p *Picker) Select(ctx context.Context, b *board.Board, name string) (Target, error) {
	target, ok := p.Pending()
	if !ok {
		return Target{}, ErrNoPendingTarget
	}
	op, ok := p.roster.Lookup(name)
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownOperator, name)
	}
	if err := b.Assign(ctx, target.Team, target.Slot, board.RefOf(op)); err != nil {
		return Target{}, err
	}
	p.Close()
	return target, nil
}

// Close drops the pending target without touching the board.
func (p *Picker) Close() {
	p.pending = nil
	p.query = ""
}
