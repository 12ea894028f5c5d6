package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var ErrMalformed = errors.New("malformed roster data")

// Letters is the fixed letter-jump index.
const Letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type Operator struct {
	Name      string `json:"name"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

type Group struct {
	Letter    string     `json:"letter"`
	Operators []Operator `json:"operators"`
}

// Index is immutable once built and safe to share between goroutines.
type Index struct {
	groups []Group
	byName map[string]Operator
}

// Raw shapes of the data asset.
type rawGroup struct {
	LetterGroup *string       `json:"letter_group"`
	Operators   []rawOperator `json:"operators"`
}

type rawOperator struct {
	Name  string   `json:"name"`
	Stats []string `json:"stats"`
}

// NormalizeStat strips one leading "-" or "–" marker plus the whitespace
// after it, then trims both ends.
func NormalizeStat(raw string) string {
	s := strings.TrimSpace(raw)
	for _, marker := range []string{"-", "–"} {
		if rest, ok := strings.CutPrefix(s, marker); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}

func Empty() *Index {
	return &Index{byName: map[string]Operator{}}
}

// New builds an index from already-normalized groups. Letters are upper-cased.
func New(groups []Group) *Index {
	idx := &Index{
		groups: make([]Group, 0, len(groups)),
		byName: make(map[string]Operator),
	}
	for _, g := range groups {
		ops := make([]Operator, len(g.Operators))
		copy(ops, g.Operators)
		for _, op := range ops {
			idx.byName[op.Name] = op
		}
		idx.groups = append(idx.groups, Group{Letter: strings.ToUpper(g.Letter), Operators: ops})
	}
	return idx
}

// Parse decodes the roster data asset. Any malformed record fails the whole
// parse.
func Parse(data []byte) (*Index, error) {
	var raw []rawGroup
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	seen := make(map[string]bool)
	groups := make([]Group, 0, len(raw))
	for i, rg := range raw {
		if rg.LetterGroup == nil {
			return nil, fmt.Errorf("%w: group %d: missing letter_group", ErrMalformed, i)
		}
		letter := strings.ToUpper(strings.TrimSpace(*rg.LetterGroup))
		if utf8.RuneCountInString(letter) != 1 {
			return nil, fmt.Errorf("%w: group %d: letter_group %q is not a single character", ErrMalformed, i, *rg.LetterGroup)
		}

		g := Group{Letter: letter, Operators: make([]Operator, 0, len(rg.Operators))}
		for j, ro := range rg.Operators {
			name := strings.TrimSpace(ro.Name)
			if name == "" {
				return nil, fmt.Errorf("%w: group %s operator %d: missing name", ErrMalformed, letter, j)
			}
			if len(ro.Stats) < 2 {
				return nil, fmt.Errorf("%w: operator %q: want at least 2 stats, got %d", ErrMalformed, name, len(ro.Stats))
			}
			if seen[name] {
				return nil, fmt.Errorf("%w: duplicate operator %q", ErrMalformed, name)
			}
			seen[name] = true
			g.Operators = append(g.Operators, Operator{
				Name:      name,
				Primary:   NormalizeStat(ro.Stats[0]),
				Secondary: NormalizeStat(ro.Stats[1]),
			})
		}
		groups = append(groups, g)
	}
	return New(groups), nil
}

func (i *Index) Len() int { return len(i.byName) }

// Groups returns a copy of every group in load order.
func (i *Index) Groups() []Group {
	return i.Filter("", "")
}

func (i *Index) Lookup(name string) (Operator, bool) {
	op, ok := i.byName[name]
	return op, ok
}

// Filter keeps operators whose name contains query case-insensitively. When
// letter is non-empty only the group with that key is considered. Groups
// left without operators are dropped.
func (i *Index) Filter(query, letter string) []Group {
	fold := cases.Fold()
	q := fold.String(query)
	letter = strings.ToUpper(letter)

	out := []Group{}
	for _, g := range i.groups {
		if letter != "" && g.Letter != letter {
			continue
		}
		var kept []Operator
		for _, op := range g.Operators {
			if strings.Contains(fold.String(op.Name), q) {
				kept = append(kept, op)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, Group{Letter: g.Letter, Operators: kept})
	}
	return out
}

// Operators flattens Filter(query, "") for the slot picker.
func (i *Index) Operators(query string) []Operator {
	var out []Operator
	for _, g := range i.Filter(query, "") {
		out = append(out, g.Operators...)
	}
	return out
}
