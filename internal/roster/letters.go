package roster

import (
	"fmt"
	"strings"
)

// LetterMode picks how the letter index behaves for a deployment.
type LetterMode string

const (
	// LetterJump only scrolls to a rendered group; it never filters.
	LetterJump LetterMode = "jump"
	// LetterFilter restricts results to one group and toggles off on a
	// second press.
	LetterFilter LetterMode = "filter"
)

func ParseLetterMode(s string) (LetterMode, error) {
	switch LetterMode(strings.ToLower(strings.TrimSpace(s))) {
	case LetterJump:
		return LetterJump, nil
	case LetterFilter, "":
		return LetterFilter, nil
	default:
		return "", fmt.Errorf("unknown letter mode %q", s)
	}
}

// Anchor is the id a rendered group section carries.
func Anchor(letter string) string {
	return "letter-" + strings.ToUpper(letter)
}

// JumpTargets reports, for every letter A-Z, whether a group with that key is
// present in Filter(query, letter).
func (i *Index) JumpTargets(query, letter string) map[string]bool {
	targets := make(map[string]bool, len(Letters))
	for _, r := range Letters {
		targets[string(r)] = false
	}
	for _, g := range i.Filter(query, letter) {
		if _, ok := targets[g.Letter]; ok {
			targets[g.Letter] = true
		}
	}
	return targets
}

// Jump resolves a letter press to the anchor to scroll to. ok is false when
// no such group is rendered, in which case the press is a no-op.
func (i *Index) Jump(target, query, letter string) (anchor string, ok bool) {
	target = strings.ToUpper(target)
	if !i.JumpTargets(query, letter)[target] {
		return "", false
	}
	return Anchor(target), true
}

// LetterSelection is the active letter filter. The zero value means no
// filter.
type LetterSelection struct {
	letter string
}

func SelectLetter(letter string) LetterSelection {
	return LetterSelection{letter: strings.ToUpper(letter)}
}

func (s LetterSelection) Letter() string { return s.letter }

func (s LetterSelection) Active() bool { return s.letter != "" }

// Toggle selects letter, or clears the selection if letter is already
// selected.
func (s LetterSelection) Toggle(letter string) LetterSelection {
	letter = strings.ToUpper(letter)
	if letter == s.letter {
		return LetterSelection{}
	}
	return LetterSelection{letter: letter}
}
