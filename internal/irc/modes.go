package irc

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrBadModes = errors.New("bad mode string")

// Prefixes maps a NAMES/WHO privilege symbol to its channel mode letter.
type Prefixes map[rune]rune

// DefaultPrefixes is used when the server does not advertise PREFIX.
var DefaultPrefixes = Prefixes{
	'~': 'q',
	'&': 'a',
	'@': 'o',
	'%': 'h',
	'+': 'v',
}

// ParsePrefix parses an ISUPPORT PREFIX value such as "(qaohv)~&@%+".
func ParsePrefix(value string) (Prefixes, error) {
	if value == "" {
		return Prefixes{}, nil
	}
	modes, symbols, ok := strings.Cut(strings.TrimPrefix(value, "("), ")")
	if !strings.HasPrefix(value, "(") || !ok || len(modes) != len(symbols) {
		return nil, fmt.Errorf("invalid PREFIX %q", value)
	}
	for i := 0; i < len(value); i++ {
		if value[i] > unicode.MaxASCII {
			return nil, fmt.Errorf("invalid PREFIX %q", value)
		}
	}

	p := make(Prefixes, len(modes))
	for i := range modes {
		p[rune(symbols[i])] = rune(modes[i])
	}
	return p, nil
}

// Modes returns the prefix mode letters.
func (p Prefixes) Modes() string {
	var sb strings.Builder
	for _, mode := range p {
		sb.WriteRune(mode)
	}
	return sb.String()
}

// SplitName strips privilege symbols from a NAMES entry and returns the nick and
// the mode letters the symbols stand for. A nil or empty table falls back to
// DefaultPrefixes.
func SplitName(name string, p Prefixes) (string, []rune) {
	if len(p) == 0 {
		p = DefaultPrefixes
	}
	var modes []rune
	for i, r := range name {
		mode, ok := p[r]
		if !ok {
			return name[i:], modes
		}
		modes = append(modes, mode)
	}
	return "", modes
}

// ModeRules says which channel modes carry a parameter, from ISUPPORT CHANMODES
// and PREFIX.
type ModeRules struct {
	// List modes (type A) always take a parameter
	List string
	// Always modes (type B) always take a parameter
	Always string
	// OnSet modes (type C) take a parameter only when set
	OnSet string
	// Never modes (type D) take no parameter
	Never string
	// Prefix modes always take a nick
	Prefix string
}

// DefaultModeRules covers servers that advertise nothing.
func DefaultModeRules() ModeRules {
	return ModeRules{
		List:   "beI",
		Always: "k",
		OnSet:  "l",
		Never:  "imnpst",
		Prefix: "qaohv",
	}
}

// ParseChanModes parses an ISUPPORT CHANMODES value, keeping prefix modes from r.
func (r ModeRules) ParseChanModes(value string) ModeRules {
	types := strings.SplitN(value, ",", 5)
	fields := []*string{&r.List, &r.Always, &r.OnSet, &r.Never}
	for i := 0; i < len(types) && i < len(fields); i++ {
		*fields[i] = types[i]
	}
	return r
}

// TakesParam reports whether mode consumes a parameter in the given direction.
func (r ModeRules) TakesParam(mode rune, added bool) bool {
	switch {
	case strings.ContainsRune(r.Prefix, mode),
		strings.ContainsRune(r.List, mode),
		strings.ContainsRune(r.Always, mode):
		return true
	case strings.ContainsRune(r.OnSet, mode):
		return added
	}
	return false
}

// ModeChange is one parsed change. Arg is empty for modes without a parameter.
type ModeChange struct {
	Added bool
	Mode  rune
	Arg   string
}

func (c ModeChange) String() string {
	sign := "-"
	if c.Added {
		sign = "+"
	}
	if c.Arg == "" {
		return sign + string(c.Mode)
	}
	return sign + string(c.Mode) + " " + c.Arg
}

// ParseModes parses a mode string such as "+o-v+b alice bob *!*@bad". The whole
// line is rejected if it is malformed, so callers never apply part of it.
func ParseModes(modes string, args []string, rules ModeRules) ([]ModeChange, error) {
	if modes == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadModes)
	}
	if modes[0] != '+' && modes[0] != '-' {
		return nil, fmt.Errorf("%w: %q must start with + or -", ErrBadModes, modes)
	}

	var (
		changes []ModeChange
		added   bool
		pending bool
	)
	for _, r := range modes {
		switch r {
		case '+', '-':
			if pending {
				return nil, fmt.Errorf("%w: empty mode sequence in %q", ErrBadModes, modes)
			}
			added = r == '+'
			pending = true
			continue
		}
		pending = false

		change := ModeChange{Added: added, Mode: r}
		if rules.TakesParam(r, added) {
			if len(args) == 0 {
				return nil, fmt.Errorf("%w: %c%c needs a parameter", ErrBadModes, sign(added), r)
			}
			change.Arg, args = args[0], args[1:]
		}
		changes = append(changes, change)
	}
	if pending {
		return nil, fmt.Errorf("%w: empty mode sequence in %q", ErrBadModes, modes)
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("%w: too many parameters for %q", ErrBadModes, modes)
	}
	return changes, nil
}

func sign(added bool) rune {
	if added {
		return '+'
	}
	return '-'
}
