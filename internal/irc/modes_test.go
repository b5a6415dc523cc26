package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrefix(t *testing.T) {
	p, err := ParsePrefix("(qaohv)~&@%+")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefixes, p)

	p, err = ParsePrefix("(ov)@+")
	require.NoError(t, err)
	assert.Equal(t, Prefixes{'@': 'o', '+': 'v'}, p)

	for _, bad := range []string{"ov@+", "(ov)@", "(ov@+"} {
		_, err := ParsePrefix(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		table Prefixes
		nick  string
		modes []rune
	}{
		{"@alice", nil, "alice", []rune{'o'}},
		{"+bob", nil, "bob", []rune{'v'}},
		{"carol", nil, "carol", nil},
		{"~&dave", nil, "dave", []rune{'q', 'a'}},
		{"@+erin", Prefixes{'@': 'o', '+': 'v'}, "erin", []rune{'o', 'v'}},
		{"%frank", Prefixes{'@': 'o', '+': 'v'}, "%frank", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nick, modes := SplitName(tt.name, tt.table)
			assert.Equal(t, tt.nick, nick)
			assert.Equal(t, tt.modes, modes)
		})
	}
}

func TestParseModes(t *testing.T) {
	rules := DefaultModeRules()

	tests := []struct {
		name  string
		modes string
		args  []string
		want  []ModeChange
	}{
		{
			"privileges",
			"+o-v", []string{"alice", "bob"},
			[]ModeChange{{true, 'o', "alice"}, {false, 'v', "bob"}},
		},
		{
			"flags and ban",
			"+nt-s+b", []string{"*!*@bad"},
			[]ModeChange{{true, 'n', ""}, {true, 't', ""}, {false, 's', ""}, {true, 'b', "*!*@bad"}},
		},
		{
			"limit only takes a param when set",
			"+l-l", []string{"10"},
			[]ModeChange{{true, 'l', "10"}, {false, 'l', ""}},
		},
		{
			"key always takes a param",
			"-k", []string{"secret"},
			[]ModeChange{{false, 'k', "secret"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModes(tt.modes, tt.args, rules)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseModes_Malformed(t *testing.T) {
	rules := DefaultModeRules()

	tests := []struct {
		name  string
		modes string
		args  []string
	}{
		{"empty", "", nil},
		{"no sign", "o", []string{"alice"}},
		{"missing param", "+oo", []string{"alice"}},
		{"too many params", "+n", []string{"extra"}},
		{"empty sequence", "+-o", []string{"alice"}},
		{"trailing sign", "+o-", []string{"alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModes(tt.modes, tt.args, rules)
			assert.ErrorIs(t, err, ErrBadModes)
		})
	}
}

func TestParseModes_UserModes(t *testing.T) {
	got, err := ParseModes("+iw-x", nil, ModeRules{})
	require.NoError(t, err)
	assert.Equal(t, []ModeChange{{true, 'i', ""}, {true, 'w', ""}, {false, 'x', ""}}, got)
}

func TestModeRules_ParseChanModes(t *testing.T) {
	rules := DefaultModeRules().ParseChanModes("beIq,k,flj,CFLMPQScgimnprstz")
	assert.Equal(t, "beIq", rules.List)
	assert.Equal(t, "flj", rules.OnSet)
	assert.Equal(t, "qaohv", rules.Prefix)
	assert.True(t, rules.TakesParam('j', true))
	assert.False(t, rules.TakesParam('j', false))
	assert.False(t, rules.TakesParam('C', true))
}
