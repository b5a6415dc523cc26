package irc

import (
	"strings"
	"testing"
)

func collect(maxSize int) (*Chunker, *[]string) {
	var out []string
	return NewChunker(func(s string) { out = append(out, s) }, maxSize), &out
}

func TestChunker_SingleLine(t *testing.T) {
	chunker, out := collect(400)

	// Complete line (ends with \n) should be sent immediately
	chunker.Write("Hello world\n")

	if len(*out) != 1 || (*out)[0] != "Hello world" {
		t.Errorf("expected [Hello world], got %q", *out)
	}
}

func TestChunker_BufferOverflow(t *testing.T) {
	maxSize := 20
	chunker, out := collect(maxSize)

	// Write text that exceeds maxChunkSize (no newlines)
	chunker.Write("This is a message that exceeds the max size")

	if len(*out) == 0 {
		t.Fatal("expected buffer overflow to trigger a chunk")
	}
	for _, msg := range *out {
		if len(msg) > maxSize {
			t.Errorf("chunk size %d exceeds max %d", len(msg), maxSize)
		}
	}
}

func TestChunker_SplitAtSpace(t *testing.T) {
	chunker, out := collect(15)

	// "Hello there friend" = 18 chars, should split at space
	chunker.Write("Hello there friend")

	if len(*out) != 1 || (*out)[0] != "Hello there" {
		t.Errorf("expected [Hello there], got %q", *out)
	}

	chunker.Flush()
	if len(*out) != 2 || (*out)[1] != "friend" {
		t.Errorf("expected flush to emit friend, got %q", *out)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   []string
	}{
		{"short", "hi", 10, []string{"hi"}},
		{"newlines", "one\ntwo\r\n\nthree", 10, []string{"one", "two", "three"}},
		{"long line", "aaaa bbbb cccc", 9, []string{"aaaa bbbb", "cccc"}},
		{"hard break", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"empty", "", 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.maxLen)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("Split(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.want)
			}
		})
	}
}
