package stream

import (
	"strings"
	"testing"
)

func TestLineSourceBasicIteration(t *testing.T) {
	ls := NewLineSource(strings.NewReader("a\nb\nc\n"))
	var got []string
	for ls.HasNext() {
		line, ok := ls.Next()
		if !ok {
			t.Fatal("HasNext true but Next returned false")
		}
		got = append(got, line)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if !ls.LastHadNewline() {
		t.Fatal("expected the final line to have had a trailing newline")
	}
}

func TestLineSourceNoTrailingNewline(t *testing.T) {
	ls := NewLineSource(strings.NewReader("a\nb"))
	ls.Next()
	ls.Next()
	if ls.LastHadNewline() {
		t.Fatal("expected the final unterminated line to report no trailing newline")
	}
	if ls.HasNext() {
		t.Fatal("expected no further lines")
	}
}

func TestLineSourceDetectsCRLF(t *testing.T) {
	ls := NewLineSource(strings.NewReader("a\r\nb\r\n"))
	if ls.Newline() != "\r\n" {
		t.Fatalf("got newline %q, want %q", ls.Newline(), "\r\n")
	}
	line, _ := ls.Next()
	if line != "a" {
		t.Fatalf("got %q, want %q (CR should be stripped)", line, "a")
	}
}

func TestLineSourceEmptyInput(t *testing.T) {
	ls := NewLineSource(strings.NewReader(""))
	if ls.HasNext() {
		t.Fatal("expected an empty reader to have no lines")
	}
}
