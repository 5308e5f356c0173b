package token

import (
	"strings"
	"testing"
)

func TestCountEmpty(t *testing.T) {
	if got := Count(""); got != 0 {
		t.Fatalf("Count(\"\") = %d", got)
	}
	if got := EstimateFast("   "); got != 0 {
		t.Fatalf("EstimateFast(blank) = %d", got)
	}
}

func TestEstimateFastLowerBound(t *testing.T) {
	// Short words would undercount on runes/4 alone; the word count floor
	// keeps the estimate sane.
	text := "a b c d e f"
	if got := EstimateFast(text); got < 6 {
		t.Fatalf("estimate %d below word count", got)
	}
}

func TestCountGrowsWithText(t *testing.T) {
	short := Count("hello world")
	long := Count(strings.Repeat("hello world ", 50))
	if short <= 0 {
		t.Fatalf("short count %d", short)
	}
	if long <= short {
		t.Fatalf("long=%d short=%d", long, short)
	}
}

func TestTruncateNoopWhenUnderBudget(t *testing.T) {
	text := "small prompt"
	if got := Truncate(text, 1000); got != text {
		t.Fatalf("got %q", got)
	}
	if got := Truncate(text, 0); got != text {
		t.Fatalf("maxTokens=0 should be a no-op, got %q", got)
	}
}

func TestTruncateCutsLongText(t *testing.T) {
	text := strings.Repeat("terminal benchmark harness ", 200)
	got := Truncate(text, 10)
	if len(got) >= len(text) {
		t.Fatalf("not truncated: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("missing ellipsis: %q", got[len(got)-10:])
	}
}
