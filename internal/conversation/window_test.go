package conversation

import (
	"fmt"
	"strings"
	"testing"
)

func makeHistory(n int) []Turn {
	out := make([]Turn, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		out = append(out, Turn{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	return out
}

func TestSelectWindowSizes(t *testing.T) {
	history := makeHistory(10)
	cases := []struct {
		n    int
		want int
	}{
		{0, 0},
		{-1, 0},
		{4, 4},
		{6, 6},
		{10, 10},
		{25, 10},
	}
	for _, tc := range cases {
		got := SelectWindow(history, tc.n)
		if len(got) != tc.want {
			t.Fatalf("SelectWindow(_, %d): expected %d turns, got %d", tc.n, tc.want, len(got))
		}
	}
}

func TestSelectWindowKeepsMostRecentInOrder(t *testing.T) {
	history := makeHistory(10)
	got := SelectWindow(history, 4)
	for i, turn := range got {
		want := fmt.Sprintf("m%d", 6+i)
		if turn.Content != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, turn.Content)
		}
	}
}

func TestSelectWindowEmptyHistory(t *testing.T) {
	if got := SelectWindow(nil, 6); got != nil {
		t.Fatalf("expected nil for empty history, got %v", got)
	}
}

func TestBuildEnrichedQueryBareQuestion(t *testing.T) {
	got := BuildEnrichedQuery(nil, "Q")
	if got != "Current question: Q" {
		t.Fatalf("expected bare question, got %q", got)
	}
}

func TestBuildEnrichedQueryWithHistory(t *testing.T) {
	selected := []Turn{
		{Role: RoleUser, Content: "What is this about?"},
		{Role: RoleAssistant, Content: "It covers thermodynamics."},
	}
	got := BuildEnrichedQuery(selected, "Tell me more about that")

	want := "User: What is this about?\n" +
		"Assistant: It covers thermodynamics.\n" +
		"---\n" +
		"Current question: Tell me more about that"
	if got != want {
		t.Fatalf("enriched query mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildEnrichedQueryOrderAndLabels(t *testing.T) {
	selected := makeHistory(4)
	got := BuildEnrichedQuery(selected, "next")
	lines := strings.Split(got, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d: %q", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "User: m0") {
		t.Fatalf("history not oldest-first: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Assistant: m1") {
		t.Fatalf("assistant label missing: %q", lines[1])
	}
	if lines[4] != "---" {
		t.Fatalf("expected separator before question, got %q", lines[4])
	}
	if lines[5] != "Current question: next" {
		t.Fatalf("unexpected final line %q", lines[5])
	}
}
