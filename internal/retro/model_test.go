package retro

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in    string
		want  Stage
		valid bool
	}{
		{"lobby", StageLobby, true},
		{" voting ", StageVoting, true},
		{"finished", StageFinished, true},
		{"done", Stage("done"), false},
		{"", Stage(""), false},
	}
	for _, tt := range tests {
		got, ok := ParseStage(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("ParseStage(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.valid)
		}
	}
}

func TestStagesAreOrdered(t *testing.T) {
	if len(Stages) != 8 {
		t.Fatalf("expected 8 stages, got %d", len(Stages))
	}
	if StageLobby.Index() != 0 || StageFinished.Index() != len(Stages)-1 {
		t.Fatalf("lobby must be first and finished last")
	}
	if StageGrouping.Index() >= StageVoting.Index() {
		t.Fatalf("grouping must precede voting")
	}
}

func TestRetroTypeAllows(t *testing.T) {
	if !RetroEmotions.Allows(IdeaSad) {
		t.Fatal("emotions retro should accept sad ideas")
	}
	if RetroEmotions.Allows(IdeaStart) {
		t.Fatal("emotions retro should reject start ideas")
	}
	if !RetroProgress.Allows(IdeaContinue) {
		t.Fatal("progress retro should accept continue ideas")
	}
	if _, ok := ParseRetroType("Progress"); !ok {
		t.Fatal("retro type parsing should be case-insensitive")
	}
	if _, ok := ParseRetroType("kanban"); ok {
		t.Fatal("unknown retro type accepted")
	}
}

func TestVotesOfAndRemoveVote(t *testing.T) {
	r := &Retro{Groups: []Group{
		{ID: "g1", Votes: []string{"a@x.com", "b@x.com", "a@x.com"}},
		{ID: "g2", Votes: []string{"a@x.com"}},
	}}
	if got := r.VotesOf("a@x.com"); got != 3 {
		t.Fatalf("VotesOf = %d, want 3", got)
	}

	g := r.Group("g1")
	if !g.RemoveVote("a@x.com") {
		t.Fatal("expected a vote to be removed")
	}
	if strings.Join(g.Votes, ",") != "b@x.com,a@x.com" {
		t.Fatalf("first occurrence should be removed, got %v", g.Votes)
	}
	if g.RemoveVote("c@x.com") {
		t.Fatal("removed a vote that was never cast")
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := &Retro{
		ID:         "abc",
		EverJoined: []string{"a@x.com"},
		Ideas:      []Idea{{ID: "i1", Text: "one"}},
		Groups:     []Group{{ID: "g1", Votes: []string{"a@x.com"}}},
	}
	c := r.Clone()
	c.EverJoined[0] = "z@x.com"
	c.Ideas[0].Text = "changed"
	c.Groups[0].Votes[0] = "z@x.com"

	if r.EverJoined[0] != "a@x.com" || r.Ideas[0].Text != "one" || r.Groups[0].Votes[0] != "a@x.com" {
		t.Fatalf("clone aliases the original: %+v", r)
	}
}

func TestNormalizeEncodesEmptyArrays(t *testing.T) {
	r := &Retro{ID: "abc", Groups: []Group{{ID: "g1"}}}
	r.Normalize()
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "null") {
		t.Fatalf("expected no null collections, got %s", b)
	}
}
