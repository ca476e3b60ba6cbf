package orchestrator

import (
	"strings"
	"testing"

	"github.com/dumb-meh/Sui-Amor/models"
)

func TestPromptsCarryEveryAnswer(t *testing.T) {
	payload := models.QuizPayload{
		{Question: "q1", Answer: "anxious about change"},
		{Question: "q2", Answer: "seeking calm"},
	}
	chunks := []models.AlignmentChunk{{Content: "Bright renewal after rest."}}

	user := generationUserPrompt(payload, chunks)
	for _, qa := range payload {
		if !strings.Contains(user, qa.Question) || !strings.Contains(user, qa.Answer) {
			t.Fatalf("generation prompt missing %q/%q: %q", qa.Question, qa.Answer, user)
		}
	}
	if !strings.Contains(user, "Bright renewal after rest.") {
		t.Fatalf("generation prompt missing alignment context: %q", user)
	}

	query := quizText(payload)
	for _, qa := range payload {
		if !strings.Contains(query, qa.Question) || !strings.Contains(query, qa.Answer) {
			t.Fatalf("embedding query missing %q/%q: %q", qa.Question, qa.Answer, query)
		}
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`["a"]`, `["a"]`},
		{"```json\n[\"a\"]\n```", `["a"]`},
		{"```\n[\"a\"]\n```", `["a"]`},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Fatalf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
