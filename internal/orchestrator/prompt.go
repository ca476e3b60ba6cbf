package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dumb-meh/Sui-Amor/models"
)

func generationSystemPrompt(strict bool) string {
	var b strings.Builder
	b.WriteString("You are Sui Amor, a compassionate guide who writes short personalized affirmations.\n")
	fmt.Fprintf(&b, "Given a person's quiz answers and excerpts from their alignment profile, write exactly %d affirmations.\n", models.AffirmationCount)
	b.WriteString("Each affirmation is a single warm, present-tense sentence addressed to the person.\n")
	b.WriteString("Respond with ONLY a JSON array of strings, no commentary and no markdown fences.\n")
	if strict {
		fmt.Fprintf(&b, "STRICT MODE: your previous answer was rejected. The array MUST contain exactly %d elements, every element MUST be a non-empty string, and no two elements may be identical. Output nothing except the JSON array.\n", models.AffirmationCount)
	}
	return b.String()
}

func generationUserPrompt(payload models.QuizPayload, chunks []models.AlignmentChunk) string {
	var b strings.Builder
	b.WriteString("Quiz answers:\n")
	writeQuiz(&b, payload)
	writeContext(&b, chunks)
	return b.String()
}

func evaluationSystemPrompt(strict bool) string {
	var b strings.Builder
	b.WriteString("You are Sui Amor, an evaluator of self-alignment quizzes.\n")
	fmt.Fprintf(&b, "Score the person's answers from %d to %d, where higher means stronger alignment with their profile, and write a short supportive commentary explaining the score.\n", models.MinScore, models.MaxScore)
	b.WriteString("Respond with ONLY a JSON object {\"score\": <integer>, \"commentary\": <string>}, no markdown fences.\n")
	if strict {
		fmt.Fprintf(&b, "STRICT MODE: your previous answer was rejected. The score MUST be an integer between %d and %d inclusive and the commentary MUST be a non-empty string. Output nothing except the JSON object.\n", models.MinScore, models.MaxScore)
	}
	return b.String()
}

func evaluationUserPrompt(payload models.QuizPayload, chunks []models.AlignmentChunk) string {
	var b strings.Builder
	b.WriteString("Quiz answers to evaluate:\n")
	writeQuiz(&b, payload)
	writeContext(&b, chunks)
	return b.String()
}

func writeQuiz(b *strings.Builder, payload models.QuizPayload) {
	for _, a := range payload {
		fmt.Fprintf(b, "- %s: %s\n", a.Question, a.Answer)
	}
}

func writeContext(b *strings.Builder, chunks []models.AlignmentChunk) {
	if len(chunks) == 0 {
		return
	}
	b.WriteString("\nAlignment profile excerpts:\n")
	for _, c := range chunks {
		b.WriteString(c.Content)
		b.WriteString("\n---\n")
	}
}

// quizText is the embedding query for alignment retrieval.
func quizText(payload models.QuizPayload) string {
	var b strings.Builder
	for _, a := range payload {
		fmt.Fprintf(&b, "%s %s\n", a.Question, a.Answer)
	}
	return b.String()
}

// parseAffirmations decodes the model's answer as a JSON string array.
// Anything else is an invalid result, which triggers the strict re-invocation.
func parseAffirmations(text string) ([]string, error) {
	var affirmations []string
	if err := json.Unmarshal([]byte(stripFences(text)), &affirmations); err != nil {
		return nil, fmt.Errorf("%w: affirmations are not a JSON string array: %v", models.ErrInvalidResult, err)
	}
	return affirmations, nil
}

func parseEvaluation(text string) (models.EvaluationResult, error) {
	var result models.EvaluationResult
	if err := json.Unmarshal([]byte(stripFences(text)), &result); err != nil {
		return models.EvaluationResult{}, fmt.Errorf("%w: evaluation is not a JSON object: %v", models.ErrInvalidResult, err)
	}
	return result, nil
}

// stripFences tolerates models that wrap JSON in markdown code fences despite
// instructions.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
