package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AffirmationCount is the number of affirmations a generation result must carry.
const AffirmationCount = 12

// Score bounds for quiz evaluations.
const (
	MinScore = 0
	MaxScore = 100
)

// QuizAnswer is a single answered question. Receipt order is preserved in
// QuizPayload; canonicalization for fingerprinting sorts by question id.
type QuizAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuizPayload is the ordered set of quiz answers submitted by a user.
type QuizPayload []QuizAnswer

// Validate rejects malformed payloads at the boundary.
func (p QuizPayload) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: quiz payload is empty", ErrValidation)
	}
	seen := make(map[string]struct{}, len(p))
	for i, qa := range p {
		if strings.TrimSpace(qa.Question) == "" {
			return fmt.Errorf("%w: quiz[%d] question is empty", ErrValidation, i)
		}
		if strings.TrimSpace(qa.Answer) == "" {
			return fmt.Errorf("%w: quiz[%d] answer is empty", ErrValidation, i)
		}
		if _, dup := seen[qa.Question]; dup {
			return fmt.Errorf("%w: quiz[%d] duplicate question %q", ErrValidation, i, qa.Question)
		}
		seen[qa.Question] = struct{}{}
	}
	return nil
}

// Canonical returns a deterministic textual form of the payload, independent
// of the order answers were received in. Fields are length-prefixed so
// delimiter bytes inside question or answer text cannot shift field
// boundaries and collide two different payloads.
func (p QuizPayload) Canonical() string {
	sorted := make([]QuizAnswer, len(p))
	copy(sorted, p)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Question < sorted[j].Question })
	var b strings.Builder
	for _, qa := range sorted {
		fmt.Fprintf(&b, "%d:%s\x1f%d:%s\x1e", len(qa.Question), qa.Question, len(qa.Answer), qa.Answer)
	}
	return b.String()
}

// GenerationResult holds the affirmations produced for a quiz payload.
type GenerationResult struct {
	Affirmations []string  `json:"affirmations"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate enforces the generation invariants: exactly AffirmationCount
// distinct, non-empty strings.
func (r GenerationResult) Validate() error {
	if len(r.Affirmations) != AffirmationCount {
		return fmt.Errorf("%w: expected %d affirmations, got %d", ErrInvalidResult, AffirmationCount, len(r.Affirmations))
	}
	seen := make(map[string]struct{}, len(r.Affirmations))
	for i, a := range r.Affirmations {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: affirmation %d is empty", ErrInvalidResult, i)
		}
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: affirmation %d is a duplicate", ErrInvalidResult, i)
		}
		seen[a] = struct{}{}
	}
	return nil
}

// EvaluationResult holds a scored quiz evaluation.
type EvaluationResult struct {
	Score      int       `json:"score"`
	Commentary string    `json:"commentary"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate enforces the evaluation invariants: score in range and non-empty
// commentary.
func (r EvaluationResult) Validate() error {
	if r.Score < MinScore || r.Score > MaxScore {
		return fmt.Errorf("%w: score %d outside [%d,%d]", ErrInvalidResult, r.Score, MinScore, MaxScore)
	}
	if strings.TrimSpace(r.Commentary) == "" {
		return fmt.Errorf("%w: commentary is empty", ErrInvalidResult)
	}
	return nil
}

// PeriodicAffirmation is a single daily or monthly affirmation, valid for the
// period it was generated in.
type PeriodicAffirmation struct {
	Affirmation string    `json:"affirmation"`
	Period      string    `json:"period"`
	CreatedAt   time.Time `json:"created_at"`
}

// AlignmentChunk is an embedded span of an ingested reference document.
type AlignmentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	Distance   float64   `json:"distance,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AlignmentDocument describes an ingested reference document.
type AlignmentDocument struct {
	ID        string    `json:"document_id"`
	Filename  string    `json:"filename"`
	Checksum  string    `json:"checksum"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrValidation marks malformed caller input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrInvalidResult marks a provider response that violates result
	// invariants. The orchestrator re-invokes once with a stricter prompt
	// before surfacing it.
	ErrInvalidResult = errors.New("invalid provider result")

	// ErrTicketTimeout is returned to a waiter whose bound elapsed before the
	// owner completed. Distinct from provider errors so callers know a plain
	// retry may succeed.
	ErrTicketTimeout = errors.New("in-flight wait timed out")

	// ErrCacheUnavailable marks a cache backend failure. Degrades to a miss,
	// never surfaced to callers.
	ErrCacheUnavailable = errors.New("session cache unavailable")

	// ErrDocumentNotFound is returned when an alignment document id is unknown.
	ErrDocumentNotFound = errors.New("alignment document not found")
)

// ProviderError classifies a failure from the model provider or the vector
// store as transient (retry-eligible) or permanent.
type ProviderError struct {
	Op        string
	Status    int
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: %s failure (status %d): %v", e.Op, kind, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %s failure: %v", e.Op, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retry-eligible under the orchestrator's
// retry policy.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
