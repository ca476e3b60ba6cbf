// Package orchestrator is the control-flow core: it fingerprints requests,
// consults the session cache and the in-flight map, retrieves aligned context
// and invokes the model provider under the retry policy, then publishes the
// result to the cache and to every waiter.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dumb-meh/Sui-Amor/internal/cache"
	"github.com/dumb-meh/Sui-Amor/internal/fingerprint"
	"github.com/dumb-meh/Sui-Amor/internal/inflight"
	"github.com/dumb-meh/Sui-Amor/internal/telemetry"
	"github.com/dumb-meh/Sui-Amor/models"
	"github.com/dumb-meh/Sui-Amor/provider"
)

// Retriever is the alignment store surface the orchestrator depends on.
type Retriever interface {
	Retrieve(ctx context.Context, vector []float32, k int) ([]models.AlignmentChunk, error)
	Version(ctx context.Context) (string, error)
}

// Config tunes the orchestration core.
type Config struct {
	CacheTTL        time.Duration
	RetrievalK      int
	MaxRetries      int
	BaseBackoff     time.Duration
	ProviderTimeout time.Duration
	WaiterTimeout   time.Duration
	HistorySize     int
}

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.RetrievalK <= 0 {
		c.RetrievalK = 12
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 30 * time.Second
	}
	if c.WaiterTimeout <= 0 {
		// Cover the owner's full retry budget plus headroom so waiters only
		// time out when the owner is genuinely wedged.
		c.WaiterTimeout = time.Duration(c.MaxRetries+1)*c.ProviderTimeout + 30*time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 15
	}
	return c
}

// Orchestrator coordinates cache, dedup, retrieval, and provider calls. One
// instance is created at startup and shared by all request handlers.
type Orchestrator struct {
	cache     cache.SessionCache
	inflight  *inflight.Map
	provider  provider.Provider
	retriever Retriever
	logger    *zap.Logger
	cfg       Config
}

// New creates the orchestrator.
func New(c cache.SessionCache, p provider.Provider, r Retriever, logger *zap.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cache:     c,
		inflight:  inflight.NewMap(),
		provider:  p,
		retriever: r,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// GenerateAffirmations produces twelve personalized affirmations for a quiz
// payload, deduplicating concurrent identical requests and serving repeats
// from the session cache.
func (o *Orchestrator) GenerateAffirmations(ctx context.Context, sessionID string, payload models.QuizPayload) (models.GenerationResult, error) {
	var result models.GenerationResult
	err := o.run(ctx, fingerprint.Affirmation, sessionID, payload, &result, func(ctx context.Context) (interface{}, error) {
		return o.computeGeneration(ctx, payload)
	})
	return result, err
}

// EvaluateQuiz scores a quiz payload through the same cache/dedup machinery,
// under its own fingerprint namespace.
func (o *Orchestrator) EvaluateQuiz(ctx context.Context, sessionID string, payload models.QuizPayload) (models.EvaluationResult, error) {
	var result models.EvaluationResult
	err := o.run(ctx, fingerprint.Evaluation, sessionID, payload, &result, func(ctx context.Context) (interface{}, error) {
		return o.computeEvaluation(ctx, payload)
	})
	return result, err
}

// run is the shared request state machine: validate, fingerprint, cache
// check, dedup check, compute as owner or wait as joiner, cache write,
// release waiters.
func (o *Orchestrator) run(
	ctx context.Context,
	ns fingerprint.Namespace,
	sessionID string,
	payload models.QuizPayload,
	out interface{},
	compute func(ctx context.Context) (interface{}, error),
) error {
	start := time.Now()
	outcome := "error"
	defer func() {
		telemetry.RequestDurationSeconds.WithLabelValues(string(ns), outcome).Observe(time.Since(start).Seconds())
	}()

	if sessionID == "" {
		return fmt.Errorf("%w: session id required", models.ErrValidation)
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	fp := fingerprint.Compute(ns, sessionID, payload, o.alignmentVersion(ctx))
	key := fp.String()
	logger := o.logger.With(zap.String("namespace", string(ns)), zap.String("fingerprint", fp.Hash))

	if raw, ok := o.cacheGet(ctx, ns, key, logger); ok {
		if err := json.Unmarshal(raw, out); err == nil {
			outcome = "cache_hit"
			return nil
		}
		logger.Warn("cache entry undecodable, recomputing")
	}

	ticket, owner := o.inflight.AcquireOrJoin(key)
	if !owner {
		telemetry.InflightJoinsTotal.WithLabelValues(string(ns)).Inc()
		logger.Debug("joined in-flight computation")
		raw, err := ticket.Wait(ctx, o.cfg.WaiterTimeout)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode shared result: %w", err)
		}
		outcome = "joined"
		return nil
	}

	// Owner path. The ticket must resolve no matter how compute exits, or
	// waiters would hang until their own bound.
	resolved := false
	defer func() {
		if !resolved {
			o.inflight.Fail(ticket, fmt.Errorf("computation abandoned for %s", fp.Hash))
		}
	}()

	value, err := compute(ctx)
	if err != nil {
		o.inflight.Fail(ticket, err)
		resolved = true
		logger.Warn("computation failed", zap.Error(err))
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		err = fmt.Errorf("encode result: %w", err)
		o.inflight.Fail(ticket, err)
		resolved = true
		return err
	}

	o.cachePut(ctx, key, raw, logger)
	o.inflight.Complete(ticket, raw)
	resolved = true

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	outcome = "computed"
	return nil
}

// alignmentVersion resolves the current alignment-set version for cache
// keying. On failure the version degrades to a constant: caching quality
// suffers but the request proceeds.
func (o *Orchestrator) alignmentVersion(ctx context.Context) string {
	version, err := o.retriever.Version(ctx)
	if err != nil {
		o.logger.Warn("alignment version unavailable", zap.Error(err))
		return "unversioned"
	}
	return version
}

// cacheGet consults the session cache, degrading every backend failure to a
// miss. The cache is an optimization, never a correctness dependency.
func (o *Orchestrator) cacheGet(ctx context.Context, ns fingerprint.Namespace, key string, logger *zap.Logger) ([]byte, bool) {
	entry, found, err := o.cache.Get(ctx, key)
	if err != nil {
		telemetry.CacheErrorsTotal.Inc()
		logger.Warn("session cache get failed, treating as miss", zap.Error(err))
		return nil, false
	}
	if !found {
		telemetry.CacheMissesTotal.WithLabelValues(string(ns)).Inc()
		return nil, false
	}
	telemetry.CacheHitsTotal.WithLabelValues(string(ns)).Inc()
	return entry.Payload, true
}

func (o *Orchestrator) cachePut(ctx context.Context, key string, raw []byte, logger *zap.Logger) {
	if err := o.cache.Put(ctx, key, raw, o.cfg.CacheTTL); err != nil {
		telemetry.CacheErrorsTotal.Inc()
		logger.Warn("session cache put failed", zap.Error(err))
	}
}

// computeGeneration retrieves aligned context and invokes the model, then
// validates the generation invariants, allowing one stricter re-invocation
// when the model's output is malformed.
func (o *Orchestrator) computeGeneration(ctx context.Context, payload models.QuizPayload) (interface{}, error) {
	chunks, err := o.retrieveContext(ctx, payload)
	if err != nil {
		return nil, err
	}

	result, err := o.invokeGeneration(ctx, payload, chunks, false)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, models.ErrInvalidResult) {
		return nil, err
	}
	o.logger.Warn("generation result invalid, re-invoking with strict prompt", zap.Error(err))
	return o.invokeGeneration(ctx, payload, chunks, true)
}

func (o *Orchestrator) invokeGeneration(ctx context.Context, payload models.QuizPayload, chunks []models.AlignmentChunk, strict bool) (models.GenerationResult, error) {
	system := generationSystemPrompt(strict)
	user := generationUserPrompt(payload, chunks)

	var text string
	err := o.withRetry(ctx, "completion", func(ctx context.Context) error {
		var err error
		text, err = o.provider.Complete(ctx, system, user)
		return err
	})
	if err != nil {
		return models.GenerationResult{}, err
	}

	affirmations, err := parseAffirmations(text)
	if err != nil {
		return models.GenerationResult{}, err
	}
	result := models.GenerationResult{Affirmations: affirmations, CreatedAt: time.Now().UTC()}
	if err := result.Validate(); err != nil {
		return models.GenerationResult{}, err
	}
	return result, nil
}

func (o *Orchestrator) computeEvaluation(ctx context.Context, payload models.QuizPayload) (interface{}, error) {
	chunks, err := o.retrieveContext(ctx, payload)
	if err != nil {
		return nil, err
	}

	result, err := o.invokeEvaluation(ctx, payload, chunks, false)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, models.ErrInvalidResult) {
		return nil, err
	}
	o.logger.Warn("evaluation result invalid, re-invoking with strict prompt", zap.Error(err))
	return o.invokeEvaluation(ctx, payload, chunks, true)
}

func (o *Orchestrator) invokeEvaluation(ctx context.Context, payload models.QuizPayload, chunks []models.AlignmentChunk, strict bool) (models.EvaluationResult, error) {
	system := evaluationSystemPrompt(strict)
	user := evaluationUserPrompt(payload, chunks)

	var text string
	err := o.withRetry(ctx, "completion", func(ctx context.Context) error {
		var err error
		text, err = o.provider.Complete(ctx, system, user)
		return err
	})
	if err != nil {
		return models.EvaluationResult{}, err
	}

	result, err := parseEvaluation(text)
	if err != nil {
		return models.EvaluationResult{}, err
	}
	result.CreatedAt = time.Now().UTC()
	if err := result.Validate(); err != nil {
		return models.EvaluationResult{}, err
	}
	return result, nil
}

// retrieveContext embeds the quiz text and fetches the nearest alignment
// chunks. Both network calls run under the retry policy with per-attempt
// deadlines. An empty alignment store is not an error; generation proceeds
// without grounding context.
func (o *Orchestrator) retrieveContext(ctx context.Context, payload models.QuizPayload) ([]models.AlignmentChunk, error) {
	query := quizText(payload)

	var vecs [][]float32
	err := o.withRetry(ctx, "embedding", func(ctx context.Context) error {
		var err error
		vecs, err = o.provider.CreateEmbedding(ctx, []string{query})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, &models.ProviderError{Op: "embedding", Transient: true, Err: errors.New("no vectors returned")}
	}

	var chunks []models.AlignmentChunk
	err = o.withRetry(ctx, "retrieve", func(ctx context.Context) error {
		var err error
		chunks, err = o.retriever.Retrieve(ctx, vecs[0], o.cfg.RetrievalK)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}
