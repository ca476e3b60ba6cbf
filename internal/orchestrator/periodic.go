package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dumb-meh/Sui-Amor/internal/fingerprint"
	"github.com/dumb-meh/Sui-Amor/models"
)

// GenerateDaily returns the session's affirmation for the current day,
// generating it once and caching it until midnight UTC.
func (o *Orchestrator) GenerateDaily(ctx context.Context, sessionID string) (models.PeriodicAffirmation, error) {
	now := time.Now().UTC()
	period := now.Format("2006-01-02")
	expiry := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return o.generatePeriodic(ctx, fingerprint.Daily, sessionID, period, expiry.Sub(now))
}

// GenerateMonthly returns the session's affirmation for the current month,
// cached until the month rolls over.
func (o *Orchestrator) GenerateMonthly(ctx context.Context, sessionID string) (models.PeriodicAffirmation, error) {
	now := time.Now().UTC()
	period := now.Format("2006-01")
	monthEnd := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return o.generatePeriodic(ctx, fingerprint.Monthly, sessionID, period, monthEnd.Sub(now))
}

func (o *Orchestrator) generatePeriodic(ctx context.Context, ns fingerprint.Namespace, sessionID, period string, ttl time.Duration) (models.PeriodicAffirmation, error) {
	if sessionID == "" {
		return models.PeriodicAffirmation{}, fmt.Errorf("%w: session id required", models.ErrValidation)
	}

	key := fmt.Sprintf("%s:%s:%s", ns, sessionID, period)
	logger := o.logger.With(zap.String("namespace", string(ns)), zap.String("period", period))

	if raw, ok := o.cacheGet(ctx, ns, key, logger); ok {
		var cached models.PeriodicAffirmation
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		logger.Warn("cached affirmation undecodable, regenerating")
	}

	ticket, owner := o.inflight.AcquireOrJoin(key)
	if !owner {
		raw, err := ticket.Wait(ctx, o.cfg.WaiterTimeout)
		if err != nil {
			return models.PeriodicAffirmation{}, err
		}
		var shared models.PeriodicAffirmation
		if err := json.Unmarshal(raw, &shared); err != nil {
			return models.PeriodicAffirmation{}, fmt.Errorf("decode shared result: %w", err)
		}
		return shared, nil
	}

	resolved := false
	defer func() {
		if !resolved {
			o.inflight.Fail(ticket, fmt.Errorf("computation abandoned for %s", key))
		}
	}()

	history := o.loadHistory(ctx, ns, sessionID, logger)
	text, err := o.invokePeriodic(ctx, ns, history)
	if err != nil {
		o.inflight.Fail(ticket, err)
		resolved = true
		return models.PeriodicAffirmation{}, err
	}

	result := models.PeriodicAffirmation{
		Affirmation: text,
		Period:      period,
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(result)
	if err != nil {
		err = fmt.Errorf("encode result: %w", err)
		o.inflight.Fail(ticket, err)
		resolved = true
		return models.PeriodicAffirmation{}, err
	}

	o.cachePut(ctx, key, raw, logger)
	o.storeHistory(ctx, ns, sessionID, append(history, text), logger)
	o.inflight.Complete(ticket, raw)
	resolved = true
	return result, nil
}

func (o *Orchestrator) invokePeriodic(ctx context.Context, ns fingerprint.Namespace, history []string) (string, error) {
	cadence := "today"
	if ns == fingerprint.Monthly {
		cadence = "this month"
	}

	var b strings.Builder
	b.WriteString("You are Sui Amor, a compassionate guide who writes short affirmations.\n")
	fmt.Fprintf(&b, "Write one warm, present-tense affirmation for the person to carry %s.\n", cadence)
	b.WriteString("Respond with ONLY the affirmation sentence, no quotes and no commentary.\n")
	system := b.String()

	user := "Write the affirmation."
	if len(history) > 0 {
		user = "Recently given affirmations, do not repeat any of them:\n- " + strings.Join(history, "\n- ") + "\n\nWrite a fresh affirmation."
	}

	var text string
	err := o.withRetry(ctx, "completion", func(ctx context.Context) error {
		var err error
		text, err = o.provider.Complete(ctx, system, user)
		return err
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if text == "" {
		return "", fmt.Errorf("%w: empty affirmation", models.ErrInvalidResult)
	}
	return text, nil
}

// loadHistory fetches the session's recent affirmations so new ones can be
// steered away from repeats. History lives in the session cache and is best
// effort like everything else there.
func (o *Orchestrator) loadHistory(ctx context.Context, ns fingerprint.Namespace, sessionID string, logger *zap.Logger) []string {
	entry, found, err := o.cache.Get(ctx, historyKey(ns, sessionID))
	if err != nil || !found {
		if err != nil {
			logger.Warn("history load failed", zap.Error(err))
		}
		return nil
	}
	var history []string
	if err := json.Unmarshal(entry.Payload, &history); err != nil {
		logger.Warn("history undecodable, resetting", zap.Error(err))
		return nil
	}
	return history
}

func (o *Orchestrator) storeHistory(ctx context.Context, ns fingerprint.Namespace, sessionID string, history []string, logger *zap.Logger) {
	if len(history) > o.cfg.HistorySize {
		history = history[len(history)-o.cfg.HistorySize:]
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return
	}
	// History outlives individual affirmations so dedup spans periods.
	if err := o.cache.Put(ctx, historyKey(ns, sessionID), raw, 45*24*time.Hour); err != nil {
		logger.Warn("history store failed", zap.Error(err))
	}
}

func historyKey(ns fingerprint.Namespace, sessionID string) string {
	return fmt.Sprintf("history:%s:%s", ns, sessionID)
}
