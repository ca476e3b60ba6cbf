package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dumb-meh/Sui-Amor/models"
)

// Generator is the orchestration surface the handlers depend on.
type Generator interface {
	GenerateAffirmations(ctx context.Context, sessionID string, payload models.QuizPayload) (models.GenerationResult, error)
	EvaluateQuiz(ctx context.Context, sessionID string, payload models.QuizPayload) (models.EvaluationResult, error)
	GenerateDaily(ctx context.Context, sessionID string) (models.PeriodicAffirmation, error)
	GenerateMonthly(ctx context.Context, sessionID string) (models.PeriodicAffirmation, error)
}

type AffirmationsHandler struct {
	Generator Generator
}

func (h *AffirmationsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.POST("/generate", h.generate)
	g.GET("/daily", h.daily)
	g.GET("/monthly", h.monthly)
}

func (h *AffirmationsHandler) generate(c echo.Context) error {
	payload, err := bindQuiz(c)
	if err != nil {
		return err
	}
	result, err := h.Generator.GenerateAffirmations(c.Request().Context(), userID(c), payload)
	if err != nil {
		return mapGenerationError(err)
	}
	return c.JSON(http.StatusOK, GenerateResponse{Affirmations: result.Affirmations})
}

func (h *AffirmationsHandler) daily(c echo.Context) error {
	result, err := h.Generator.GenerateDaily(c.Request().Context(), userID(c))
	if err != nil {
		return mapGenerationError(err)
	}
	return c.JSON(http.StatusOK, PeriodicResponse{Affirmation: result.Affirmation, Period: result.Period})
}

func (h *AffirmationsHandler) monthly(c echo.Context) error {
	result, err := h.Generator.GenerateMonthly(c.Request().Context(), userID(c))
	if err != nil {
		return mapGenerationError(err)
	}
	return c.JSON(http.StatusOK, PeriodicResponse{Affirmation: result.Affirmation, Period: result.Period})
}

type QuizHandler struct {
	Generator Generator
}

func (h *QuizHandler) Register(g *echo.Group, secret []byte) {
	g.Use(AuthMiddleware(secret))
	g.POST("/evaluate", h.evaluate)
}

func (h *QuizHandler) evaluate(c echo.Context) error {
	payload, err := bindQuiz(c)
	if err != nil {
		return err
	}
	result, err := h.Generator.EvaluateQuiz(c.Request().Context(), userID(c), payload)
	if err != nil {
		return mapGenerationError(err)
	}
	return c.JSON(http.StatusOK, EvaluateResponse{Score: result.Score, Commentary: result.Commentary})
}

func bindQuiz(c echo.Context) (models.QuizPayload, error) {
	var req QuizRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	payload := make(models.QuizPayload, 0, len(req.Answers))
	for _, a := range req.Answers {
		payload = append(payload, models.QuizAnswer{Question: a.Question, Answer: a.Answer})
	}
	if err := payload.Validate(); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return payload, nil
}

// mapGenerationError translates orchestration failures into HTTP statuses:
// caller mistakes are 400s, busy/transient conditions are 503s the client may
// retry, and a provider that keeps misbehaving is a 502.
func mapGenerationError(err error) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTicketTimeout):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "generation still in progress, retry shortly")
	case models.IsTransient(err):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "provider temporarily unavailable, retry shortly")
	case errors.Is(err, models.ErrInvalidResult):
		return echo.NewHTTPError(http.StatusBadGateway, "provider returned an unusable result")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request cancelled or timed out")
	default:
		var pe *models.ProviderError
		if errors.As(err, &pe) {
			return echo.NewHTTPError(http.StatusBadGateway, "provider rejected the request")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
