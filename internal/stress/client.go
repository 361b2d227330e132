// Package stress talks to the stress-analysis service and scores the PSS-10
// questionnaire locally.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"AldebaranChat/internal/api"
	"AldebaranChat/internal/backend"
)

var ErrServiceFailed = errors.New("stress service reported a failure")

// Requester is the transport the client sends its requests through
type Requester interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

// Client is the stress-analysis service client
type Client struct {
	http   Requester
	logger *slog.Logger
}

// New returns a client sending requests through r
func New(r Requester, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: r, logger: logger}
}

// NewHTTP builds the stress service transport for baseURL
func NewHTTP(baseURL string, opts ...api.Option) *api.Client {
	return api.New(baseURL, append([]api.Option{api.WithService("stress")}, opts...)...)
}

func unwrap[T any](env backend.Envelope[T]) (T, error) {
	if env.Success {
		return env.Data, nil
	}
	var zero T
	msg := env.Error
	if msg == "" {
		msg = "unknown error"
	}
	if env.Details != "" {
		msg += ": " + env.Details
	}
	return zero, fmt.Errorf("%w: %s", ErrServiceFailed, msg)
}

// Questions fetches the questionnaire. When that fails the built-in set is
// returned together with the error so the caller can still proceed.
func (c *Client) Questions(ctx context.Context) (backend.QuestionnaireData, error) {
	var env backend.Envelope[backend.QuestionnaireData]
	err := c.http.Do(ctx, http.MethodGet, "/api/questions", nil, &env)
	if err == nil {
		var data backend.QuestionnaireData
		data, err = unwrap(env)
		if err == nil && len(data.Questions) > 0 {
			if len(data.ResponseOptions) == 0 {
				data.ResponseOptions = append([]backend.ResponseOption(nil), ResponseOptions...)
			}
			return data, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: empty question set", ErrServiceFailed)
		}
	}

	c.logger.Warn("using built-in questions", "error", err)
	return Fallback(), fmt.Errorf("failed to load questions: %w", err)
}

// Analyze sends the answers with optional metadata for a full analysis
func (c *Client) Analyze(ctx context.Context, responses []int, userInfo map[string]any) (backend.AnalysisResults, error) {
	if err := Validate(responses); err != nil {
		return backend.AnalysisResults{}, err
	}

	var env backend.Envelope[backend.AnalysisResults]
	req := backend.AnalyzeRequest{Responses: responses, UserInfo: userInfo}
	if err := c.http.Do(ctx, http.MethodPost, "/api/analyze", req, &env); err != nil {
		c.logger.Error("stress analysis failed", "error", err)
		return backend.AnalysisResults{}, fmt.Errorf("failed to analyze stress levels: %w", err)
	}

	res, err := unwrap(env)
	if err != nil {
		c.logger.Error("stress analysis rejected", "error", err)
		return backend.AnalysisResults{}, err
	}
	c.logger.Info("stress analysis completed",
		"score", res.PSS10Results.TotalScore,
		"predicted_level", res.MLPrediction.PredictedLevel)
	return res, nil
}

// QuickScore asks the service for the PSS-10 score without the model
func (c *Client) QuickScore(ctx context.Context, responses []int) (backend.PSS10Results, error) {
	if err := Validate(responses); err != nil {
		return backend.PSS10Results{}, err
	}

	var env backend.Envelope[backend.PSS10Results]
	if err := c.http.Do(ctx, http.MethodPost, "/api/quick-score", backend.AnalyzeRequest{Responses: responses}, &env); err != nil {
		c.logger.Error("quick score failed", "error", err)
		return backend.PSS10Results{}, fmt.Errorf("failed to calculate score: %w", err)
	}
	return unwrap(env)
}

// Health reports whether the service is up
func (c *Client) Health(ctx context.Context) (backend.Health, error) {
	var h backend.Health
	if err := c.http.Do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return h, fmt.Errorf("stress service unhealthy: %w", err)
	}
	return h, nil
}
