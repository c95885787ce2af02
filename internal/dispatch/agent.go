package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPAgent forwards alerts to an external executor over HTTP. The executor
// owns the actual reaction (selling, rebalancing, analysis); this side only
// reports and waits for acknowledgement.
type HTTPAgent struct {
	url        string
	httpClient *http.Client
}

// NewHTTPAgent creates an agent posting alerts to the given executor URL.
func NewHTTPAgent(url string, timeout time.Duration) *HTTPAgent {
	return &HTTPAgent{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *HTTPAgent) Name() string { return "http_executor" }

// Invoke posts the alert and treats any non-2xx response as failure.
func (a *HTTPAgent) Invoke(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(map[string]any{
		"rule":             alert.Rule,
		"category":         alert.Category,
		"assetId":          alert.AssetID,
		"message":          alert.Message,
		"firedAt":          alert.FiredAt,
		"snapshot":         alert.Snapshot,
		"previousSnapshot": alert.Previous,
	})
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("executor returned status %d", resp.StatusCode)
	}
	return nil
}

// LogAgent acknowledges alerts without acting on them. Used when no executor
// is configured, keeping the trigger pipeline observable end to end.
type LogAgent struct {
	log zerolog.Logger
}

// NewLogAgent creates a log-only agent.
func NewLogAgent(log zerolog.Logger) *LogAgent {
	return &LogAgent{log: log.With().Str("agent", "log").Logger()}
}

func (a *LogAgent) Name() string { return "log" }

func (a *LogAgent) Invoke(_ context.Context, alert Alert) error {
	a.log.Warn().
		Str("rule", alert.Rule).
		Str("category", string(alert.Category)).
		Str("asset", alert.AssetID).
		Str("message", alert.Message).
		Msg("alert acknowledged without executor")
	return nil
}
