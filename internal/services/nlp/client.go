package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// Error carries the upstream status for a non-2xx NLP response. Handlers
// never see it; workers log it and let the message redeliver.
type Error struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("nlp %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client talks to the external NLP service over HTTP JSON
type Client struct {
	baseURL string
	client  *http.Client
	logger  arbor.ILogger
}

// NewClient creates an NLP client from config
func NewClient(cfg common.NLPConfig, logger arbor.ILogger) interfaces.NLPService {
	timeout := common.ParseDurationOr(cfg.RequestTimeout, 60*time.Second)
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ParseResume analyzes an uploaded resume document
func (c *Client) ParseResume(ctx context.Context, req models.NLPParseResumeRequest) (*models.NLPResumeAnalysis, error) {
	var analysis models.NLPResumeAnalysis
	if err := c.post(ctx, "/parse/resume", req, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ParseJob analyzes a job description document or pasted text
func (c *Client) ParseJob(ctx context.Context, req models.NLPParseJobRequest) (*models.NLPJobAnalysis, error) {
	var analysis models.NLPJobAnalysis
	if err := c.post(ctx, "/parse/job", req, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Match scores candidate skills against job requirements
func (c *Client) Match(ctx context.Context, req models.NLPMatchRequest) (*models.NLPMatchResponse, error) {
	var resp models.NLPMatchResponse
	if err := c.post(ctx, "/match", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("endpoint", endpoint).
			Msg("NLP request failed")
		return fmt.Errorf("nlp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("endpoint", endpoint).
			Str("response", string(snippet)).
			Msg("NLP service returned error")
		return &Error{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode nlp response: %w", err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("NLP request completed")

	return nil
}
