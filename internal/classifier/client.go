// Package classifier talks to the external ticket classification service.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
)

// ErrNotConfigured is returned when no classifier URL is set.
var ErrNotConfigured = errors.New("classifier: endpoint not configured")

// Client classifies a ticket from its subject and description.
type Client interface {
	Classify(ctx context.Context, subject, description string) (domain.ClassificationResult, error)
}

type request struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

type response struct {
	Category       string   `json:"category"`
	Urgency        string   `json:"urgency"`
	Department     string   `json:"department"`
	SuggestedReply string   `json:"suggestedReply"`
	SLAHours       *float64 `json:"slaHours"`
}

// HTTPClient calls the classification service over HTTP.
type HTTPClient struct {
	rest   *resty.Client
	url    string
	logger *zap.Logger
}

// NewHTTPClient builds a resty-backed client. The per-call deadline comes from ctx;
// the client timeout is a backstop.
func NewHTTPClient(cfg config.ClassifierConfig, logger *zap.Logger) *HTTPClient {
	rest := resty.New().
		SetTimeout(cfg.Timeout()).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		rest.SetAuthToken(cfg.APIKey)
	}
	return &HTTPClient{rest: rest, url: cfg.URL, logger: logger}
}

func (c *HTTPClient) Classify(ctx context.Context, subject, description string) (domain.ClassificationResult, error) {
	if c.url == "" {
		return domain.ClassificationResult{}, ErrNotConfigured
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(request{Subject: subject, Description: description}).
		Post(c.url)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("classifier request: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("classifier returned error status",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 256)))
		return domain.ClassificationResult{}, fmt.Errorf("classifier status %d", resp.StatusCode())
	}
	return ParseResponse(resp.Body())
}

// ParseResponse decodes a classifier payload. Model output sometimes arrives wrapped in
// a markdown code fence or surrounded by prose, so the first JSON object is extracted.
// A missing or zero slaHours is derived from urgency.
func ParseResponse(body []byte) (domain.ClassificationResult, error) {
	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		obj, ok := extractObject(body)
		if !ok {
			return domain.ClassificationResult{}, fmt.Errorf("decode classifier response: %w", err)
		}
		if err := json.Unmarshal(obj, &out); err != nil {
			return domain.ClassificationResult{}, fmt.Errorf("decode classifier response: %w", err)
		}
	}

	result := domain.ClassificationResult{
		Category:       strings.TrimSpace(out.Category),
		Urgency:        strings.TrimSpace(out.Urgency),
		Department:     strings.TrimSpace(out.Department),
		SuggestedReply: strings.TrimSpace(out.SuggestedReply),
	}
	if out.SLAHours != nil && *out.SLAHours != 0 {
		result.SLAHours = *out.SLAHours
	} else if u, err := domain.ParseUrgency(result.Urgency); err == nil {
		result.SLAHours = domain.SLAHoursForUrgency(u)
	}
	return result, nil
}

func extractObject(body []byte) ([]byte, bool) {
	text := bytes.TrimSpace(body)
	if i := bytes.Index(text, []byte("```")); i >= 0 {
		text = text[i+3:]
		text = bytes.TrimPrefix(text, []byte("json"))
		if j := bytes.Index(text, []byte("```")); j >= 0 {
			text = text[:j]
		}
	}
	start := bytes.IndexByte(text, '{')
	end := bytes.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return text[start : end+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
