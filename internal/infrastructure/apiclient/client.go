// Package apiclient talks to a running server's HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"outreach-engine/internal/delivery/http/dto"
	"outreach-engine/internal/engine"
)

type Client interface {
	SubmitOpportunity(ctx context.Context, req dto.SubmitOpportunityRequest) (engine.SubmitResult, error)
	ProcessNext(ctx context.Context) (engine.ProcessResult, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// envelope is the server's response wrapper.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func New(baseURL string, logger *log.Logger) (Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("empty server address")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}, nil
}

func (c *httpClient) SubmitOpportunity(ctx context.Context, req dto.SubmitOpportunityRequest) (engine.SubmitResult, error) {
	var out engine.SubmitResult
	err := c.post(ctx, "/opportunities", req, &out)
	return out, err
}

func (c *httpClient) ProcessNext(ctx context.Context) (engine.ProcessResult, error) {
	var out engine.ProcessResult
	err := c.post(ctx, "/processor/run", nil, &out)
	return out, err
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	endpoint := c.baseURL + path

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("decode response from %s: status=%d: %w", endpoint, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("component=apiclient endpoint=%s status=%d message=%q", endpoint, resp.StatusCode, env.Message)
		return &StatusError{Code: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

var _ Client = (*httpClient)(nil)
