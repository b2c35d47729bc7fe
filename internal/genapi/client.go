// Package genapi talks to the external image-generation API. Its
// request/response shape is owned by the provider; only the failure
// taxonomy leaks out, as *APIError kinds consumed by the retry policy.
package genapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

// Request is one generation call.
type Request struct {
	Prompt        string
	ResourceClass domain.ResourceClass
}

// Result is a successful generation: raw artifact bytes plus the
// provider-billed cost.
type Result struct {
	Data        []byte
	ContentType string
	CostCents   int64
}

// Generator is the API-call collaborator consumed by the batch executor.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration // per-attempt
}

// Client is the HTTP implementation of Generator.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Client{cfg: cfg, http: &http.Client{}}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

type generateResponse struct {
	ImageB64    string `json:"image_b64"`
	ContentType string `json:"content_type"`
	CostCents   int64  `json:"cost_cents"`
	Error       string `json:"error"`
}

func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Prompt: req.Prompt, Model: req.ResourceClass.String()})
	if err != nil {
		return nil, &APIError{Kind: KindValidation, Message: err.Error()}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Kind: KindValidation, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &APIError{Kind: KindUpstream, Message: "decoding response: " + err.Error()}
	}
	data, err := base64.StdEncoding.DecodeString(out.ImageB64)
	if err != nil {
		return nil, &APIError{Kind: KindUpstream, Message: "decoding image payload: " + err.Error()}
	}
	contentType := out.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	return &Result{Data: data, ContentType: contentType, CostCents: out.CostCents}, nil
}

func transportError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Message: err.Error()}
	}
	return &APIError{Kind: KindUpstream, Message: err.Error()}
}

func statusError(resp *http.Response) *APIError {
	msg := readErrorMessage(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{Kind: KindRateLimited, StatusCode: resp.StatusCode, Message: msg}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &APIError{Kind: KindAuth, StatusCode: resp.StatusCode, Message: msg}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &APIError{Kind: KindUpstream, StatusCode: resp.StatusCode, Message: msg}
	default:
		return &APIError{Kind: KindValidation, StatusCode: resp.StatusCode, Message: msg}
	}
}

func readErrorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return "no response body"
	}
	var body generateResponse
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return body.Error
	}
	return fmt.Sprintf("%.200s", string(b))
}
