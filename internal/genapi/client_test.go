package genapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yugecina/MASSTOCK-YUGECINA-sub010/internal/domain"
)

func TestGenerateSuccess(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a red fox", req.Prompt)
		assert.Equal(t, "heavy", req.Model)

		json.NewEncoder(w).Encode(generateResponse{
			ImageB64:    base64.StdEncoding.EncodeToString(payload),
			ContentType: "image/png",
			CostCents:   12,
		})
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "test-key", Timeout: time.Second})
	res, err := c.Generate(context.Background(), Request{Prompt: "a red fox", ResourceClass: domain.ClassHeavy})
	require.NoError(t, err)
	assert.Equal(t, payload, res.Data)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, int64(12), res.CostCents)
}

func TestGenerateStatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{http.StatusTooManyRequests, KindRateLimited, true},
		{http.StatusInternalServerError, KindUpstream, true},
		{http.StatusBadGateway, KindUpstream, true},
		{http.StatusBadRequest, KindValidation, false},
		{http.StatusUnauthorized, KindAuth, false},
		{http.StatusForbidden, KindAuth, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(generateResponse{Error: "nope"})
			}))
			defer srv.Close()

			c := NewClient(Config{URL: srv.URL, Timeout: time.Second})
			_, err := c.Generate(context.Background(), Request{Prompt: "x"})
			require.Error(t, err)

			apiErr, ok := err.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.retryable, apiErr.Transient())
			assert.Contains(t, apiErr.Message, "nope")
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Generate(context.Background(), Request{Prompt: "slow"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, apiErr.Kind)
	assert.True(t, apiErr.Transient())
}
