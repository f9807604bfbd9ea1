package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/fieldsync/internal/mutation"
)

// IdempotencyHeader carries the record's idempotency key so the backend can
// drop replays of a mutation it already applied.
const IdempotencyHeader = "Idempotency-Key"

// maxErrorBody bounds how much of a failed response is kept in HTTPError.
const maxErrorBody = 512

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// mutationRequest is the JSON body of POST /mutations.
type mutationRequest struct {
	IdempotencyKey string             `json:"idempotency_key"`
	TenantID       string             `json:"tenant_id"`
	Resource       string             `json:"resource"`
	Operation      mutation.Operation `json:"operation"`
	RecordID       string             `json:"record_id"`
	Payload        mutation.Payload   `json:"payload"`
	CreatedAt      time.Time          `json:"created_at"`
}

// HTTPApplier posts mutations to {baseURL}/mutations.
type HTTPApplier struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPApplier creates an applier for baseURL. A nil httpClient gets a
// client with a 15s timeout. token, when set, is sent as a bearer token.
func NewHTTPApplier(baseURL, token string, httpClient *http.Client) *HTTPApplier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPApplier{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

// Apply implements Applier.
func (a *HTTPApplier) Apply(ctx context.Context, rec mutation.Record) error {
	body, err := json.Marshal(mutationRequest{
		IdempotencyKey: rec.IdempotencyKey,
		TenantID:       rec.TenantID,
		Resource:       rec.Resource,
		Operation:      rec.Operation,
		RecordID:       rec.RecordID,
		Payload:        rec.Payload,
		CreatedAt:      rec.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode mutation %d: %w", rec.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/mutations", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, rec.IdempotencyKey)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(msg)),
	}
}
