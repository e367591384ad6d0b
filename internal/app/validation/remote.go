package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RemoteValidator asks an external service for a verdict:
// POST {base}/validate with a Request body, answered by {"valid": bool}.
type RemoteValidator struct {
	baseURL string
	client  *http.Client
}

func NewRemoteValidator(baseURL string, client *http.Client) *RemoteValidator {
	return &RemoteValidator{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type remoteResponse struct {
	Valid *bool `json:"valid"`
}

func (v *RemoteValidator) Validate(ctx context.Context, req Request) (Verdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal validation request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("validator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode validator response: %w", err)
	}
	if out.Valid == nil {
		return "", fmt.Errorf("validator response is missing the valid field")
	}
	if *out.Valid {
		return VerdictValid, nil
	}
	return VerdictInvalid, nil
}
