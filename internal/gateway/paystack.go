package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultPaystackBaseURL = "https://api.paystack.co"

// PaystackVerifier calls the provider's verify-transaction endpoint.
type PaystackVerifier struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewPaystackVerifier(baseURL, secretKey string, timeout time.Duration) *PaystackVerifier {
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PaystackVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

// VerifyReference returns the customer email for a successful transaction.
func (v *PaystackVerifier) VerifyReference(ctx context.Context, reference string) (string, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", v.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("verify reference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrReferenceNotFound
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read verify response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("verify reference: provider returned %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode verify response: %w", err)
	}
	if !out.Status || out.Data.Customer.Email == "" {
		return "", ErrReferenceNotFound
	}
	return out.Data.Customer.Email, nil
}
