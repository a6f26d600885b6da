package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"orderbot/internal/logging"
	"orderbot/internal/types"
)

const verifyPath = "/api/payments/verify/"

// VerifyClient posts provider proofs to the backend's verification endpoint.
type VerifyClient struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
}

func NewVerifyClient(baseURL string, timeout time.Duration, log *zap.Logger) *VerifyClient {
	log = logging.OrNop(log)
	return &VerifyClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

// Verify sends proof exactly once. It reports accepted only for
// {"status":"success"}; any other decodable answer, whatever the HTTP
// status, is a rejection. Failing to reach the server or to decode its
// answer returns an error wrapping ErrVerificationTransport.
func (v *VerifyClient) Verify(ctx context.Context, proof types.PaymentProof) (bool, error) {
	body, err := json.Marshal(proof)
	if err != nil {
		return false, fmt.Errorf("%w: encode proof: %w", ErrVerificationTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+verifyPath, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: build request: %w", ErrVerificationTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrVerificationTransport, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, fmt.Errorf("%w: read response: %w", ErrVerificationTransport, err)
	}
	var out types.VerifyResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return false, fmt.Errorf("%w: status %d, undecodable body %q: %w",
			ErrVerificationTransport, resp.StatusCode, strings.TrimSpace(string(b)), err)
	}
	if out.Status != "success" {
		v.log.Info("payment rejected by server",
			zap.String("provider_order_id", proof.OrderID),
			zap.Int("http_status", resp.StatusCode),
			zap.String("status", out.Status),
			zap.String("detail", out.Detail))
		return false, nil
	}
	return true, nil
}
