package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"orderbot/internal/logging"
	"orderbot/internal/types"
)

// NoReply is shown when the server answers without a reply text.
const NoReply = "No reply received from server."

const (
	chatPath         = "/api/chatbot/simple/"
	popularItemsPath = "/api/chatbot/popular-items/"
)

// ErrNetwork marks a chat exchange that did not complete or whose body
// could not be decoded.
var ErrNetwork = errors.New("chat: network error")

// TurnResult is the decoded outcome of one chat turn.
type TurnResult struct {
	Reply     string
	SessionID types.SessionID
	Order     *types.OrderSnapshot
	Payment   *types.PaymentDirective
}

// Transport sends one user utterance and returns the server's reply.
type Transport interface {
	Send(ctx context.Context, restaurantID int, sessionID types.SessionID, text string) (*TurnResult, error)
}

// Client talks to the chatbot HTTP API. It never retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *zap.Logger
}

// NewClient builds a client for baseURL. A zero timeout leaves requests
// bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	log = logging.OrNop(log)
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

// Send issues exactly one POST to the chat endpoint.
func (c *Client) Send(ctx context.Context, restaurantID int, sessionID types.SessionID, text string) (*TurnResult, error) {
	body, err := json.Marshal(types.ChatRequest{
		RestaurantID: restaurantID,
		SessionID:    sessionID,
		Message:      text,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrNetwork, err)
	}

	// The chatbot answers errors with a JSON reply too, so the status only
	// matters when the body cannot be decoded.
	var resp types.ChatResponse
	status, err := c.doJSON(ctx, http.MethodPost, chatPath, bytes.NewReader(body), &resp)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		c.log.Warn("chat turn answered with error status",
			zap.String("session_id", string(sessionID)),
			zap.Int("http_status", status))
	}

	out := &TurnResult{
		Reply:     NoReply,
		SessionID: resp.SessionID,
		Order:     resp.Order,
		Payment:   resp.Payment,
	}
	if resp.Reply != nil && *resp.Reply != "" {
		out.Reply = *resp.Reply
	}
	c.log.Debug("chat turn",
		zap.String("session_id", string(sessionID)),
		zap.Bool("order", out.Order != nil),
		zap.Bool("payment", out.Payment != nil))
	return out, nil
}

// PopularItems lists the restaurant's most ordered menu items.
func (c *Client) PopularItems(ctx context.Context, restaurantID int) ([]types.PopularItem, error) {
	u := url.URL{Path: popularItemsPath}
	q := url.Values{}
	q.Set("restaurant_id", strconv.Itoa(restaurantID))
	u.RawQuery = q.Encode()

	var resp types.PopularItemsResponse
	status, err := c.doJSON(ctx, http.MethodGet, u.String(), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrNetwork, popularItemsPath, status)
	}
	return resp.Items, nil
}

// doJSON performs one request and decodes the body into out whatever the
// status. Only transport failures and undecodable bodies are errors.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read %s response: %w", ErrNetwork, path, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %s %s returned %d, undecodable body %q: %w",
			ErrNetwork, method, path, resp.StatusCode, strings.TrimSpace(string(truncate(b, 512))), err)
	}
	return resp.StatusCode, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
