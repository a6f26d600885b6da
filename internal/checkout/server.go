// Package checkout hosts the provider's browser checkout on a local HTTP
// server and turns its single completion callback into a blocking Collect.
package checkout

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"orderbot/internal/logging"
	"orderbot/internal/payment"
	"orderbot/internal/types"
)

// Options configure the checkout page and how its URL reaches the user.
type Options struct {
	Addr        string
	Name        string
	Description string
	ThemeColor  string
	// Open is called with the checkout URL for each attempt. The default
	// logs it.
	Open func(url string) error
}

type result struct {
	proof types.PaymentProof
	err   error
}

type pending struct {
	directive types.PaymentDirective
	nonce     string
	result    chan result
}

// Host serves /checkout/{token} pages and collects their outcome. It
// implements payment.Collector.
type Host struct {
	router *chi.Mux
	opts   Options
	log    *zap.Logger

	mu      sync.Mutex
	pending map[string]*pending
	baseURL string
	server  *http.Server
}

var _ payment.Collector = (*Host)(nil)

func NewHost(opts Options, log *zap.Logger) *Host {
	log = logging.OrNop(log)
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	h := &Host{
		router:  chi.NewRouter(),
		opts:    opts,
		log:     log,
		pending: make(map[string]*pending),
		baseURL: "http://" + opts.Addr,
	}
	if h.opts.Open == nil {
		h.opts.Open = func(url string) error {
			log.Info("complete payment in browser", zap.String("url", url))
			return nil
		}
	}
	h.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*.razorpay.com"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	h.routes()
	return h
}

func (h *Host) routes() {
	h.router.Get("/health", h.handleHealth)
	h.router.Get("/checkout/{token}", h.handlePage)
	h.router.Post("/checkout/{token}/complete", h.handleComplete)
	h.router.Post("/checkout/{token}/dismiss", h.handleDismiss)
}

func (h *Host) Router() http.Handler { return h.router }

// Start listens on Options.Addr and serves until Shutdown.
func (h *Host) Start() error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("checkout listen %s: %w", h.opts.Addr, err)
	}
	srv := &http.Server{Handler: h.router, ReadHeaderTimeout: 10 * time.Second}

	h.mu.Lock()
	h.baseURL = "http://" + ln.Addr().String()
	h.server = srv
	h.mu.Unlock()

	h.log.Info("checkout host listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("checkout host stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the server and abandons every open checkout.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	srv := h.server
	h.server = nil
	open := h.pending
	h.pending = make(map[string]*pending)
	h.mu.Unlock()

	for _, p := range open {
		p.result <- result{err: fmt.Errorf("%w: checkout host shut down", payment.ErrAbandoned)}
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// BaseURL is where checkout pages are served.
func (h *Host) BaseURL() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.baseURL
}

// Collect opens a checkout page for d and waits for its one completion.
func (h *Host) Collect(ctx context.Context, d types.PaymentDirective) (types.PaymentProof, error) {
	token := randomToken()
	p := &pending{directive: d, nonce: randomToken(), result: make(chan result, 1)}

	h.mu.Lock()
	h.pending[token] = p
	url := h.baseURL + "/checkout/" + token
	h.mu.Unlock()
	defer h.take(token)

	if err := h.opts.Open(url); err != nil {
		return types.PaymentProof{}, fmt.Errorf("%w: open checkout: %w", payment.ErrAbandoned, err)
	}

	select {
	case r := <-p.result:
		return r.proof, r.err
	case <-ctx.Done():
		return types.PaymentProof{}, fmt.Errorf("%w: %w", payment.ErrAbandoned, ctx.Err())
	}
}

// claim hands the pending checkout for token to the request that completes
// it. It fails with a status code when the checkout is unknown or finished,
// or when the request does not come from the browser that opened the page.
func (h *Host) claim(r *http.Request, token string) (*pending, int) {
	p := h.peek(token)
	if p == nil {
		return nil, http.StatusGone
	}
	if nonce := checkoutCookie(r); nonce == "" || nonce != p.nonce {
		return nil, http.StatusForbidden
	}
	if p = h.take(token); p == nil {
		return nil, http.StatusGone
	}
	return p, http.StatusOK
}

// take removes and returns the pending checkout for token, so each one is
// completed at most once.
func (h *Host) take(token string) *pending {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[token]
	if !ok {
		return nil
	}
	delete(h.pending, token)
	return p
}

func (h *Host) peek(token string) *pending {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending[token]
}

func (h *Host) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GET /checkout/{token}
func (h *Host) handlePage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	p := h.peek(token)
	if p == nil {
		h.writeError(w, http.StatusNotFound, "unknown or finished checkout")
		return
	}
	data := pageData{
		Key:         p.directive.Key,
		Amount:      p.directive.Amount,
		Currency:    p.directive.Currency,
		OrderID:     p.directive.OrderID,
		Name:        h.opts.Name,
		Description: h.opts.Description,
		ThemeColor:  h.opts.ThemeColor,
		CompleteURL: "/checkout/" + token + "/complete",
		DismissURL:  "/checkout/" + token + "/dismiss",
	}
	setCheckoutCookie(w, token, p.nonce)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.log.Error("render checkout page", zap.Error(err))
	}
}

// POST /checkout/{token}/complete with the provider's proof
func (h *Host) handleComplete(w http.ResponseWriter, r *http.Request) {
	var proof types.PaymentProof
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(proof.PaymentID) == "" || strings.TrimSpace(proof.Signature) == "" {
		h.writeError(w, http.StatusBadRequest, "missing payment parameters")
		return
	}
	token := chi.URLParam(r, "token")
	p, code := h.claim(r, token)
	if p == nil {
		h.writeClaimError(w, code)
		return
	}
	p.result <- result{proof: proof}
	clearCheckoutCookie(w, token)
	h.log.Info("checkout completed",
		zap.String("provider_order_id", p.directive.OrderID),
		zap.String("provider_payment_id", proof.PaymentID))
	w.WriteHeader(http.StatusNoContent)
}

// POST /checkout/{token}/dismiss when the user closes the dialog
func (h *Host) handleDismiss(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	p, code := h.claim(r, token)
	if p == nil {
		h.writeClaimError(w, code)
		return
	}
	p.result <- result{err: fmt.Errorf("%w: dismissed by user", payment.ErrAbandoned)}
	clearCheckoutCookie(w, token)
	h.log.Info("checkout dismissed", zap.String("provider_order_id", p.directive.OrderID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Host) writeClaimError(w http.ResponseWriter, code int) {
	if code == http.StatusForbidden {
		h.writeError(w, code, "checkout was opened in another browser")
		return
	}
	h.writeError(w, code, "checkout already completed")
}

func (h *Host) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg})
}

func randomToken() string {
	var b [24]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
