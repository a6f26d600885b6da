// Package conversation runs chat turns for one embedded widget: it sends
// user text to the chatbot, applies the reply to the session identity and
// the cart, and hands payment directives to the payment orchestrator.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"orderbot/internal/cart"
	"orderbot/internal/chat"
	"orderbot/internal/logging"
	"orderbot/internal/payment"
	"orderbot/internal/store"
	"orderbot/internal/types"
)

// ErrorReply is shown when a chat turn could not be completed.
const ErrorReply = "Error talking to server. Please try again in a moment."

// Renderer receives everything the user should see. Calls may arrive from
// several goroutines at once.
type Renderer interface {
	OnUserMessage(text string)
	OnBotMessage(text string)
	OnCartChanged(v cart.View)
}

// TurnObserver is an optional Renderer extension bracketing each network
// round trip, e.g. to disable a send button while a turn is in flight.
type TurnObserver interface {
	OnTurnStarted(turn uint64)
	OnTurnFinished(turn uint64)
}

// Payments starts payment attempts. *payment.Orchestrator satisfies it.
type Payments interface {
	Start(ctx context.Context, d types.PaymentDirective) (*payment.Attempt, error)
	Wait()
}

// ItemSource lists items worth offering as quick-add buttons.
type ItemSource interface {
	PopularItems(ctx context.Context, restaurantID int) ([]types.PopularItem, error)
}

// Session is everything one embedding needs. It is built once and handed to
// New; nothing here is global.
type Session struct {
	RestaurantID int
	Store        *store.SessionStore
	Transport    chat.Transport
	Payments     Payments
	Renderer     Renderer

	// Items is consulted for quick-add labels when QuickItems is empty.
	Items      ItemSource
	QuickItems []string
	Greeting   string
	Log        *zap.Logger
}

// Controller turns user input into chat turns. Every submission runs on its
// own goroutine and its effects are applied in completion order, so replies
// to overlapping submissions may be rendered out of submission order.
type Controller struct {
	s   Session
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	turns  atomic.Uint64
}

func New(s Session) (*Controller, error) {
	var errs []error
	if s.Store == nil {
		errs = append(errs, errors.New("conversation: session store is required"))
	}
	if s.Transport == nil {
		errs = append(errs, errors.New("conversation: chat transport is required"))
	}
	if s.Payments == nil {
		errs = append(errs, errors.New("conversation: payments are required"))
	}
	if s.Renderer == nil {
		errs = append(errs, errors.New("conversation: renderer is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	s.Log = logging.OrNop(s.Log)
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		s:      s,
		log:    s.Log.With(zap.Int("restaurant_id", s.RestaurantID)),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start renders the initial widget state: an empty cart and the greeting.
func (c *Controller) Start() {
	c.s.Renderer.OnCartChanged(cart.Reconcile(nil))
	if c.s.Greeting != "" {
		c.s.Renderer.OnBotMessage(c.s.Greeting)
	}
}

// SubmitUserText echoes the trimmed text and sends it as one chat turn.
// Blank input is ignored. It returns before the turn completes.
func (c *Controller) SubmitUserText(raw string) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return
	}
	if c.ctx.Err() != nil {
		c.log.Debug("dropping input after close")
		return
	}

	c.s.Renderer.OnUserMessage(text)

	turn := c.turns.Add(1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runTurn(turn, text)
	}()
}

// QuickAdd asks the server to add item to the cart.
func (c *Controller) QuickAdd(item string) {
	item = strings.TrimSpace(item)
	if item == "" {
		return
	}
	c.SubmitUserText("add " + item)
}

func (c *Controller) Clear() { c.SubmitUserText("clear") }

func (c *Controller) Confirm() { c.SubmitUserText("confirm") }

// QuickItems returns the configured quick-add labels, falling back to the
// server's popular items. A server failure yields no labels.
func (c *Controller) QuickItems(ctx context.Context) []string {
	if len(c.s.QuickItems) > 0 {
		return append([]string(nil), c.s.QuickItems...)
	}
	if c.s.Items == nil {
		return nil
	}
	items, err := c.s.Items.PopularItems(ctx, c.s.RestaurantID)
	if err != nil {
		c.log.Warn("popular items unavailable", zap.Error(err))
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if name := strings.TrimSpace(it.Name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Wait blocks until every submitted turn and every payment attempt they
// started has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
	c.s.Payments.Wait()
}

// Close cancels outstanding turns and payment collection, then waits for
// them to unwind. Later submissions are dropped.
func (c *Controller) Close() {
	c.cancel()
	c.Wait()
}

func (c *Controller) runTurn(turn uint64, text string) {
	if obs, ok := c.s.Renderer.(TurnObserver); ok {
		obs.OnTurnStarted(turn)
		defer obs.OnTurnFinished(turn)
	}
	log := c.log.With(zap.Uint64("turn", turn))

	sid, err := c.s.Store.GetOrCreateSessionID(c.ctx)
	if err != nil {
		log.Warn("session identity not persisted", zap.Error(err))
	}

	res, err := c.s.Transport.Send(c.ctx, c.s.RestaurantID, sid, text)
	if err != nil {
		if c.ctx.Err() != nil {
			log.Debug("turn canceled", zap.Error(err))
			return
		}
		log.Warn("chat turn failed", zap.Error(err))
		c.s.Renderer.OnBotMessage(ErrorReply)
		c.s.Renderer.OnCartChanged(cart.Reconcile(nil))
		return
	}

	if res.SessionID != "" && res.SessionID != sid {
		if err := c.s.Store.UpdateSessionID(c.ctx, res.SessionID); err != nil {
			log.Warn("session identity not persisted", zap.Error(err))
		}
	}

	c.s.Renderer.OnBotMessage(res.Reply)
	// The attempt may clear the cart at any moment once started, so the
	// turn's own cart goes out first.
	c.s.Renderer.OnCartChanged(cart.Reconcile(res.Order))

	if res.Payment != nil {
		if _, err := c.s.Payments.Start(c.ctx, *res.Payment); err != nil {
			log.Warn("payment not started", zap.Error(err))
		}
	}
}
