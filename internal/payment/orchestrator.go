// Package payment drives one payment attempt per directive: collect the
// payment through an external provider, verify the proof with the backend,
// and report the outcome exactly once.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"orderbot/internal/cart"
	"orderbot/internal/logging"
	"orderbot/internal/types"
)

// User-facing copy for each step of an attempt.
const (
	MsgVerifying          = "Verifying your payment, please wait..."
	MsgConfirmed          = "Payment successful. Your order is confirmed."
	MsgRejected           = "Payment failed. Please try again."
	MsgVerificationFailed = "Could not verify payment. Please contact staff."
	MsgInProgress         = "A payment for this order is already in progress."
	MsgCannotStart        = "Payment could not be started. Please try again."
)

type State string

const (
	StateIdle               State = "idle"
	StateCollecting         State = "collecting"
	StateVerifying          State = "verifying"
	StateConfirmed          State = "confirmed"
	StateRejected           State = "rejected"
	StateVerificationFailed State = "verification_failed"
	StateAbandoned          State = "abandoned"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateRejected, StateVerificationFailed, StateAbandoned:
		return true
	}
	return false
}

const (
	evOpen           = "open"
	evProof          = "proof"
	evConfirm        = "confirm"
	evReject         = "reject"
	evTransportError = "transport_error"
	evAbandon        = "abandon"
)

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeVerificationError
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeVerificationError:
		return "verification_error"
	case OutcomeAbandoned:
		return "abandoned"
	}
	return "pending"
}

// Collector opens the provider's payment step for a directive and blocks
// until the provider reports back. It returns ErrAbandoned (possibly
// wrapped) when the user gives up or the provider fails.
type Collector interface {
	Collect(ctx context.Context, d types.PaymentDirective) (types.PaymentProof, error)
}

// Verifier confirms a provider proof with the backend.
type Verifier interface {
	Verify(ctx context.Context, proof types.PaymentProof) (accepted bool, err error)
}

// Notifier receives the user-visible effects of an attempt.
type Notifier interface {
	OnBotMessage(text string)
	OnCartChanged(v cart.View)
}

// Attempt is a single run of the state machine for one directive.
type Attempt struct {
	ID        string
	Directive types.PaymentDirective

	machine *fsm.FSM
	done    chan struct{}

	mu      sync.Mutex
	outcome Outcome
	err     error
}

func newAttempt(d types.PaymentDirective, log *zap.Logger) *Attempt {
	a := &Attempt{
		ID:        uuid.NewString(),
		Directive: d,
		done:      make(chan struct{}),
	}
	a.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: evOpen, Src: []string{string(StateIdle)}, Dst: string(StateCollecting)},
			{Name: evProof, Src: []string{string(StateCollecting)}, Dst: string(StateVerifying)},
			{Name: evAbandon, Src: []string{string(StateCollecting)}, Dst: string(StateAbandoned)},
			{Name: evConfirm, Src: []string{string(StateVerifying)}, Dst: string(StateConfirmed)},
			{Name: evReject, Src: []string{string(StateVerifying)}, Dst: string(StateRejected)},
			{Name: evTransportError, Src: []string{string(StateVerifying)}, Dst: string(StateVerificationFailed)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debug("payment state",
					zap.String("attempt", a.ID),
					zap.String("provider_order_id", d.OrderID),
					zap.String("from", e.Src),
					zap.String("to", e.Dst))
			},
		},
	)
	return a
}

// State is the attempt's current state.
func (a *Attempt) State() State { return State(a.machine.Current()) }

// Done is closed once the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Outcome is OutcomePending until Done is closed.
func (a *Attempt) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// Err holds the collector or verifier error behind an Abandoned or
// VerificationError outcome.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Attempt) fire(ctx context.Context, event string) error {
	// Cancellation must not strand an attempt between states.
	if err := a.machine.Event(context.WithoutCancel(ctx), event); err != nil {
		return fmt.Errorf("payment attempt %s: event %s from %s: %w", a.ID, event, a.machine.Current(), err)
	}
	return nil
}

func (a *Attempt) finish(o Outcome, err error) {
	a.mu.Lock()
	a.outcome = o
	a.err = err
	a.mu.Unlock()
	close(a.done)
}

// Orchestrator starts and tracks payment attempts. Distinct provider orders
// run as independent attempts; a second directive for an order that is
// still in flight is refused. Nothing is ever retried.
type Orchestrator struct {
	collector Collector
	verifier  Verifier
	notify    Notifier
	log       *zap.Logger

	mu       sync.Mutex
	inFlight map[string]*Attempt
	wg       sync.WaitGroup
}

func NewOrchestrator(collector Collector, verifier Verifier, notify Notifier, log *zap.Logger) *Orchestrator {
	log = logging.OrNop(log)
	return &Orchestrator{
		collector: collector,
		verifier:  verifier,
		notify:    notify,
		log:       log,
		inFlight:  make(map[string]*Attempt),
	}
}

// Start opens one provider session for d and returns immediately; the
// attempt then runs to a terminal state on its own goroutine.
func (o *Orchestrator) Start(ctx context.Context, d types.PaymentDirective) (*Attempt, error) {
	if d.OrderID == "" || d.Key == "" || d.Amount <= 0 {
		o.log.Warn("ignoring invalid payment directive",
			zap.String("provider_order_id", d.OrderID),
			zap.Int64("amount", d.Amount))
		o.notify.OnBotMessage(MsgCannotStart)
		return nil, fmt.Errorf("%w: order_id=%q amount=%d", ErrInvalidDirective, d.OrderID, d.Amount)
	}

	o.mu.Lock()
	if prev, ok := o.inFlight[d.OrderID]; ok {
		o.mu.Unlock()
		o.log.Info("payment already in progress",
			zap.String("provider_order_id", d.OrderID),
			zap.String("attempt", prev.ID))
		o.notify.OnBotMessage(MsgInProgress)
		return nil, fmt.Errorf("%w %s", ErrAttemptInFlight, d.OrderID)
	}
	a := newAttempt(d, o.log)
	o.inFlight[d.OrderID] = a
	o.wg.Add(1)
	o.mu.Unlock()

	if err := a.fire(ctx, evOpen); err != nil {
		o.release(a)
		o.wg.Done()
		return nil, err
	}
	o.log.Info("payment collection opened",
		zap.String("attempt", a.ID),
		zap.String("provider_order_id", d.OrderID),
		zap.Int64("amount", d.Amount),
		zap.String("currency", d.Currency))

	go func() {
		defer o.wg.Done()
		o.run(ctx, a)
	}()
	return a, nil
}

// Wait blocks until every started attempt is terminal.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// finish frees the order for new directives, then publishes the outcome.
func (o *Orchestrator) finish(a *Attempt, out Outcome, err error) {
	o.release(a)
	a.finish(out, err)
}

func (o *Orchestrator) release(a *Attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight[a.Directive.OrderID] == a {
		delete(o.inFlight, a.Directive.OrderID)
	}
}

func (o *Orchestrator) run(ctx context.Context, a *Attempt) {
	log := o.log.With(zap.String("attempt", a.ID), zap.String("provider_order_id", a.Directive.OrderID))

	proof, err := o.collector.Collect(ctx, a.Directive)
	if err != nil {
		if !errors.Is(err, ErrAbandoned) {
			err = fmt.Errorf("%w: %w", ErrAbandoned, err)
		}
		o.transition(ctx, a, evAbandon, log)
		log.Info("payment collection abandoned", zap.Error(err))
		o.finish(a, OutcomeAbandoned, err)
		return
	}
	if proof.OrderID == "" {
		proof.OrderID = a.Directive.OrderID
	}

	o.transition(ctx, a, evProof, log)
	o.notify.OnBotMessage(MsgVerifying)

	accepted, err := o.verifier.Verify(ctx, proof)
	switch {
	case err != nil:
		if !errors.Is(err, ErrVerificationTransport) {
			err = fmt.Errorf("%w: %w", ErrVerificationTransport, err)
		}
		o.transition(ctx, a, evTransportError, log)
		log.Error("payment verification failed", zap.String("provider_payment_id", proof.PaymentID), zap.Error(err))
		o.notify.OnBotMessage(MsgVerificationFailed)
		o.finish(a, OutcomeVerificationError, err)
	case accepted:
		o.transition(ctx, a, evConfirm, log)
		log.Info("payment confirmed", zap.String("provider_payment_id", proof.PaymentID))
		o.notify.OnBotMessage(MsgConfirmed)
		o.notify.OnCartChanged(cart.Reconcile(nil))
		o.finish(a, OutcomeSuccess, nil)
	default:
		o.transition(ctx, a, evReject, log)
		o.notify.OnBotMessage(MsgRejected)
		o.finish(a, OutcomeFailed, nil)
	}
}

func (o *Orchestrator) transition(ctx context.Context, a *Attempt, event string, log *zap.Logger) {
	if err := a.fire(ctx, event); err != nil {
		log.Error("illegal payment transition", zap.Error(err))
	}
}
