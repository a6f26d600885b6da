package checkout

import (
	"context"

	"orderbot/internal/cart"
	"orderbot/internal/types"
)

type verifierFunc func(ctx context.Context, p types.PaymentProof) (bool, error)

func (f verifierFunc) Verify(ctx context.Context, p types.PaymentProof) (bool, error) { return f(ctx, p) }

type nopNotifier struct{}

func (nopNotifier) OnBotMessage(string)     {}
func (nopNotifier) OnCartChanged(cart.View) {}
