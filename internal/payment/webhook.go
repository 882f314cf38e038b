package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/comigor/campbot/internal/commerce"
	"github.com/comigor/campbot/internal/logger"
)

// OrderUpdater is the order-mutation surface the webhook path needs.
type OrderUpdater interface {
	MarkOrderPaid(ctx context.Context, orderID int64, ref commerce.PaymentRef) (bool, error)
	MarkOrderFailed(ctx context.Context, orderID int64) (bool, error)
}

// Webhook actions reported in Outcome.
const (
	ActionOrderPaid     = "order_updated"
	ActionAlreadyPaid   = "already_paid"
	ActionOrderFailed   = "order_failed"
	ActionNoOrderID     = "no_order_id"
	ActionPaymentLogged = "payment_logged"
	ActionFailureLogged = "payment_failed_logged"
	ActionIgnored       = "ignored"
)

// Outcome reports what HandleEvent did with an event.
type Outcome struct {
	Action  string `json:"action"`
	OrderID int64  `json:"order_id,omitempty"`
}

// VerifyWebhook checks the Stripe-Signature header against the raw payload.
func (g *Gateway) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	if g.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrSignatureInvalid)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return &ev, nil
}

type eventObject struct {
	ID               string            `json:"id"`
	PaymentIntent    string            `json:"payment_intent"`
	Amount           int64             `json:"amount"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (o *eventObject) orderID() int64 {
	id, err := strconv.ParseInt(o.Metadata["order_id"], 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// HandleEvent applies a verified event to the order it references. Replays of
// the same event leave the order unchanged. An error means the order could not
// be updated and Stripe should retry.
func (g *Gateway) HandleEvent(ctx context.Context, ev *stripe.Event) (Outcome, error) {
	var obj eventObject
	if ev.Data != nil && len(ev.Data.Raw) > 0 {
		if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
			return Outcome{}, fmt.Errorf("decode %s event object: %w", ev.Type, err)
		}
	}
	log := logger.L.With("event_id", ev.ID, "event_type", string(ev.Type))

	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		orderID := obj.orderID()
		if orderID == 0 {
			log.Warn("checkout completed without order id")
			return Outcome{Action: ActionNoOrderID}, nil
		}
		changed, err := g.orders.MarkOrderPaid(ctx, orderID, commerce.PaymentRef{SessionID: obj.ID, PaymentIntent: obj.PaymentIntent})
		if err != nil {
			return Outcome{OrderID: orderID}, fmt.Errorf("mark order %d paid: %w", orderID, err)
		}
		if !changed {
			log.Info("order already paid", "order_id", orderID)
			return Outcome{Action: ActionAlreadyPaid, OrderID: orderID}, nil
		}
		log.Info("order marked paid", "order_id", orderID)
		return Outcome{Action: ActionOrderPaid, OrderID: orderID}, nil

	case stripe.EventTypePaymentIntentSucceeded:
		log.Info("payment succeeded", "payment_intent", obj.ID, "amount", obj.Amount)
		return Outcome{Action: ActionPaymentLogged}, nil

	case stripe.EventTypePaymentIntentPaymentFailed:
		reason := ""
		if obj.LastPaymentError != nil {
			reason = obj.LastPaymentError.Message
		}
		log.Warn("payment failed", "payment_intent", obj.ID, "reason", reason)
		orderID := obj.orderID()
		if orderID == 0 {
			return Outcome{Action: ActionFailureLogged}, nil
		}
		if _, err := g.orders.MarkOrderFailed(ctx, orderID); err != nil {
			return Outcome{OrderID: orderID}, fmt.Errorf("mark order %d failed: %w", orderID, err)
		}
		return Outcome{Action: ActionOrderFailed, OrderID: orderID}, nil

	default:
		log.Debug("ignoring webhook event")
		return Outcome{Action: ActionIgnored}, nil
	}
}
