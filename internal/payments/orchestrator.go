package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/brewpay/brewbot/internal/domain"
	"github.com/brewpay/brewbot/internal/gateway"
	"github.com/brewpay/brewbot/internal/keyed"
)

// orderDeadline is the fixed horizon between order creation and expiry.
const orderDeadline = 24 * time.Hour

var (
	tracer = otel.Tracer("payments")
	meter  = otel.Meter("payments")
)

// OrderStore is the persistence surface the orchestrator needs.
type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByPayID(ctx context.Context, payID string) (*domain.Order, error)
	CompareAndUpdate(ctx context.Context, payID string, observed, next domain.Status, st domain.Settlement) (bool, error)
}

// ItemSource resolves purchasable items.
type ItemSource interface {
	GetByID(ctx context.Context, id int64) (*domain.Item, error)
}

// Gateway is the payment gateway surface: create, authoritative fetch,
// reference minting and the client-facing payment link.
type Gateway interface {
	NewOrderRef() string
	CreateDeposit(ctx context.Context, orderRef, amount string, deadline time.Time) (*gateway.PaymentResponse, error)
	GetDeposit(ctx context.Context, payID string) (*gateway.PaymentResponse, error)
	PaymentURL(item domain.Item, payID string) string
}

// Notifier pushes a status change into the order's chat.
type Notifier interface {
	Notify(ctx context.Context, order *domain.Order)
}

// Outcome classifies a reconciliation. The webhook intake acknowledges
// everything except a returned error, which asks for redelivery.
type Outcome int

const (
	// OutcomeNotOurs: no stored order for the notified payment id.
	// Terminal, silent; protects against forged or stale notifications.
	OutcomeNotOurs Outcome = iota
	// OutcomeAwaitingGateway: we know the order but the gateway does not
	// have it yet. Acknowledge and wait for a future notification.
	OutcomeAwaitingGateway
	// OutcomeUnchanged: authoritative status equals the stored one, or a
	// concurrent delivery already applied the change.
	OutcomeUnchanged
	// OutcomeUpdated: status and settlement were persisted and the chat
	// was notified.
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotOurs:
		return "not_ours"
	case OutcomeAwaitingGateway:
		return "awaiting_gateway"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUpdated:
		return "updated"
	}
	return "unknown"
}

// Orchestrator owns the payment order lifecycle: creation against the
// gateway and reconciliation of asynchronous notifications with the
// gateway's authoritative state.
type Orchestrator struct {
	store    OrderStore
	items    ItemSource
	gw       Gateway
	notifier Notifier
	locks    *keyed.Mutex
	logger   *slog.Logger
	nowFunc  func() time.Time

	reconciles metric.Int64Counter
}

func NewOrchestrator(store OrderStore, items ItemSource, gw Gateway, notifier Notifier, logger *slog.Logger) *Orchestrator {
	reconciles, _ := meter.Int64Counter("payments.reconcile.outcomes",
		metric.WithDescription("Reconciliation outcomes by class"))

	return &Orchestrator{
		store:      store,
		items:      items,
		gw:         gw,
		notifier:   notifier,
		locks:      keyed.NewMutex(),
		logger:     logger,
		nowFunc:    time.Now,
		reconciles: reconciles,
	}
}

// CreateOrder opens a gateway order for the item and persists the local
// record. One outbound call, one durable write; a failure of either
// surfaces to the caller with nothing retried here.
func (o *Orchestrator) CreateOrder(ctx context.Context, itemID, chatID int64) (*domain.Order, string, error) {
	ctx, span := tracer.Start(ctx, "payments.create_order")
	defer span.End()

	if chatID == 0 {
		return nil, "", fmt.Errorf("chat id: %w", domain.ErrNotFound)
	}

	item, err := o.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve item %d: %w", itemID, err)
	}
	if item == nil {
		return nil, "", fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
	}

	ref := o.gw.NewOrderRef()
	deadline := o.nowFunc().Add(orderDeadline)

	resp, err := o.gw.CreateDeposit(ctx, ref, item.PriceAmount(), deadline)
	if err != nil {
		return nil, "", fmt.Errorf("create deposit: %w", err)
	}

	order := &domain.Order{
		ID:             ref,
		PayID:          resp.Payment.PayID,
		Status:         domain.StatusPending,
		Receiver:       resp.Payment.Receiver,
		Amount:         resp.Payment.Amount,
		OriginalAmount: resp.Payment.OriginalAmount,
		MaxFeeAmount:   resp.Payment.MaxFeeAmount,
		ChatID:         chatID,
		Deadline:       deadline,
	}
	if err := o.store.Create(ctx, order); err != nil {
		return nil, "", fmt.Errorf("persist order: %w", err)
	}

	o.logger.InfoContext(ctx, "order created",
		"order_id", order.ID, "pay_id", order.PayID, "chat_id", chatID, "amount", order.Amount)

	return order, o.gw.PaymentURL(*item, order.PayID), nil
}

// Reconcile merges a webhook notification with the gateway's authoritative
// record. The notification payload's status is never trusted; only the
// payment id is used, as a lookup key. Returns an error only when the
// authoritative state could not be obtained, in which case the intake must
// request redelivery.
func (o *Orchestrator) Reconcile(ctx context.Context, payID string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "payments.reconcile")
	defer span.End()

	o.locks.Lock(payID)
	defer o.locks.Unlock(payID)

	outcome, err := o.reconcile(ctx, payID)
	if err == nil {
		span.SetAttributes(attribute.String("reconcile.outcome", outcome.String()))
		o.reconciles.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome.String())))
	}
	return outcome, err
}

func (o *Orchestrator) reconcile(ctx context.Context, payID string) (Outcome, error) {
	stored, err := o.store.GetByPayID(ctx, payID)
	if err != nil {
		return 0, fmt.Errorf("load order %s: %w", payID, err)
	}
	if stored == nil {
		o.logger.InfoContext(ctx, "notification for unknown payment id dropped", "pay_id", payID)
		return OutcomeNotOurs, nil
	}

	fetched, err := o.gw.GetDeposit(ctx, payID)
	if err != nil {
		if errors.Is(err, gateway.ErrPaymentNotFound) {
			o.logger.InfoContext(ctx, "gateway has no record yet, waiting for next notification", "pay_id", payID)
			return OutcomeAwaitingGateway, nil
		}
		return 0, fmt.Errorf("fetch authoritative state for %s: %w", payID, err)
	}

	next := domain.Status(fetched.Status)
	if next == stored.Status || stored.Status.Terminal() {
		return OutcomeUnchanged, nil
	}

	applied, err := o.store.CompareAndUpdate(ctx, payID, stored.Status, next, fetched.Settlement())
	if err != nil {
		return 0, fmt.Errorf("persist status change for %s: %w", payID, err)
	}
	if !applied {
		// a concurrent delivery won the compare-and-swap
		return OutcomeUnchanged, nil
	}

	stored.Status = next
	stored.Settlement = fetched.Settlement()
	o.logger.InfoContext(ctx, "order status changed",
		"order_id", stored.ID, "pay_id", payID, "status", next)

	o.notifier.Notify(ctx, stored)
	return OutcomeUpdated, nil
}
