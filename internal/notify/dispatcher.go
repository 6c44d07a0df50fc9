package notify

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/brewpay/brewbot/internal/chat"
	"github.com/brewpay/brewbot/internal/domain"
)

var meter = otel.Meter("notify")

// Dispatcher pushes order status changes into the originating chat.
// Delivery is best-effort: the status change that triggered it is already
// durably committed, so a failed send is logged and never retried.
type Dispatcher struct {
	sender chat.Sender
	logger *slog.Logger

	deliveries metric.Int64Counter
}

func NewDispatcher(sender chat.Sender, logger *slog.Logger) *Dispatcher {
	deliveries, _ := meter.Int64Counter("notify.deliveries",
		metric.WithDescription("Status notifications by delivery result"))

	return &Dispatcher{sender: sender, logger: logger, deliveries: deliveries}
}

func (d *Dispatcher) Notify(ctx context.Context, order *domain.Order) {
	text := "payment status changed: " + string(order.Status)
	var kb chat.Keyboard
	if order.Status == domain.StatusSuccess {
		text = "payment success. transaction: " + order.Settlement.ReceiveTxID
		kb = chat.Keyboard{{{Text: "continue shopping", Action: "checkout"}}}
	}

	result := "ok"
	if _, err := d.sender.SendMessage(ctx, order.ChatID, text, kb); err != nil {
		result = "failed"
		d.logger.ErrorContext(ctx, "failed to deliver status notification",
			"error", err, "order_id", order.ID, "chat_id", order.ChatID)
	}
	d.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
