package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/brewpay/brewbot/internal/chat"
	"github.com/brewpay/brewbot/internal/domain"
)

type fakeSender struct {
	chatID int64
	text   string
	kb     chat.Keyboard
	err    error
}

func (s *fakeSender) SendMessage(_ context.Context, chatID int64, text string, kb chat.Keyboard) (int, error) {
	s.chatID = chatID
	s.text = text
	s.kb = kb
	return 1, s.err
}

func (s *fakeSender) EditMessage(context.Context, int64, int, string, chat.Keyboard) error {
	return nil
}

func (s *fakeSender) SendPhoto(context.Context, int64, string, string, chat.Keyboard) error {
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_Success(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, discard())

	d.Notify(context.Background(), &domain.Order{
		ID:         "0xref1",
		ChatID:     42,
		Status:     domain.StatusSuccess,
		Settlement: domain.Settlement{ReceiveTxID: "T1"},
	})

	if sender.chatID != 42 {
		t.Errorf("expected chat 42, got %d", sender.chatID)
	}
	if sender.text != "payment success. transaction: T1" {
		t.Errorf("unexpected message: %q", sender.text)
	}
	if len(sender.kb) == 0 || sender.kb[0][0].Action != "checkout" {
		t.Errorf("expected continue-shopping button, got %+v", sender.kb)
	}
}

func TestNotify_GenericStatus(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, discard())

	d.Notify(context.Background(), &domain.Order{ID: "0xref1", ChatID: 42, Status: domain.StatusExpired})

	if sender.text != "payment status changed: expired" {
		t.Errorf("unexpected message: %q", sender.text)
	}
	if sender.kb != nil {
		t.Errorf("expected no keyboard, got %+v", sender.kb)
	}
}

func TestNotify_DeliveryFailureSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	d := NewDispatcher(sender, discard())

	// must not panic or propagate
	d.Notify(context.Background(), &domain.Order{ID: "0xref1", ChatID: 42, Status: domain.StatusSuccess})
}
