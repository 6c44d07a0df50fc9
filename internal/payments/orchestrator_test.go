package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brewpay/brewbot/internal/domain"
	"github.com/brewpay/brewbot/internal/gateway"
)

type fakeStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order // keyed by pay id
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*domain.Order)}
}

func (s *fakeStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.PayID]; exists {
		return fmt.Errorf("duplicate pay id %s", order.PayID)
	}
	cp := *order
	s.orders[order.PayID] = &cp
	return nil
}

func (s *fakeStore) GetByPayID(_ context.Context, payID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[payID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) CompareAndUpdate(_ context.Context, payID string, observed, next domain.Status, st domain.Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[payID]
	if !ok || o.Status != observed {
		return false, nil
	}
	o.Status = next
	o.Settlement = st
	o.UpdatedAt = time.Now()
	return true, nil
}

type fakeItems struct {
	items map[int64]domain.Item
}

func (f *fakeItems) GetByID(_ context.Context, id int64) (*domain.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	refSeq   atomic.Int64
	deposits map[string]*gateway.PaymentResponse
	fetchErr error
	fetches  atomic.Int64
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{deposits: make(map[string]*gateway.PaymentResponse)}
}

func (g *fakeGateway) NewOrderRef() string {
	return fmt.Sprintf("0xref%06d", g.refSeq.Add(1))
}

func (g *fakeGateway) CreateDeposit(_ context.Context, orderRef, amount string, deadline time.Time) (*gateway.PaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	payID := "P" + strings.TrimPrefix(orderRef, "0xref")
	resp := &gateway.PaymentResponse{
		Status: "pending",
		Payment: gateway.Payment{
			PayID:          payID,
			OrderID:        orderRef,
			Receiver:       "0xreceiver",
			Amount:         amount,
			OriginalAmount: amount,
			MaxFeeAmount:   "0.10",
			Deadline:       deadline.Format(time.RFC3339),
		},
	}
	g.deposits[payID] = resp
	return resp, nil
}

func (g *fakeGateway) GetDeposit(_ context.Context, payID string) (*gateway.PaymentResponse, error) {
	g.fetches.Add(1)
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	resp, ok := g.deposits[payID]
	if !ok {
		return nil, gateway.ErrPaymentNotFound
	}
	cp := *resp
	return &cp, nil
}

func (g *fakeGateway) PaymentURL(item domain.Item, payID string) string {
	return "https://pay.example.com/payment_qrcode?payID=" + payID + "&memo=" + item.Name
}

func (g *fakeGateway) setStatus(payID, status, txID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	resp := g.deposits[payID]
	resp.Status = status
	if txID != "" {
		resp.ReceiveTx = &gateway.ReceiveTx{
			TxID:  txID,
			Chain: gateway.Chain{ID: 1, Name: "mainnet"},
			Token: gateway.Token{Symbol: "USDC"},
		}
	}
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (n *fakeNotifier) Notify(_ context.Context, order *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, *order)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

func newTestOrchestrator() (*Orchestrator, *fakeStore, *fakeGateway, *fakeNotifier) {
	store := newFakeStore()
	items := &fakeItems{items: map[int64]domain.Item{
		1: {ID: 1, Name: "latte", PriceCents: 1000},
	}}
	gw := newFakeGateway()
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(store, items, gw, notifier, logger), store, gw, notifier
}

func TestCreateOrder(t *testing.T) {
	t.Run("persists pending order and builds payment URL", func(t *testing.T) {
		orch, store, _, _ := newTestOrchestrator()

		order, payURL, err := orch.CreateOrder(context.Background(), 1, 42)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.StatusPending {
			t.Errorf("expected status pending, got %s", order.Status)
		}
		if order.ChatID != 42 {
			t.Errorf("expected chat id 42, got %d", order.ChatID)
		}
		if order.Amount != "10.00" {
			t.Errorf("expected amount 10.00, got %s", order.Amount)
		}
		if !strings.Contains(payURL, "payID="+order.PayID) {
			t.Errorf("payment URL missing pay id: %s", payURL)
		}

		stored, _ := store.GetByPayID(context.Background(), order.PayID)
		if stored == nil {
			t.Fatal("order not persisted")
		}
	})

	t.Run("unknown item fails with NotFound", func(t *testing.T) {
		orch, _, _, _ := newTestOrchestrator()

		_, _, err := orch.CreateOrder(context.Background(), 99, 42)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unresolvable chat fails with NotFound", func(t *testing.T) {
		orch, _, _, _ := newTestOrchestrator()

		_, _, err := orch.CreateOrder(context.Background(), 1, 0)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestReconcile(t *testing.T) {
	t.Run("unknown pay id is not ours", func(t *testing.T) {
		orch, store, gw, notifier := newTestOrchestrator()

		outcome, err := orch.Reconcile(context.Background(), "P9")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeNotOurs {
			t.Errorf("expected not_ours, got %s", outcome)
		}
		if gw.fetches.Load() != 0 {
			t.Error("gateway must not be consulted for unknown pay ids")
		}
		if notifier.count() != 0 {
			t.Error("no notification expected")
		}
		if len(store.orders) != 0 {
			t.Error("no order must be created")
		}
	})

	t.Run("gateway absence is acknowledged and waits", func(t *testing.T) {
		orch, store, gw, notifier := newTestOrchestrator()

		store.orders["P1"] = &domain.Order{ID: "0xref1", PayID: "P1", Status: domain.StatusPending, ChatID: 42}
		delete(gw.deposits, "P1")

		outcome, err := orch.Reconcile(context.Background(), "P1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeAwaitingGateway {
			t.Errorf("expected awaiting_gateway, got %s", outcome)
		}
		if notifier.count() != 0 {
			t.Error("no notification expected")
		}
	})

	t.Run("gateway unreachable is a retryable error", func(t *testing.T) {
		orch, store, gw, _ := newTestOrchestrator()

		store.orders["P1"] = &domain.Order{ID: "0xref1", PayID: "P1", Status: domain.StatusPending, ChatID: 42}
		gw.fetchErr = fmt.Errorf("%w: connection refused", domain.ErrGatewayUnavailable)

		_, err := orch.Reconcile(context.Background(), "P1")
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
		}
	})

	t.Run("status change persists settlement and notifies once", func(t *testing.T) {
		orch, store, gw, notifier := newTestOrchestrator()

		order, _, err := orch.CreateOrder(context.Background(), 1, 42)
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		gw.setStatus(order.PayID, "success", "T1")

		outcome, err := orch.Reconcile(context.Background(), order.PayID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != OutcomeUpdated {
			t.Errorf("expected updated, got %s", outcome)
		}

		stored, _ := store.GetByPayID(context.Background(), order.PayID)
		if stored.Status != domain.StatusSuccess {
			t.Errorf("expected persisted status success, got %s", stored.Status)
		}
		if stored.Settlement.ReceiveTxID != "T1" {
			t.Errorf("expected settlement tx T1, got %s", stored.Settlement.ReceiveTxID)
		}
		if notifier.count() != 1 {
			t.Fatalf("expected exactly 1 notification, got %d", notifier.count())
		}
		if notifier.orders[0].ChatID != 42 {
			t.Errorf("notification went to chat %d, expected 42", notifier.orders[0].ChatID)
		}
	})

	t.Run("repeated deliveries for a settled order are idempotent", func(t *testing.T) {
		orch, _, gw, notifier := newTestOrchestrator()

		order, _, _ := orch.CreateOrder(context.Background(), 1, 42)
		gw.setStatus(order.PayID, "success", "T1")

		for i := 0; i < 5; i++ {
			outcome, err := orch.Reconcile(context.Background(), order.PayID)
			if err != nil {
				t.Fatalf("delivery %d: unexpected error: %v", i, err)
			}
			want := OutcomeUnchanged
			if i == 0 {
				want = OutcomeUpdated
			}
			if outcome != want {
				t.Errorf("delivery %d: expected %s, got %s", i, want, outcome)
			}
		}
		if notifier.count() != 1 {
			t.Fatalf("expected exactly 1 notification across deliveries, got %d", notifier.count())
		}
	})

	t.Run("terminal status never regresses", func(t *testing.T) {
		orch, store, gw, notifier := newTestOrchestrator()

		order, _, _ := orch.CreateOrder(context.Background(), 1, 42)
		gw.setStatus(order.PayID, "success", "T1")
		if _, err := orch.Reconcile(context.Background(), order.PayID); err != nil {
			t.Fatalf("reconcile: %v", err)
		}

		// the gateway answering pending again must not move the order back
		gw.setStatus(order.PayID, "pending", "")
		outcome, err := orch.Reconcile(context.Background(), order.PayID)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if outcome != OutcomeUnchanged {
			t.Errorf("expected unchanged, got %s", outcome)
		}

		stored, _ := store.GetByPayID(context.Background(), order.PayID)
		if stored.Status != domain.StatusSuccess {
			t.Errorf("status regressed to %s", stored.Status)
		}
		if notifier.count() != 1 {
			t.Errorf("expected 1 notification, got %d", notifier.count())
		}
	})

	t.Run("concurrent deliveries notify exactly once", func(t *testing.T) {
		orch, _, gw, notifier := newTestOrchestrator()

		order, _, _ := orch.CreateOrder(context.Background(), 1, 42)
		gw.setStatus(order.PayID, "success", "T1")

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := orch.Reconcile(context.Background(), order.PayID); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if notifier.count() != 1 {
			t.Fatalf("expected exactly 1 notification, got %d", notifier.count())
		}
	})
}

func TestCreateOrder_ConcurrentReferencesUnique(t *testing.T) {
	orch, store, _, _ := newTestOrchestrator()

	const n = 1000
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := orch.CreateOrder(context.Background(), 1, 42); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	refs := make(map[string]bool, n)
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, order := range store.orders {
		if refs[order.ID] {
			t.Fatalf("duplicate order reference %s", order.ID)
		}
		refs[order.ID] = true
	}
	if len(refs) != n {
		t.Fatalf("expected %d distinct references, got %d", n, len(refs))
	}
}
