package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/brewpay/brewbot/internal/ai"
	"github.com/brewpay/brewbot/internal/chat"
	"github.com/brewpay/brewbot/internal/domain"
	"github.com/brewpay/brewbot/internal/keyed"
)

var meter = otel.Meter("conversation")

// State of the per-chat dialogue machine.
type State string

const (
	StateStart          State = "start"
	StateGreeting       State = "greeting"
	StateMenuShown      State = "menu_shown"
	StateCustomizing    State = "customizing"
	StatePostOrder      State = "post_order"
	StatePaymentPending State = "payment_pending"
)

// Session is the ephemeral per-chat record of the dialogue: FSM state,
// the persona chosen at first contact, the in-progress customization and
// the outbound message currently being edited. Process memory only.
type Session struct {
	State         State
	Persona       Persona
	Strategy      Strategy
	MenuMessageID int
}

// Generator produces AI text for a chat.
type Generator interface {
	Exchange(ctx context.Context, chatID int64, prompt string) (string, error)
}

// Catalog lists purchasable items.
type Catalog interface {
	List(ctx context.Context) ([]domain.Item, error)
}

// Checkout hands a selected item off to the payment flow.
type Checkout interface {
	CreateOrder(ctx context.Context, itemID, chatID int64) (*domain.Order, string, error)
}

// Engine drives the dialogue. Updates for the same chat serialize on a
// per-chat lock; sessions expire after the configured TTL so abandoned
// customizations do not accumulate.
type Engine struct {
	sender    chat.Sender
	generator Generator
	catalog   Catalog
	checkout  Checkout
	mode      string
	photosDir string
	sessions  *keyed.Store[*Session]
	locks     *keyed.Mutex
	logger    *slog.Logger
	nowFunc   func() time.Time

	turns metric.Int64Counter
}

func NewEngine(sender chat.Sender, generator Generator, catalog Catalog, checkout Checkout, mode, photosDir string, sessionTTL time.Duration, logger *slog.Logger) *Engine {
	turns, _ := meter.Int64Counter("conversation.updates",
		metric.WithDescription("Inbound chat updates by state"))

	return &Engine{
		sender:    sender,
		generator: generator,
		catalog:   catalog,
		checkout:  checkout,
		mode:      mode,
		photosDir: photosDir,
		sessions:  keyed.NewStore[*Session](sessionTTL),
		locks:     keyed.NewMutex(),
		logger:    logger,
		nowFunc:   time.Now,
		turns:     turns,
	}
}

// StartSweeper evicts abandoned sessions until stop is closed.
func (e *Engine) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	e.sessions.StartSweeper(interval, stop)
}

// Session returns the live session for a chat, or nil.
func (e *Engine) Session(chatID int64) *Session {
	s, _ := e.sessions.Get(chatKey(chatID))
	return s
}

// HandleUpdate processes one inbound chat event. Errors are logged by the
// caller; the user has already been shown a failure message where one
// applies.
func (e *Engine) HandleUpdate(ctx context.Context, upd *chat.Update) error {
	key := chatKey(upd.ChatID)
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	session, ok := e.sessions.Get(key)
	if !ok {
		session = &Session{State: StateStart}
	}
	e.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(session.State))))

	switch {
	case upd.Command == "start":
		return e.greet(ctx, upd.ChatID, session)
	case upd.Action == "menu":
		return e.showMenu(ctx, upd.ChatID, session)
	case strings.HasPrefix(upd.Action, "add_") || strings.HasPrefix(upd.Action, "set_"):
		return e.customize(ctx, upd.ChatID, session, upd.Action)
	case upd.Action == "done":
		return e.finalize(ctx, upd.ChatID, session)
	case upd.Action == "checkout":
		return e.offerCheckout(ctx, upd.ChatID, session)
	case strings.HasPrefix(upd.Action, "buy_"):
		return e.buy(ctx, upd.ChatID, session, upd.Action)
	}

	e.logger.InfoContext(ctx, "unhandled chat update dropped",
		"chat_id", upd.ChatID, "command", upd.Command, "action", upd.Action)
	return nil
}

// greet picks a persona and opens the dialogue with an AI greeting. There
// is no canned fallback: a failed generation is surfaced to the user and
// the turn aborts.
func (e *Engine) greet(ctx context.Context, chatID int64, session *Session) error {
	session.Persona = randomPersona()

	prompt := ai.GreetingPrompt(session.Persona.Age, session.Persona.Disposition, e.nowFunc())
	greeting, err := e.generator.Exchange(ctx, chatID, prompt)
	if err != nil {
		e.sendFailure(ctx, chatID)
		return fmt.Errorf("generate greeting: %w", err)
	}

	kb := chat.Keyboard{{{Text: "see menu", Action: "menu"}}}
	if _, err := e.sender.SendMessage(ctx, chatID, greeting, kb); err != nil {
		return fmt.Errorf("send greeting: %w", err)
	}

	session.State = StateGreeting
	e.sessions.Set(chatKey(chatID), session)
	return nil
}

func (e *Engine) showMenu(ctx context.Context, chatID int64, session *Session) error {
	session.Strategy = NewStrategy(e.mode)

	kb := append(session.Strategy.Options(), []chat.Button{{Text: "done", Action: "done"}})
	msgID, err := e.sender.SendMessage(ctx, chatID, "build your drink:", kb)
	if err != nil {
		return fmt.Errorf("send menu: %w", err)
	}

	session.State = StateCustomizing
	session.MenuMessageID = msgID
	e.sessions.Set(chatKey(chatID), session)
	return nil
}

func (e *Engine) customize(ctx context.Context, chatID int64, session *Session, action string) error {
	if session.Strategy == nil {
		return e.showMenu(ctx, chatID, session)
	}

	if err := session.Strategy.Apply(action); err != nil {
		if err == domain.ErrIngredientLimit {
			_, sendErr := e.sender.SendMessage(ctx, chatID,
				fmt.Sprintf("limit reached: a drink holds at most %d ingredients", maxIngredients), nil)
			return sendErr
		}
		return fmt.Errorf("apply customization: %w", err)
	}

	text := "build your drink:"
	if desc := session.Strategy.Describe(); desc != "" {
		text = "your drink so far: " + desc
	}
	kb := append(session.Strategy.Options(), []chat.Button{{Text: "done", Action: "done"}})
	if err := e.sender.EditMessage(ctx, chatID, session.MenuMessageID, text, kb); err != nil {
		return fmt.Errorf("render selection: %w", err)
	}

	e.sessions.Set(chatKey(chatID), session)
	return nil
}

// finalize turns the accumulated selection into an AI taste description
// and clears the session. An empty selection is valid and described as a
// plain drink.
func (e *Engine) finalize(ctx context.Context, chatID int64, session *Session) error {
	var description string
	if session.Strategy != nil {
		description = session.Strategy.Describe()
	}

	taste, err := e.generator.Exchange(ctx, chatID, ai.TastePrompt(description))
	if err != nil {
		e.sendFailure(ctx, chatID)
		return fmt.Errorf("generate taste description: %w", err)
	}

	e.sessions.Delete(chatKey(chatID))

	kb := chat.Keyboard{{
		{Text: "order again", Action: "menu"},
		{Text: "go to checkout", Action: "checkout"},
	}}
	if photo, ok := randomPhoto(e.photosDir); ok {
		if err := e.sender.SendPhoto(ctx, chatID, photo, taste, kb); err != nil {
			return fmt.Errorf("send finale: %w", err)
		}
		return nil
	}
	if _, err := e.sender.SendMessage(ctx, chatID, taste, kb); err != nil {
		return fmt.Errorf("send finale: %w", err)
	}
	return nil
}

func (e *Engine) offerCheckout(ctx context.Context, chatID int64, session *Session) error {
	items, err := e.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	var kb chat.Keyboard
	var row []chat.Button
	for _, item := range items {
		row = append(row, chat.Button{
			Text:   fmt.Sprintf("%s - $%s", item.Name, item.PriceAmount()),
			Action: "buy_" + strconv.FormatInt(item.ID, 10),
		})
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}

	if _, err := e.sender.SendMessage(ctx, chatID, "products:", kb); err != nil {
		return fmt.Errorf("send checkout: %w", err)
	}

	session.State = StatePostOrder
	e.sessions.Set(chatKey(chatID), session)
	return nil
}

// buy hands off to the payment flow. From here on, status updates for
// this chat arrive through the notification dispatcher, not this engine.
func (e *Engine) buy(ctx context.Context, chatID int64, session *Session, action string) error {
	itemID, err := strconv.ParseInt(strings.TrimPrefix(action, "buy_"), 10, 64)
	if err != nil {
		return fmt.Errorf("malformed buy action %q: %w", action, err)
	}

	_, payURL, err := e.checkout.CreateOrder(ctx, itemID, chatID)
	if err != nil {
		e.sendFailure(ctx, chatID)
		return fmt.Errorf("create order: %w", err)
	}

	kb := chat.Keyboard{{{Text: "click to pay", URL: payURL}}}
	if _, err := e.sender.SendMessage(ctx, chatID, "payment created.", kb); err != nil {
		return fmt.Errorf("send payment link: %w", err)
	}

	session.State = StatePaymentPending
	e.sessions.Set(chatKey(chatID), session)
	return nil
}

func (e *Engine) sendFailure(ctx context.Context, chatID int64) {
	if _, err := e.sender.SendMessage(ctx, chatID, "something went wrong, please try again", nil); err != nil {
		e.logger.ErrorContext(ctx, "failed to deliver failure message", "error", err, "chat_id", chatID)
	}
}

func randomPhoto(dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return "", false
	}
	entry := entries[rand.Intn(len(entries))]
	return filepath.Join(dir, entry.Name()), true
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
