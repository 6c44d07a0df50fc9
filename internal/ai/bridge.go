package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brewpay/brewbot/internal/domain"
	"github.com/brewpay/brewbot/internal/keyed"
)

// Message is one turn of a chat's rolling context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Bridge forwards per-chat context to an OpenAI-style chat-completions
// backend. History is kept per chat in process memory, bounded to the
// configured window, and exchanges for the same chat serialize so the
// history never interleaves.
type Bridge struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	history    *keyed.Store[[]Message]
	locks      *keyed.Mutex
	limit      int
	logger     *slog.Logger
}

func NewBridge(baseURL, apiKey, model string, historyLimit int, ttl time.Duration, httpClient *http.Client, logger *slog.Logger) *Bridge {
	return &Bridge{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		history:    keyed.NewStore[[]Message](ttl),
		locks:      keyed.NewMutex(),
		limit:      historyLimit,
		logger:     logger,
	}
}

// History returns the live context window for a chat.
func (b *Bridge) History(chatID int64) []Message {
	msgs, _ := b.history.Get(chatKey(chatID))
	return msgs
}

// StartSweeper evicts abandoned chat histories until stop is closed.
func (b *Bridge) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	b.history.StartSweeper(interval, stop)
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Exchange sends the chat's full history plus prompt to the backend,
// appends both the prompt and the reply to the history, and returns the
// reply. An unusable reply fails with domain.ErrEmptyCompletion and leaves
// the history untouched.
func (b *Bridge) Exchange(ctx context.Context, chatID int64, prompt string) (string, error) {
	key := chatKey(chatID)
	b.locks.Lock(key)
	defer b.locks.Unlock(key)

	history, _ := b.history.Get(key)
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: prompt})

	reply, err := b.complete(ctx, messages)
	if err != nil {
		return "", err
	}

	history = append(history,
		Message{Role: "user", Content: prompt},
		Message{Role: "system", Content: reply},
	)
	if len(history) > b.limit {
		history = history[len(history)-b.limit:]
	}
	b.history.Set(key, history)

	return reply, nil
}

func (b *Bridge) complete(ctx context.Context, messages []Message) (string, error) {
	data, err := json.Marshal(completionRequest{Model: b.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion backend returned status %d", resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	if len(out.Choices) == 0 {
		return "", domain.ErrEmptyCompletion
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", domain.ErrEmptyCompletion
	}

	b.logger.DebugContext(ctx, "completion exchange", "turns", len(messages))
	return reply, nil
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
