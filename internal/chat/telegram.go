package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Telegram is a thin Bot API adapter implementing Sender. It is glue:
// no invariants live here, requests are plain JSON calls against the
// Bot API with the configured token.
type Telegram struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

func NewTelegram(apiURL, token string, httpClient *http.Client) *Telegram {
	return &Telegram{apiURL: apiURL, token: token, httpClient: httpClient}
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

func markup(kb Keyboard) *inlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	m := &inlineKeyboardMarkup{}
	for _, row := range kb {
		var buttons []inlineKeyboardButton
		for _, b := range row {
			buttons = append(buttons, inlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Action,
				URL:          b.URL,
			})
		}
		m.InlineKeyboard = append(m.InlineKeyboard, buttons)
	}
	return m
}

type sendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type editMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	body := sendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: markup(kb)}
	result, err := t.call(ctx, "sendMessage", body)
	if err != nil {
		return 0, err
	}

	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(result, &msg); err != nil {
		return 0, fmt.Errorf("decode sendMessage result: %w", err)
	}
	return msg.MessageID, nil
}

func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	body := editMessageRequest{ChatID: chatID, MessageID: messageID, Text: text, ReplyMarkup: markup(kb)}
	_, err := t.call(ctx, "editMessageText", body)
	return err
}

func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, photoPath, caption string, kb Keyboard) error {
	file, err := os.Open(photoPath)
	if err != nil {
		return fmt.Errorf("open photo asset: %w", err)
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("chat_id", fmt.Sprintf("%d", chatID))
	_ = form.WriteField("caption", caption)
	if m := markup(kb); m != nil {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal keyboard: %w", err)
		}
		_ = form.WriteField("reply_markup", string(data))
	}
	part, err := form.CreateFormFile("photo", filepath.Base(photoPath))
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy photo: %w", err)
	}
	if err := form.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendPhoto"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	return t.do(req, nil)
}

func (t *Telegram) call(ctx context.Context, method string, body any) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL(method), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result json.RawMessage
	if err := t.do(req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (t *Telegram) do(req *http.Request, result *json.RawMessage) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bot api response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("bot api error: %s", out.Description)
	}
	if result != nil {
		*result = out.Result
	}
	return nil
}

func (t *Telegram) methodURL(method string) string {
	return t.apiURL + "/bot" + t.token + "/" + method
}

// telegramUpdate mirrors the subset of the Bot API update payload this
// service consumes.
type telegramUpdate struct {
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		Data    string `json:"data"`
		Message struct {
			MessageID int `json:"message_id"`
			Chat      struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

// ParseUpdate converts a raw Bot API webhook payload into the platform
// independent Update. Payloads this service does not consume (stickers,
// edits, joins) return (nil, nil).
func ParseUpdate(raw []byte) (*Update, error) {
	var tu telegramUpdate
	if err := json.Unmarshal(raw, &tu); err != nil {
		return nil, fmt.Errorf("decode telegram update: %w", err)
	}

	switch {
	case tu.CallbackQuery != nil:
		return &Update{
			ChatID:    tu.CallbackQuery.Message.Chat.ID,
			Action:    tu.CallbackQuery.Data,
			MessageID: tu.CallbackQuery.Message.MessageID,
		}, nil
	case tu.Message != nil && strings.HasPrefix(tu.Message.Text, "/"):
		command, _, _ := strings.Cut(strings.TrimPrefix(tu.Message.Text, "/"), " ")
		return &Update{ChatID: tu.Message.Chat.ID, Command: command}, nil
	}
	return nil, nil
}
