package chat

import "context"

// Button is one inline action offered under a message. Either Action
// (callback data routed back into the engine) or URL is set.
type Button struct {
	Text   string
	Action string
	URL    string
}

// Keyboard is rows of buttons.
type Keyboard [][]Button

// Update is the platform-independent shape of an inbound chat event.
// Exactly one of Command or Action is set.
type Update struct {
	ChatID    int64
	Command   string // slash command without the slash, e.g. "start"
	Action    string // callback data from a pressed button
	MessageID int    // message the pressed button was attached to
}

// Sender is the outbound chat-platform boundary. Implementations deliver
// messages into a chat; everything above this interface is platform
// agnostic.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, photoPath, caption string, kb Keyboard) error
}
