package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"referral-bot/internal/transport"
)

type EventKind int

const (
	EventText EventKind = iota
	EventCommand
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	}
	return "text"
}

// Event is an inbound update reduced to what the handlers use
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	MessageID int

	Command string
	Args    string
	Text    string
	Media   *transport.Media

	CallbackID   string
	CallbackData string
}

// eventFromUpdate maps private chat messages and button presses; anything
// else is ignored
func eventFromUpdate(update tgbotapi.Update) (Event, bool) {
	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil || message.Chat == nil || !message.Chat.IsPrivate() {
			return Event{}, false
		}
		ev := Event{
			Kind:      EventText,
			UserID:    message.From.ID,
			ChatID:    message.Chat.ID,
			Username:  message.From.UserName,
			FirstName: message.From.FirstName,
			MessageID: message.MessageID,
			Text:      message.Text,
		}
		if message.IsCommand() {
			ev.Kind = EventCommand
			ev.Command = message.Command()
			ev.Args = message.CommandArguments()
		}
		switch {
		case len(message.Photo) > 0:
			// the last size is the largest
			photo := message.Photo[len(message.Photo)-1]
			ev.Media = &transport.Media{FileID: photo.FileID, Type: transport.MediaPhoto}
			ev.Text = message.Caption
		case message.Document != nil:
			ev.Media = &transport.Media{FileID: message.Document.FileID, Type: transport.MediaDocument}
			ev.Text = message.Caption
		}
		return ev, true

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		if callback.From == nil {
			return Event{}, false
		}
		ev := Event{
			Kind:         EventCallback,
			UserID:       callback.From.ID,
			ChatID:       callback.From.ID,
			Username:     callback.From.UserName,
			FirstName:    callback.From.FirstName,
			CallbackID:   callback.ID,
			CallbackData: callback.Data,
		}
		if callback.Message != nil && callback.Message.Chat != nil {
			ev.ChatID = callback.Message.Chat.ID
			ev.MessageID = callback.Message.MessageID
		}
		return ev, true
	}
	return Event{}, false
}
