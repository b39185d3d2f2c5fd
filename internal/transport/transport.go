// Package transport abstracts the chat platform the bot talks through.
package transport

import "context"

// Membership statuses reported by MemberStatus
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
	StatusRestricted    = "restricted"
	StatusLeft          = "left"
	StatusKicked        = "kicked"
)

// Button is an inline keyboard button. Exactly one of URL and Data is set.
type Button struct {
	Text string
	URL  string
	Data string
}

// Keyboard is the markup attached to an outgoing message
type Keyboard struct {
	Inline [][]Button
	Reply  [][]string
	// Remove hides a previously sent reply keyboard
	Remove bool
}

// URLButton builds a link button
func URLButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

// DataButton builds a callback button
func DataButton(text, data string) Button {
	return Button{Text: text, Data: data}
}

// InlineRow builds a single row inline keyboard
func InlineRow(buttons ...Button) *Keyboard {
	return &Keyboard{Inline: [][]Button{buttons}}
}

// Media types carried in Media.Type
const (
	MediaPhoto    = "photo"
	MediaDocument = "document"
)

// Media references a file already stored on the platform
type Media struct {
	FileID string
	Type   string
}

// Messenger is everything the bot needs from the chat platform
type Messenger interface {
	// Send delivers a text message and returns its message id
	Send(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error)
	SendPhoto(ctx context.Context, chatID int64, name string, png []byte, caption string) error
	// ForwardMedia re-sends a stored file to another chat
	ForwardMedia(ctx context.Context, chatID int64, media Media, caption string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// SetMenuButton installs a persistent web app button in the chat
	SetMenuButton(ctx context.Context, chatID int64, text, url string) error
	// MemberStatus returns the membership status of userID in channel (@name)
	MemberStatus(ctx context.Context, channel string, userID int64) (string, error)
}
