// Package transporttest provides an in-memory Messenger for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	"referral-bot/internal/transport"
)

// Sent is one outgoing message recorded by Fake
type Sent struct {
	ChatID    int64
	MessageID int
	Text      string
	Keyboard  *transport.Keyboard
	Photo     []byte
	Media     *transport.Media
}

// ErrUnreachable is returned for chats listed in Fake.Unreachable
var ErrUnreachable = errors.New("chat unreachable")

// Fake records every call and answers membership queries from a table
type Fake struct {
	mu sync.Mutex

	Messages  []Sent
	Edited    map[int]string
	Deleted   []int
	Callbacks map[string]string
	Menus     map[int64]string

	// Members maps channel -> user -> status; missing entries are "left"
	Members map[string]map[int64]string
	// FailChannels makes MemberStatus fail for a channel
	FailChannels map[string]bool
	Unreachable  map[int64]bool

	nextID int
}

var _ transport.Messenger = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Edited:       map[int]string{},
		Callbacks:    map[string]string{},
		Menus:        map[int64]string{},
		Members:      map[string]map[int64]string{},
		FailChannels: map[string]bool{},
		Unreachable:  map[int64]bool{},
	}
}

// SetMember sets the status of userID in channel
func (f *Fake) SetMember(channel string, userID int64, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Members[channel] == nil {
		f.Members[channel] = map[int64]string{}
	}
	f.Members[channel][userID] = status
}

func (f *Fake) record(s Sent) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unreachable[s.ChatID] {
		return 0, ErrUnreachable
	}
	f.nextID++
	s.MessageID = f.nextID
	f.Messages = append(f.Messages, s)
	return s.MessageID, nil
}

func (f *Fake) Send(_ context.Context, chatID int64, text string, kb *transport.Keyboard) (int, error) {
	return f.record(Sent{ChatID: chatID, Text: text, Keyboard: kb})
}

func (f *Fake) SendPhoto(_ context.Context, chatID int64, _ string, png []byte, caption string) error {
	_, err := f.record(Sent{ChatID: chatID, Text: caption, Photo: png})
	return err
}

func (f *Fake) ForwardMedia(_ context.Context, chatID int64, media transport.Media, caption string) error {
	_, err := f.record(Sent{ChatID: chatID, Text: caption, Media: &media})
	return err
}

func (f *Fake) EditText(_ context.Context, _ int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edited[messageID] = text
	return nil
}

func (f *Fake) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *Fake) AnswerCallback(_ context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Callbacks[callbackID] = text
	return nil
}

func (f *Fake) SetMenuButton(_ context.Context, chatID int64, _, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Menus[chatID] = url
	return nil
}

func (f *Fake) MemberStatus(_ context.Context, channel string, userID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailChannels[channel] {
		return "", errors.New("chat not found")
	}
	if status, ok := f.Members[channel][userID]; ok {
		return status, nil
	}
	return transport.StatusLeft, nil
}

// To returns the messages sent to chatID in order
func (f *Fake) To(chatID int64) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, m := range f.Messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the last message sent to chatID
func (f *Fake) Last(chatID int64) (Sent, bool) {
	msgs := f.To(chatID)
	if len(msgs) == 0 {
		return Sent{}, false
	}
	return msgs[len(msgs)-1], true
}

// Reset forgets recorded messages
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.Deleted = nil
	f.Edited = map[int]string{}
	f.Callbacks = map[string]string{}
}
