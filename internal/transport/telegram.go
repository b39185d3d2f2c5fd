package transport

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram implements Messenger over the Bot API
type Telegram struct {
	API *tgbotapi.BotAPI
}

var _ Messenger = (*Telegram)(nil)

// NewTelegram authorizes the bot token
func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	return &Telegram{API: api}, nil
}

// Username returns the bot's own username
func (t *Telegram) Username() string {
	return t.API.Self.UserName
}

func (t *Telegram) Send(_ context.Context, chatID int64, text string, kb *Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup := replyMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := t.API.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *Telegram) SendPhoto(_ context.Context, chatID int64, name string, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	photo.Caption = caption
	_, err := t.API.Send(photo)
	return err
}

func (t *Telegram) ForwardMedia(_ context.Context, chatID int64, media Media, caption string) error {
	var c tgbotapi.Chattable
	switch media.Type {
	case MediaPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(media.FileID))
		photo.Caption = caption
		c = photo
	case MediaDocument:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(media.FileID))
		doc.Caption = caption
		c = doc
	default:
		return fmt.Errorf("unsupported media type %q", media.Type)
	}
	_, err := t.API.Send(c)
	return err
}

func (t *Telegram) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	_, err := t.API.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (t *Telegram) Delete(_ context.Context, chatID int64, messageID int) error {
	_, err := t.API.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

func (t *Telegram) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := t.API.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func (t *Telegram) SetMenuButton(_ context.Context, chatID int64, text, url string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	if err := params.AddInterface("menu_button", map[string]any{
		"type":    "web_app",
		"text":    text,
		"web_app": map[string]string{"url": url},
	}); err != nil {
		return err
	}
	_, err := t.API.MakeRequest("setChatMenuButton", params)
	return err
}

func (t *Telegram) MemberStatus(_ context.Context, channel string, userID int64) (string, error) {
	member, err := t.API.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get membership in %s: %w", channel, err)
	}
	return member.Status, nil
}

func replyMarkup(kb *Keyboard) any {
	if kb == nil {
		return nil
	}
	switch {
	case kb.Remove:
		return tgbotapi.NewRemoveKeyboard(true)
	case len(kb.Inline) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Inline))
		for _, row := range kb.Inline {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				if b.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				} else {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
				}
			}
			rows = append(rows, buttons)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	case len(kb.Reply) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Reply))
		for _, row := range kb.Reply {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, buttons)
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.ResizeKeyboard = true
		return markup
	}
	return nil
}
