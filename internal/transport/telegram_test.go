package transport

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyMarkup(t *testing.T) {
	assert.Nil(t, replyMarkup(nil))
	assert.Nil(t, replyMarkup(&Keyboard{}))

	remove, ok := replyMarkup(&Keyboard{Remove: true}).(tgbotapi.ReplyKeyboardRemove)
	require.True(t, ok)
	assert.True(t, remove.RemoveKeyboard)

	inline, ok := replyMarkup(InlineRow(
		URLButton("news", "https://t.me/news"),
		DataButton("check", "check_sub"),
	)).(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, inline.InlineKeyboard, 1)
	row := inline.InlineKeyboard[0]
	require.Len(t, row, 2)
	require.NotNil(t, row[0].URL)
	assert.Equal(t, "https://t.me/news", *row[0].URL)
	require.NotNil(t, row[1].CallbackData)
	assert.Equal(t, "check_sub", *row[1].CallbackData)

	reply, ok := replyMarkup(&Keyboard{Reply: [][]string{{"a", "b"}, {"c"}}}).(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, reply.ResizeKeyboard)
	require.Len(t, reply.Keyboard, 2)
	assert.Equal(t, "c", reply.Keyboard[1][0].Text)
}
