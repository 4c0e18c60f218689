package bot

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"petagenda/internal/booking"
	"petagenda/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var weekdayNames = [...]string{"dom", "seg", "ter", "qua", "qui", "sex", "sáb"}

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// esc escapes text for Telegram's HTML parse mode.
func esc(s string) string {
	return html.EscapeString(s)
}

func formatDate(d models.Date) string {
	return fmt.Sprintf("%s, %02d/%02d/%04d", weekdayNames[d.Weekday()], d.Day, int(d.Month), d.Year)
}

func formatDateTime(t time.Time, ok bool) string {
	if !ok {
		return "sem data"
	}
	return t.Format("02/01/2006 15:04")
}

func monthTitle(year int, month time.Month) string {
	name := monthNames[month-1]
	return strings.ToUpper(name[:1]) + name[1:] + fmt.Sprintf(" %d", year)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	if _, err := b.tgService.SendHTML(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// render edits messageID in place, or sends a new message when it is 0.
func (b *Bot) render(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	var err error
	switch {
	case messageID != 0:
		_, err = b.tgService.EditMessage(chatID, messageID, text, keyboard)
	case keyboard != nil:
		_, err = b.tgService.SendWithInlineKeyboard(chatID, text, *keyboard)
	default:
		_, err = b.tgService.SendHTML(chatID, text)
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("Failed to render message")
	}
}

// chatNotifier delivers booking notifications to one chat.
type chatNotifier struct {
	bot    *Bot
	chatID int64
}

func (n *chatNotifier) Notify(_ context.Context, note booking.Notification) {
	prefix := "ℹ️ "
	switch note.Level {
	case booking.LevelSuccess:
		prefix = "✅ "
	case booking.LevelDanger:
		prefix = "❌ "
	}
	n.bot.sendMessage(n.chatID, prefix+note.Text)
}

func statusLine(status models.AppointmentStatus) string {
	return status.Emoji() + " " + status.Label()
}
