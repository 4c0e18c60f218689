package bot

import (
	"fmt"
	"strconv"
	"time"

	"petagenda/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const monthLayout = "2006-01"

var weekdayHeader = [...]string{"Seg", "Ter", "Qua", "Qui", "Sex", "Sáb", "Dom"}

// calendarKeyboard renders a Monday-first month grid. Days before today are
// shown as dots and cannot be picked; navigation never goes before today's
// month.
func calendarKeyboard(year int, month time.Month, today models.Date) tgbotapi.InlineKeyboardMarkup {
	first := models.Date{Year: year, Month: month, Day: 1}
	offset := (int(first.Weekday()) + 6) % 7
	days := first.DaysInMonth()

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 8)

	prev := first.AddDays(-1)
	next := first.AddDays(days)
	prevBtn := tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop)
	if !prev.Before(models.Date{Year: today.Year, Month: today.Month, Day: 1}) {
		prevBtn = tgbotapi.NewInlineKeyboardButtonData("◀️", cbBookingMonth+monthKey(prev))
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		prevBtn,
		tgbotapi.NewInlineKeyboardButtonData(monthTitle(year, month), cbNoop),
		tgbotapi.NewInlineKeyboardButtonData("▶️", cbBookingMonth+monthKey(next)),
	})

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, name := range weekdayHeader {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(name, cbNoop))
	}
	rows = append(rows, header)

	day := 1
	for day <= days {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for col := 0; col < 7; col++ {
			if (len(rows) == 2 && col < offset) || day > days {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", cbNoop))
				continue
			}
			date := models.Date{Year: year, Month: month, Day: day}
			if date.Before(today) {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", cbNoop))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(day), cbBookingDay+date.String()))
			}
			day++
		}
		rows = append(rows, row)
	}

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func monthKey(d models.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// slotKeyboard lays the slots out four per row.
func slotKeyboard(slots []models.TimeOfDay) [][]tgbotapi.InlineKeyboardButton {
	const perRow = 4
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (len(slots)+perRow-1)/perRow)
	for i := 0; i < len(slots); i += perRow {
		end := i + perRow
		if end > len(slots) {
			end = len(slots)
		}
		row := make([]tgbotapi.InlineKeyboardButton, 0, perRow)
		for _, s := range slots[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(s.String(), cbBookingSlot+s.String()))
		}
		rows = append(rows, row)
	}
	return rows
}

func parseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t.Year(), t.Month(), nil
}
