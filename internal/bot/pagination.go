package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type PaginationParams struct {
	ChatID     int64
	MessageID  int // 0 sends a new message
	Page       int
	Title      string
	Empty      string
	PagePrefix string
	Footer     [][]tgbotapi.InlineKeyboardButton
}

// pageBounds clamps page into range and returns the slice bounds of it.
func pageBounds(page, total, perPage int) (int, int, int) {
	if perPage <= 0 {
		perPage = 1
	}
	totalPages := (total + perPage - 1) / perPage
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * perPage
	end := start + perPage
	if end > total {
		end = total
	}
	return page, start, end
}

// renderPaginatedList draws one page of a list with previous/next buttons.
func (b *Bot) renderPaginatedList(
	params PaginationParams,
	totalCount int,
	itemsPerPage int,
	renderer func(startIdx, endIdx int) (string, [][]tgbotapi.InlineKeyboardButton),
) {
	if itemsPerPage <= 0 {
		itemsPerPage = b.pageSize()
	}

	page, startIdx, endIdx := pageBounds(params.Page, totalCount, itemsPerPage)
	totalPages := (totalCount + itemsPerPage - 1) / itemsPerPage

	var message strings.Builder
	message.WriteString(params.Title)
	message.WriteString("\n\n")
	if totalCount == 0 && params.Empty != "" {
		message.WriteString(params.Empty)
	}
	if totalPages > 1 {
		message.WriteString(fmt.Sprintf("Página %d de %d\n\n", page+1, totalPages))
	}

	var keyboard [][]tgbotapi.InlineKeyboardButton
	if totalCount > 0 {
		content, rows := renderer(startIdx, endIdx)
		message.WriteString(content)
		keyboard = rows
	}

	var navButtons []tgbotapi.InlineKeyboardButton
	if page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Anterior", fmt.Sprintf("%s%d", params.PagePrefix, page-1)))
	}
	if endIdx < totalCount {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Próxima ➡️", fmt.Sprintf("%s%d", params.PagePrefix, page+1)))
	}
	if len(navButtons) > 0 {
		keyboard = append(keyboard, navButtons)
	}
	keyboard = append(keyboard, params.Footer...)

	var markup *tgbotapi.InlineKeyboardMarkup
	if len(keyboard) > 0 {
		m := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
		markup = &m
	}
	b.render(params.ChatID, params.MessageID, message.String(), markup)
}
