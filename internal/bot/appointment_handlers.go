package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"petagenda/internal/models"
	"petagenda/internal/petshop"
	"petagenda/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleAppointmentCallback(ctx context.Context, chatID int64, messageID int, data string) {
	switch {
	case strings.HasPrefix(data, cbApptPage):
		page, _ := strconv.Atoi(strings.TrimPrefix(data, cbApptPage))
		b.sendAppointmentList(ctx, chatID, messageID, page)

	case data == cbApptList:
		b.sendAppointmentList(ctx, chatID, messageID, 0)

	case data == cbApptToday:
		b.sendToday(ctx, chatID)

	case strings.HasPrefix(data, cbApptView):
		if id, ok := parseID(strings.TrimPrefix(data, cbApptView)); ok {
			b.sendDetail(ctx, chatID, messageID, id)
		}

	case strings.HasPrefix(data, cbApptStatusOK):
		if id, status, ok := parseStatusData(strings.TrimPrefix(data, cbApptStatusOK)); ok {
			b.changeStatus(ctx, chatID, messageID, id, status)
		}

	case strings.HasPrefix(data, cbApptStatus):
		if id, status, ok := parseStatusData(strings.TrimPrefix(data, cbApptStatus)); ok {
			text := fmt.Sprintf("Alterar o status do agendamento #%d para <b>%s</b>?", id, esc(status.Label()))
			markup := confirmKeyboard("✔️ Sim, alterar", statusData(cbApptStatusOK, id, status), idData(cbApptView, id))
			b.render(chatID, messageID, text, &markup)
		}

	case strings.HasPrefix(data, cbApptDeleteOK):
		if id, ok := parseID(strings.TrimPrefix(data, cbApptDeleteOK)); ok {
			b.deleteAppointment(ctx, chatID, messageID, id)
		}

	case strings.HasPrefix(data, cbApptDelete):
		if id, ok := parseID(strings.TrimPrefix(data, cbApptDelete)); ok {
			text := fmt.Sprintf("Excluir o agendamento #%d? Esta ação não pode ser desfeita.", id)
			markup := confirmKeyboard("🗑 Sim, excluir", idData(cbApptDeleteOK, id), idData(cbApptView, id))
			b.render(chatID, messageID, text, &markup)
		}

	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("Unknown appointment callback")
	}
}

func (b *Bot) handleAppointmentCommand(ctx context.Context, chatID int64, args string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(args, "#"), 10, 64)
	if err != nil || id <= 0 {
		b.sendMessage(chatID, "Uso: /agendamento <id>")
		return
	}
	b.sendDetail(ctx, chatID, 0, id)
}

func (b *Bot) sendAppointmentList(ctx context.Context, chatID int64, messageID, page int) {
	views, err := b.appointments.List(ctx)
	if err != nil {
		b.reportError(ctx, chatID, "Erro ao carregar agendamentos", err)
		return
	}

	b.renderPaginatedList(PaginationParams{
		ChatID:     chatID,
		MessageID:  messageID,
		Page:       page,
		Title:      fmt.Sprintf("<b>📋 Agendamentos</b> (%d)", len(views)),
		Empty:      "Nenhum agendamento encontrado.\n",
		PagePrefix: cbApptPage,
		Footer: [][]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Hoje", cbApptToday),
			tgbotapi.NewInlineKeyboardButtonData("📊 Painel", cbDashboard),
		)},
	}, len(views), b.pageSize(), func(startIdx, endIdx int) (string, [][]tgbotapi.InlineKeyboardButton) {
		var content strings.Builder
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, endIdx-startIdx)
		for _, v := range views[startIdx:endIdx] {
			content.WriteString(appointmentLine(v))
			rows = append(rows, button(appointmentButton(v), idData(cbApptView, v.ID)))
		}
		return content.String(), rows
	})
}

func appointmentLine(v service.AppointmentView) string {
	return fmt.Sprintf("%s <b>#%d</b> %s · %s · %s\n",
		v.Status.Emoji(), v.ID, formatDateTime(v.When, v.HasTime), esc(v.PetName), esc(v.ServiceName))
}

func appointmentButton(v service.AppointmentView) string {
	when := "sem data"
	if v.HasTime {
		when = v.When.Format("02/01 15:04")
	}
	return fmt.Sprintf("#%d %s · %s", v.ID, when, v.PetName)
}

func (b *Bot) sendToday(ctx context.Context, chatID int64) {
	views, err := b.appointments.Today(ctx)
	if err != nil {
		b.reportError(ctx, chatID, "Erro ao carregar agendamentos de hoje", err)
		return
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("<b>📅 Hoje</b> (%d)\n\n", len(views)))
	if len(views) == 0 {
		text.WriteString("Nenhum agendamento para hoje.")
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 2*len(views)+1)
	for _, v := range views {
		text.WriteString(appointmentLine(v))
		rows = append(rows, button(appointmentButton(v), idData(cbApptView, v.ID)))
		if quick := statusKeyboard(v.Appointment); len(quick) > 0 {
			rows = append(rows, quick)
		}
	}
	rows = append(rows, button("📋 Todos os agendamentos", cbApptList))

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.render(chatID, 0, text.String(), &markup)
}

func (b *Bot) sendDetail(ctx context.Context, chatID int64, messageID int, id int64) {
	detail, err := b.appointments.Detail(ctx, id)
	if err != nil {
		if b.handleAuthFailure(ctx, chatID, err) {
			return
		}
		back := button("📋 Voltar à lista", cbApptList)
		if errors.Is(err, petshop.ErrNotFound) {
			markup := tgbotapi.NewInlineKeyboardMarkup(back)
			b.render(chatID, messageID, fmt.Sprintf("🔍 %s (#%d).", msgNotFound, id), &markup)
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Int64("appointment_id", id).Msg("Failed to load appointment")
		markup := tgbotapi.NewInlineKeyboardMarkup(button("🔄 Tentar novamente", idData(cbApptView, id)), back)
		b.render(chatID, messageID, "❌ Erro ao carregar agendamento: "+esc(userMessage(err)), &markup)
		return
	}

	rows := [][]tgbotapi.InlineKeyboardButton{}
	if quick := statusKeyboard(detail.Appointment); len(quick) > 0 {
		rows = append(rows, quick)
	}
	rows = append(rows,
		button("🗑 Excluir", idData(cbApptDelete, id)),
		button("📋 Voltar à lista", cbApptList),
	)
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.render(chatID, messageID, detailText(detail, b.loc), &markup)
}

func detailText(d *service.AppointmentDetail, loc *time.Location) string {
	a := d.Appointment
	var text strings.Builder
	text.WriteString(fmt.Sprintf("<b>Agendamento #%d</b>\n\n", a.ID))
	text.WriteString(fmt.Sprintf("Status: %s\n", esc(statusLine(a.Status))))
	text.WriteString(fmt.Sprintf("📅 %s\n", formatDateTime(d.When, d.HasTime)))
	if created, ok := a.CreatedTime(loc); ok {
		text.WriteString(fmt.Sprintf("🕓 Criado em %s\n", formatDateTime(created, true)))
	}

	if d.Pet != nil {
		pet := d.Pet.Name + " · " + d.Pet.SpeciesName()
		if d.Pet.Breed != "" {
			pet += " · " + d.Pet.Breed
		}
		text.WriteString("🐾 " + esc(pet) + "\n")
	} else {
		text.WriteString(fmt.Sprintf("🐾 %s\n", esc(firstNonEmpty(a.PetName, fmt.Sprintf("Pet #%d", a.PetID)))))
	}

	if d.Client != nil {
		client := d.Client.Name
		if d.Client.Phone != "" {
			client += " · " + d.Client.Phone
		}
		text.WriteString("👤 " + esc(client) + "\n")
	}

	if d.Service != nil {
		svc := serviceLabel(*d.Service)
		if d.Service.Duration > 0 {
			svc += fmt.Sprintf(" · %d min", d.Service.Duration)
		}
		text.WriteString("✂️ " + esc(svc) + "\n")
	} else {
		text.WriteString(fmt.Sprintf("✂️ %s\n", esc(firstNonEmpty(a.ServiceName, fmt.Sprintf("Serviço #%d", a.ServiceID)))))
	}

	if a.Notes != "" {
		text.WriteString("\n📝 " + esc(a.Notes) + "\n")
	}
	return text.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// changeStatus stores the full current record with the new status.
func (b *Bot) changeStatus(ctx context.Context, chatID int64, messageID int, id int64, status models.AppointmentStatus) {
	appt, err := b.api.GetAppointment(ctx, id)
	if err != nil {
		b.reportError(ctx, chatID, "Erro ao atualizar status", err)
		return
	}

	if _, err := b.workflow(chatID).ChangeStatus(ctx, *appt, status); err != nil {
		b.handleAuthFailure(ctx, chatID, err)
		return
	}

	if b.metrics != nil {
		b.metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	}
	b.sendDetail(ctx, chatID, messageID, id)
}

func (b *Bot) deleteAppointment(ctx context.Context, chatID int64, messageID int, id int64) {
	if err := b.appointments.Delete(ctx, chatID, id); err != nil {
		b.reportError(ctx, chatID, "Erro ao excluir agendamento", err)
		return
	}
	b.render(chatID, messageID, fmt.Sprintf("🗑 Agendamento #%d excluído.", id), nil)
}

func (b *Bot) sendDashboard(ctx context.Context, chatID int64, messageID int) {
	dash, err := b.appointments.Dashboard(ctx)
	if err != nil {
		if b.handleAuthFailure(ctx, chatID, err) {
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load dashboard")
		markup := tgbotapi.NewInlineKeyboardMarkup(button("🔄 Tentar novamente", cbDashboard))
		b.render(chatID, messageID, "❌ Erro ao carregar painel: "+esc(userMessage(err)), &markup)
		return
	}

	var text strings.Builder
	text.WriteString("<b>📊 Painel</b>\n\n")
	text.WriteString(fmt.Sprintf("👤 Clientes: %d\n", dash.Clients))
	text.WriteString(fmt.Sprintf("🐾 Pets: %d\n", dash.Pets))
	text.WriteString(fmt.Sprintf("✂️ Serviços: %d\n", dash.Services))
	text.WriteString(fmt.Sprintf("📋 Agendamentos: %d\n", dash.Appointments))
	text.WriteString(fmt.Sprintf("📅 Hoje: %d\n\n", dash.Today))

	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(dash.Upcoming) == 0 {
		text.WriteString("Nenhum agendamento futuro.")
	} else {
		text.WriteString("<b>Próximos</b>\n")
		for _, v := range dash.Upcoming {
			text.WriteString(appointmentLine(v))
			rows = append(rows, button(appointmentButton(v), idData(cbApptView, v.ID)))
		}
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📋 Agendamentos", cbApptList),
		tgbotapi.NewInlineKeyboardButtonData("📅 Hoje", cbApptToday),
	))

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.render(chatID, messageID, text.String(), &markup)
}
