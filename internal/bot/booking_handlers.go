package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"petagenda/internal/booking"
	"petagenda/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	msgFormStale   = "Este formulário não está mais válido. Use /novo para recomeçar."
	msgBookingGone = "Agendamento descartado."
)

// formView selects what the booking form shows besides the state itself.
type formView struct {
	clientPage int
	month      models.Date
}

func (b *Bot) handleNewBooking(ctx context.Context, chatID int64) {
	w := b.workflow(chatID)
	if err := w.Load(ctx); err != nil && b.handleAuthFailure(ctx, chatID, err) {
		return
	}
	b.renderBooking(chatID, 0, w.Snapshot(), formView{})
}

func (b *Bot) handleBookingCallback(ctx context.Context, chatID int64, messageID int, data string) {
	w := b.workflow(chatID)
	view := formView{}
	var err error

	switch {
	case strings.HasPrefix(data, cbBookingClientPage):
		view.clientPage, _ = strconv.Atoi(strings.TrimPrefix(data, cbBookingClientPage))

	case strings.HasPrefix(data, cbBookingClient):
		id, ok := parseID(strings.TrimPrefix(data, cbBookingClient))
		if !ok {
			return
		}
		err = w.SelectClient(id)

	case strings.HasPrefix(data, cbBookingPet):
		id, ok := parseID(strings.TrimPrefix(data, cbBookingPet))
		if !ok {
			return
		}
		err = w.SelectPet(id)

	case strings.HasPrefix(data, cbBookingService):
		id, ok := parseID(strings.TrimPrefix(data, cbBookingService))
		if !ok {
			return
		}
		err = w.SelectService(ctx, id)

	case strings.HasPrefix(data, cbBookingMonth):
		year, month, perr := parseMonth(strings.TrimPrefix(data, cbBookingMonth))
		if perr != nil {
			return
		}
		view.month = models.Date{Year: year, Month: month, Day: 1}

	case strings.HasPrefix(data, cbBookingDay):
		day, perr := models.ParseDate(strings.TrimPrefix(data, cbBookingDay))
		if perr != nil {
			return
		}
		err = w.SelectDate(ctx, day)

	case data == cbBookingRedate:
		w.ClearDate()

	case strings.HasPrefix(data, cbBookingSlot):
		slot, perr := models.ParseTimeOfDay(strings.TrimPrefix(data, cbBookingSlot), b.loc)
		if perr != nil {
			return
		}
		err = w.SelectSlot(slot)

	case data == cbBookingRetry:
		if st := w.Snapshot(); st.HasDate {
			err = w.SelectDate(ctx, st.Date)
		}

	case data == cbBookingNotes:
		b.setAwaiting(chatID, awaitNotes)
		b.sendMessage(chatID, "📝 Envie as observações do agendamento em uma mensagem.")
		return

	case data == cbBookingSubmit:
		b.submitBooking(ctx, chatID, messageID, w)
		return

	case data == cbBookingCancel:
		w.Reset()
		b.clearAwaiting(chatID)
		b.render(chatID, messageID, msgBookingGone, nil)
		return

	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("Unknown booking callback")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, booking.ErrUnknownClient),
			errors.Is(err, booking.ErrUnknownService),
			errors.Is(err, booking.ErrNoCandidatePets),
			errors.Is(err, booking.ErrPetNotCandidate):
			b.sendMessage(chatID, msgFormStale)
			return
		case errors.Is(err, booking.ErrPastDate):
			b.sendMessage(chatID, "Esta data já passou. Escolha outra.")
		case errors.Is(err, booking.ErrSlotUnavailable):
			b.sendMessage(chatID, "Este horário não está mais na lista. Escolha outro.")
		default:
			// Availability failures were already reported by the workflow.
			if b.handleAuthFailure(ctx, chatID, err) {
				return
			}
		}
	}

	b.renderBooking(chatID, messageID, w.Snapshot(), view)
}

func (b *Bot) submitBooking(ctx context.Context, chatID int64, messageID int, w *booking.Workflow) {
	before := w.Snapshot()

	created, err := w.Submit(ctx)
	if err != nil {
		if b.handleAuthFailure(ctx, chatID, err) {
			return
		}
		if !errors.Is(err, booking.ErrSubmitInProgress) {
			b.renderBooking(chatID, messageID, w.Snapshot(), formView{})
		}
		return
	}

	if b.metrics != nil {
		b.metrics.AppointmentsCreated.Inc()
	}

	text := fmt.Sprintf("✅ <b>Agendamento #%d criado</b>\n%s\n%s às %s",
		created.ID,
		esc(summaryPetService(before)),
		formatDate(before.Date),
		before.Slot.String(),
	)
	b.render(chatID, messageID, text, nil)
}

func (b *Bot) handleNotesInput(ctx context.Context, chatID int64, text string) {
	w := b.workflow(chatID)
	w.SetNotes(text)
	zerolog.Ctx(ctx).Debug().Int64("chat_id", chatID).Msg("Notes updated")
	b.renderBooking(chatID, 0, w.Snapshot(), formView{})
}

func summaryPetService(st booking.State) string {
	pet, service := "", ""
	for _, p := range st.CandidatePets {
		if p.ID == st.PetID {
			pet = p.Name
		}
	}
	for _, s := range st.Services {
		if s.ID == st.ServiceID {
			service = s.Name
		}
	}
	return strings.TrimSpace(pet + " · " + service)
}

// renderBooking draws the booking form: the selections so far and a keyboard
// for the next missing one.
func (b *Bot) renderBooking(chatID int64, messageID int, st booking.State, view formView) {
	var text strings.Builder
	text.WriteString("<b>📝 Novo agendamento</b>\n\n")
	text.WriteString(formSummary(st))
	text.WriteString("\n")

	var rows [][]tgbotapi.InlineKeyboardButton

	switch {
	case st.ClientID == 0:
		b.renderClientPage(chatID, messageID, st, view.clientPage, text.String())
		return

	case st.PetID == 0:
		if len(st.CandidatePets) == 0 {
			text.WriteString("Este cliente não tem pets cadastrados.")
		} else {
			text.WriteString("Escolha o <b>pet</b>:")
			for _, p := range st.CandidatePets {
				rows = append(rows, button(petLabel(p), idData(cbBookingPet, p.ID)))
			}
		}
		rows = append(rows, button("↩️ Trocar cliente", idData(cbBookingClient, 0)))

	case st.ServiceID == 0:
		if len(st.Services) == 0 {
			text.WriteString("Nenhum serviço cadastrado.")
		} else {
			text.WriteString("Escolha o <b>serviço</b>:")
			for _, s := range st.Services {
				rows = append(rows, button(serviceLabel(s), idData(cbBookingService, s.ID)))
			}
		}
		rows = append(rows, button("↩️ Trocar pet", idData(cbBookingClient, st.ClientID)))

	case !st.HasDate:
		text.WriteString("Escolha a <b>data</b>:")
		today := models.DateOf(b.now().In(b.loc))
		month := view.month
		if month.IsZero() {
			month = today
		}
		rows = append(rows, calendarKeyboard(month.Year, month.Month, today).InlineKeyboard...)
		rows = append(rows, button("↩️ Trocar serviço", idData(cbBookingService, 0)))

	case !st.HasSlot:
		switch st.SlotState {
		case booking.SlotsReady:
			text.WriteString("Escolha o <b>horário</b>:")
			rows = append(rows, slotKeyboard(st.Slots)...)
		case booking.SlotsEmpty:
			text.WriteString("Nenhum horário disponível nesta data.")
		case booking.SlotsFailed:
			text.WriteString("Não foi possível carregar os horários.")
			rows = append(rows, button("🔄 Tentar novamente", cbBookingRetry))
		default:
			text.WriteString("Carregando horários…")
		}
		rows = append(rows, button("📅 Trocar data", cbBookingRedate))

	default:
		text.WriteString("Confira os dados e confirme.")
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("📝 Observações", cbBookingNotes),
				tgbotapi.NewInlineKeyboardButtonData("✅ Confirmar", cbBookingSubmit),
			),
			button("🕒 Trocar horário", cbBookingDay+st.Date.String()),
		)
	}

	rows = append(rows, button("✖️ Cancelar", cbBookingCancel))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.render(chatID, messageID, text.String(), &markup)
}

func (b *Bot) renderClientPage(chatID int64, messageID int, st booking.State, page int, header string) {
	clients := st.Clients
	b.renderPaginatedList(PaginationParams{
		ChatID:     chatID,
		MessageID:  messageID,
		Page:       page,
		Title:      strings.TrimRight(header, "\n") + "\nEscolha o <b>cliente</b>:",
		Empty:      "Nenhum cliente cadastrado.",
		PagePrefix: cbBookingClientPage,
		Footer:     [][]tgbotapi.InlineKeyboardButton{button("✖️ Cancelar", cbBookingCancel)},
	}, len(clients), b.pageSize(), func(startIdx, endIdx int) (string, [][]tgbotapi.InlineKeyboardButton) {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, endIdx-startIdx)
		for _, c := range clients[startIdx:endIdx] {
			rows = append(rows, button(c.Name, idData(cbBookingClient, c.ID)))
		}
		return "", rows
	})
}

func formSummary(st booking.State) string {
	field := func(label, value string) string {
		if value == "" {
			value = "—"
		}
		return fmt.Sprintf("%s: %s\n", label, value)
	}

	var client, pet, service, date, slot string
	for _, c := range st.Clients {
		if c.ID == st.ClientID {
			client = esc(c.Name)
		}
	}
	for _, p := range st.CandidatePets {
		if p.ID == st.PetID {
			pet = esc(petLabel(p))
		}
	}
	for _, s := range st.Services {
		if s.ID == st.ServiceID {
			service = esc(serviceLabel(s))
			if s.Duration > 0 {
				service += fmt.Sprintf(" · %d min", s.Duration)
			}
		}
	}
	if st.HasDate {
		date = formatDate(st.Date)
	}
	if st.HasSlot {
		slot = st.Slot.String()
	}

	var out strings.Builder
	out.WriteString(field("👤 Cliente", client))
	out.WriteString(field("🐾 Pet", pet))
	out.WriteString(field("✂️ Serviço", service))
	out.WriteString(field("📅 Data", date))
	out.WriteString(field("🕒 Horário", slot))
	if st.Notes != "" {
		out.WriteString(field("📝 Observações", esc(st.Notes)))
	}
	return out.String()
}
