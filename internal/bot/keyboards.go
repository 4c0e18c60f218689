package bot

import (
	"fmt"
	"strconv"
	"strings"

	"petagenda/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data. Telegram limits it to 64 bytes.
const (
	cbNoop      = "noop"
	cbDashboard = "dash"

	prefixBooking       = "bk:"
	cbBookingClient     = "bk:cli:"
	cbBookingClientPage = "bk:clp:"
	cbBookingPet        = "bk:pet:"
	cbBookingService    = "bk:svc:"
	cbBookingMonth      = "bk:mon:"
	cbBookingDay        = "bk:day:"
	cbBookingRedate     = "bk:redate"
	cbBookingSlot       = "bk:slot:"
	cbBookingRetry      = "bk:retry"
	cbBookingNotes      = "bk:notes"
	cbBookingSubmit     = "bk:submit"
	cbBookingCancel     = "bk:cancel"

	prefixAppointment = "ap:"
	cbApptPage        = "ap:pg:"
	cbApptView        = "ap:v:"
	cbApptStatus      = "ap:st:"
	cbApptStatusOK    = "ap:sok:"
	cbApptDelete      = "ap:del:"
	cbApptDeleteOK    = "ap:dok:"
	cbApptList        = "ap:list"
	cbApptToday       = "ap:today"
)

func idData(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

func statusData(prefix string, id int64, status models.AppointmentStatus) string {
	return fmt.Sprintf("%s%d:%s", prefix, id, status)
}

// parseStatusData splits "<id>:<status>".
func parseStatusData(s string) (int64, models.AppointmentStatus, bool) {
	idPart, statusPart, ok := strings.Cut(s, ":")
	if !ok {
		return 0, "", false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", false
	}
	status := models.AppointmentStatus(statusPart)
	if !status.Valid() {
		return 0, "", false
	}
	return id, status, true
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id >= 0
}

func serviceLabel(s models.Service) string {
	label := s.Name
	if s.Price != "" {
		label += " · " + s.Price.String()
	}
	if !s.Active {
		label += " (inativo)"
	}
	return label
}

func petLabel(p models.Pet) string {
	if p.Species == "" {
		return p.Name
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.SpeciesName())
}

// statusKeyboard offers every status except the current one.
func statusKeyboard(appt models.Appointment) []tgbotapi.InlineKeyboardButton {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(models.AllStatuses))
	for _, s := range models.AllStatuses {
		if s == appt.Status {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(statusLine(s), statusData(cbApptStatus, appt.ID, s)))
	}
	return row
}

func confirmKeyboard(yesText, yesData, noData string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(yesText, yesData),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Voltar", noData),
	))
}

func button(text, data string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data))
}
