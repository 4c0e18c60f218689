package bot

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"petagenda/internal/export"

	"github.com/rs/zerolog"
)

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	if b.exporter == nil {
		b.sendMessage(chatID, "Exportação indisponível.")
		return
	}

	views, err := b.appointments.List(ctx)
	if err != nil {
		b.reportError(ctx, chatID, "Erro ao carregar agendamentos", err)
		return
	}

	rows := make([]export.Row, 0, len(views))
	for _, v := range views {
		rows = append(rows, export.Row{
			ID:      v.ID,
			When:    v.When,
			HasTime: v.HasTime,
			Pet:     v.PetName,
			Service: v.ServiceName,
			Status:  v.Status.Label(),
			Notes:   v.Notes,
		})
	}

	path, err := b.exporter.Appointments(rows)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Export failed")
		b.sendMessage(chatID, "❌ Erro ao gerar a planilha.")
		return
	}
	defer removeExport(ctx, path)

	if _, err := b.tgService.SendDocument(chatID, path, "📎 Agendamentos"); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", path).Msg("Failed to send export")
		b.sendMessage(chatID, "❌ Erro ao enviar a planilha.")
		return
	}

	if b.metrics != nil {
		b.metrics.Exports.Inc()
	}
	zerolog.Ctx(ctx).Info().Str("path", path).Int("rows", len(rows)).Msg("Appointments exported")
}

// removeExport deletes the workbook once Telegram holds its copy.
func removeExport(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("Failed to remove export file")
	}
}
