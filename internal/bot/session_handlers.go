package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"petagenda/internal/models"
	"petagenda/internal/petshop"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `<b>🐾 PetAgenda</b>

/login &lt;email&gt; &lt;senha&gt; - entrar
/logout - sair
/novo - novo agendamento
/agendamentos - lista de agendamentos
/hoje - agendamentos de hoje
/agendamento &lt;id&gt; - detalhes de um agendamento
/painel - resumo geral
/exportar - planilha com todos os agendamentos
/historico - suas últimas ações`

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if session, err := b.sessions.Current(ctx, chatID); err == nil {
		b.sendHTML(chatID, fmt.Sprintf("Olá, %s! 👋\n\n%s", esc(operatorName(session.Operator)), helpText))
		return
	}
	b.sendHTML(chatID, "Olá! 👋 Para começar, faça login.\n\n"+helpText)
}

func (b *Bot) handleHelp(chatID int64) {
	b.sendHTML(chatID, helpText)
}

func operatorName(op models.Operator) string {
	if op.Name != "" {
		return op.Name
	}
	return op.Email
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID

	// The message carries a password.
	if _, err := b.tgService.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Failed to delete login message")
	}

	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.sendMessage(chatID, "Uso: /login <email> <senha>")
		return
	}

	session, err := b.sessions.Login(ctx, chatID, models.Credentials{Email: fields[0], Password: fields[1]})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("Login failed")
		switch {
		case errors.Is(err, petshop.ErrUnauthorized), errors.Is(err, petshop.ErrNoToken):
			b.sendMessage(chatID, "❌ Credenciais inválidas.")
		default:
			b.sendMessage(chatID, "❌ Falha no login: "+userMessage(err))
		}
		return
	}

	b.sendHTML(chatID, fmt.Sprintf("✅ Bem-vindo(a), <b>%s</b>! Use /novo para agendar ou /help para ver os comandos.",
		esc(operatorName(session.Operator))))
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) {
	if err := b.sessions.Logout(ctx, chatID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Logout failed")
		b.sendMessage(chatID, msgSessionStoreDown)
		return
	}
	b.sendMessage(chatID, "👋 Sessão encerrada.")
}

var actionLabels = map[string]string{
	"session_opened":             "Login",
	"session_closed":             "Logout",
	"appointment_created":        "Agendamento criado",
	"appointment_status_changed": "Status alterado",
	"appointment_deleted":        "Agendamento excluído",
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64) {
	if b.audit == nil {
		b.sendMessage(chatID, "Histórico indisponível.")
		return
	}

	entries, err := b.audit.Recent(ctx, chatID, models.AuditHistoryLimit)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Failed to read audit journal")
		b.sendMessage(chatID, "❌ Não foi possível ler o histórico.")
		return
	}
	if len(entries) == 0 {
		b.sendMessage(chatID, "Nenhuma ação registrada.")
		return
	}

	var text strings.Builder
	text.WriteString("<b>🗂 Últimas ações</b>\n\n")
	for _, e := range entries {
		label := actionLabels[e.Action]
		if label == "" {
			label = e.Action
		}
		text.WriteString(e.CreatedAt.In(b.loc).Format("02/01 15:04"))
		text.WriteString(" · ")
		text.WriteString(esc(label))
		if e.EntityID != 0 {
			text.WriteString(fmt.Sprintf(" #%d", e.EntityID))
		}
		if e.Details != "" {
			text.WriteString(" · " + esc(e.Details))
		}
		text.WriteString("\n")
	}
	b.sendHTML(chatID, text.String())
}
