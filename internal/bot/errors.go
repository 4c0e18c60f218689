package bot

import (
	"errors"

	"petagenda/internal/booking"
	"petagenda/internal/petshop"
)

const (
	msgUnknownCommand   = "Comando não reconhecido. Use /help para ver os comandos."
	msgRateLimited      = "⚠️ Você está enviando mensagens rápido demais. Aguarde um instante."
	msgLoginRequired    = "🔒 Faça login primeiro: /login <email> <senha>"
	msgSessionExpired   = "⌛ Sua sessão expirou. Faça login novamente: /login <email> <senha>"
	msgSessionRejected  = "🔒 O servidor recusou sua sessão. Faça login novamente: /login <email> <senha>"
	msgSessionStoreDown = "❌ Não foi possível verificar sua sessão. Tente novamente em instantes."
	msgNotFound         = "Agendamento não encontrado"
)

// userMessage maps an error to operator text.
func userMessage(err error) string {
	if err == nil {
		return ""
	}

	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		return "Preencha todos os campos obrigatórios"
	case errors.Is(err, booking.ErrSubmitInProgress):
		return "Aguarde: já existe uma operação em andamento."
	case errors.Is(err, petshop.ErrNotFound):
		if msg := petshop.Message(err); msg != "" {
			return msg
		}
		return msgNotFound
	}
	return booking.Describe(err)
}
