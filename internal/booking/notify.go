package booking

import "context"

type Level string

const (
	LevelSuccess Level = "success"
	LevelDanger  Level = "danger"
	LevelInfo    Level = "info"
)

// Notification is a user-facing message produced by the workflow.
type Notification struct {
	Level Level
	Text  string
}

// Notifier delivers workflow notifications to the operator.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

const (
	msgLoadClients    = "Erro ao carregar clientes"
	msgLoadPets       = "Erro ao carregar pets"
	msgLoadServices   = "Erro ao carregar serviços"
	msgLoadSlots      = "Erro ao carregar horários disponíveis"
	msgIncomplete     = "Preencha todos os campos obrigatórios"
	msgCreated        = "Agendamento criado com sucesso!"
	msgCreateFailed   = "Erro ao criar agendamento"
	msgStatusUpdated  = "Status atualizado com sucesso!"
	msgStatusFailed   = "Erro ao atualizar status"
	msgGenericFailure = "Erro desconhecido"
	msgBackendDown    = "Servidor não está respondendo. Verifique se o backend está rodando."
	msgSubmitInFlight = "Aguarde: já existe uma operação em andamento."
)
