package service

import (
	"testing"

	"petagenda/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTelegramSender struct {
	mock.Mock
}

func (m *mockTelegramSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *mockTelegramSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *mockTelegramSender) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *mockTelegramSender) GetSelf() tgbotapi.User {
	args := m.Called()
	return args.Get(0).(tgbotapi.User)
}

func (m *mockTelegramSender) StopReceivingUpdates() {
	m.Called()
}

func TestTelegramService(t *testing.T) {
	mockSender := new(mockTelegramSender)
	svc := NewTelegramService(mockSender)

	t.Run("SendMessage", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.Text == "olá" && msg.ChatID == 123 && msg.ParseMode == ""
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.SendMessage(123, "olá")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendHTML", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && msg.ParseMode == models.ParseModeHTML
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.SendHTML(123, "<b>negrito</b>")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendWithInlineKeyboard", func(t *testing.T) {
		kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("ok", "ok")))
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			if !ok {
				return false
			}
			markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
			return ok && len(markup.InlineKeyboard) == 1 && msg.ParseMode == models.ParseModeHTML
		})).Return(tgbotapi.Message{MessageID: 5}, nil).Once()

		got, err := svc.SendWithInlineKeyboard(123, "escolha", kb)
		assert.NoError(t, err)
		assert.Equal(t, 5, got.MessageID)
		mockSender.AssertExpectations(t)
	})

	t.Run("SendDocument", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			doc, ok := c.(tgbotapi.DocumentConfig)
			return ok && doc.Caption == "agenda" && doc.ChatID == 123
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.SendDocument(123, "/tmp/agenda.xlsx", "agenda")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("EditMessage", func(t *testing.T) {
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			edit, ok := c.(tgbotapi.EditMessageTextConfig)
			return ok && edit.MessageID == 9 && edit.ReplyMarkup == nil
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err := svc.EditMessage(123, 9, "novo", nil)
		assert.NoError(t, err)

		kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("x", "x")))
		mockSender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			edit, ok := c.(tgbotapi.EditMessageTextConfig)
			return ok && edit.ReplyMarkup != nil
		})).Return(tgbotapi.Message{}, nil).Once()

		_, err = svc.EditMessage(123, 9, "novo", &kb)
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("AnswerCallback", func(t *testing.T) {
		mockSender.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			_, ok := c.(tgbotapi.CallbackConfig)
			return ok
		})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

		err := svc.AnswerCallback("cb123", "ok")
		assert.NoError(t, err)
		mockSender.AssertExpectations(t)
	})

	t.Run("GetSelf", func(t *testing.T) {
		mockSender.On("GetSelf").Return(tgbotapi.User{UserName: "petagenda_bot"}).Once()
		assert.Equal(t, "petagenda_bot", svc.GetSelf().UserName)
	})

	t.Run("StopReceivingUpdates", func(t *testing.T) {
		mockSender.On("StopReceivingUpdates").Return().Once()
		svc.StopReceivingUpdates()
		mockSender.AssertExpectations(t)
	})
}
