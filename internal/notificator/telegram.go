package notificator

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/zenwatch/zenwatch/pkg/logger"
)

// TelegramNotificator sends alerts through each user's own bot. Tokens are
// per-user, so bot clients are created lazily and cached by token.
type TelegramNotificator struct {
	logger *logger.Logger

	mu   sync.Mutex
	bots map[string]*bot.Bot
}

func NewTelegramNotificator(logger *logger.Logger) *TelegramNotificator {
	return &TelegramNotificator{
		logger: logger,
		bots:   make(map[string]*bot.Bot),
	}
}

func (t *TelegramNotificator) botForToken(token string) (*bot.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if b, ok := t.bots[token]; ok {
		return b, nil
	}
	// SkipGetMe keeps client creation off the network; a bad token surfaces
	// on the first send instead.
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, err
	}
	t.bots[token] = b
	return b, nil
}

func (t *TelegramNotificator) SendNotification(ctx context.Context, token, chatID, message string) error {
	b, err := t.botForToken(token)
	if err != nil {
		return err
	}

	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      message,
		ParseMode: tgModels.ParseModeHTML,
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		t.logger.Error("Failed to send telegram message ", "chat_id ", chatID, " error ", err)
		return err
	}
	return nil
}
