package notificator

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/zenwatch/zenwatch/internal/models"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

// Notificator fans an alert out to every channel the user enabled.
// Channels are independent: a failure in one is collected and logged but
// never blocks the others.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a channel send with panic recovery so a misbehaving client
// library cannot take down the dispatcher run.
func (n *Notificator) safeCall(fn func() error, context string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Channel send panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("panic in %s: %v", context, r)
		}
	}()
	return fn()
}

// Send delivers msg over every enabled channel. The browser channel has no
// outbound call: the persisted ledger row is what the dashboard surfaces, so
// enabling it alone still counts as delivered. Delivered is true when at
// least one enabled channel succeeded.
func (n *Notificator) Send(ctx context.Context, pref *models.AlertPreference, email string, msg *models.AlertMessage) (bool, []error) {
	var channelErrs []error
	delivered := false

	if pref.EnableTelegram && pref.TelegramBotToken != "" && pref.TelegramChatID != "" {
		err := n.safeCall(func() error {
			return n.TelegramNotificator.SendNotification(ctx, pref.TelegramBotToken, pref.TelegramChatID, msg.HTML())
		}, "telegramNotification")
		if err != nil {
			n.logger.Error("Failed to send telegram notification ", "chat_id ", pref.TelegramChatID, " error ", err)
			channelErrs = append(channelErrs, &models.NotificationChannelError{Channel: "telegram", Err: err})
		} else {
			delivered = true
		}
	}

	if pref.EnableEmail {
		if email == "" {
			channelErrs = append(channelErrs, &models.NotificationChannelError{
				Channel: "email", Err: fmt.Errorf("no email address on profile")})
		} else {
			err := n.safeCall(func() error {
				return n.EmailNotificator.SendNotification(ctx, email, msg)
			}, "emailNotification")
			if err != nil {
				n.logger.Error("Failed to send email notification ", "to ", email, " error ", err)
				channelErrs = append(channelErrs, &models.NotificationChannelError{Channel: "email", Err: err})
			} else {
				delivered = true
			}
		}
	}

	if pref.EnableBrowser {
		delivered = true
	}

	return delivered, channelErrs
}
