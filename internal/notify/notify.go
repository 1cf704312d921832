// Package notify pushes Telegram messages about account and order events.
// Delivery is strictly best-effort: failures are logged and never surface
// to the operation that triggered them.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

// Notifier covers every event the services announce to users.
type Notifier interface {
	ReferralBonus(ctx context.Context, telegramID int64, amount int64, referredName string)
	DepositConfirmed(ctx context.Context, telegramID int64, amount int64, balance int64)
	OrderPlaced(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type telegramNotifier struct {
	bot  sender
	logg *logger.Logger
}

// NewTelegram builds a notifier on top of an authorized bot API client.
func NewTelegram(bot *tgbotapi.BotAPI, logg *logger.Logger) Notifier {
	return &telegramNotifier{bot: bot, logg: logg}
}

func (n *telegramNotifier) ReferralBonus(ctx context.Context, telegramID int64, amount int64, referredName string) {
	text := fmt.Sprintf("🎉 <b>Referral bonus!</b>\n\n%s joined with your link.\n💰 +%d so'm added to your balance.", referredName, amount)
	n.send(ctx, telegramID, text)
}

func (n *telegramNotifier) DepositConfirmed(ctx context.Context, telegramID int64, amount int64, balance int64) {
	text := fmt.Sprintf("✅ <b>Deposit confirmed</b>\n\n💰 +%d so'm\n💳 Balance: %d so'm", amount, balance)
	n.send(ctx, telegramID, text)
}

func (n *telegramNotifier) OrderPlaced(ctx context.Context, order *models.Order) {
	text := fmt.Sprintf(
		"🛒 <b>Order accepted</b>\n\n🆔 %s\n📦 %s\n🔢 Quantity: %d\n💰 Paid: %d so'm",
		order.ID, order.ServiceName, order.Quantity, order.Price,
	)
	n.send(ctx, order.TelegramID, text)
}

func (n *telegramNotifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	var text string
	switch order.Status {
	case enums.OrderStatusProcessing:
		text = fmt.Sprintf("⚙️ <b>Order %s is processing</b>\n📊 Progress: %d%%", order.ID, order.Progress)
	case enums.OrderStatusCompleted:
		text = fmt.Sprintf("✅ <b>Order %s completed</b>\n📦 %s is fully delivered.", order.ID, order.ServiceName)
	case enums.OrderStatusCancelled:
		text = fmt.Sprintf("❌ <b>Order %s cancelled</b>\n💰 %d so'm refunded to your balance.", order.ID, order.Price)
	default:
		text = fmt.Sprintf("ℹ️ Order %s: %s (%d%%)", order.ID, order.Status, order.Progress)
	}
	n.send(ctx, order.TelegramID, text)
}

func (n *telegramNotifier) send(ctx context.Context, chatID int64, text string) {
	if n.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil && n.logg != nil {
		ctx = n.logg.WithTelegramID(ctx, chatID)
		n.logg.Warn(ctx, fmt.Sprintf("telegram notification failed: %v", err))
	}
}

type noopNotifier struct{}

// NewNoop returns a notifier that discards everything, for deployments
// without a bot token and for tests.
func NewNoop() Notifier {
	return noopNotifier{}
}

func (noopNotifier) ReferralBonus(context.Context, int64, int64, string)   {}
func (noopNotifier) DepositConfirmed(context.Context, int64, int64, int64) {}
func (noopNotifier) OrderPlaced(context.Context, *models.Order)            {}
func (noopNotifier) OrderStatusChanged(context.Context, *models.Order)     {}
