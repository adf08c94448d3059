package notify

import (
	"context"
	"fmt"

	"cabanas/internal/config"
	"cabanas/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier pushes a short message to the manager chats when a
// booking gets paid. Send-only: no update polling, no commands.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: cfg.ChatIDs,
		logger:  logger.With().Str("component", "telegram").Logger(),
	}, nil
}

func (n *TelegramNotifier) NotifyBookingPaid(ctx context.Context, booking *models.Booking) error {
	text := fmt.Sprintf(
		"💰 Reserva pagada\n\n%s\n%s → %s\n%d personas\nTotal: $%d CLP\n%s\n%s",
		booking.UnitName,
		booking.StartDate.Format(models.DateLayout),
		booking.EndDate.Format(models.DateLayout),
		booking.PartySize,
		booking.Price.Total,
		booking.CustomerName,
		booking.ID,
	)

	var firstErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send error")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
