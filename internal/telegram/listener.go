package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"gold-trading-bot/internal/database"
)

// SignalStore persists parsed signals
type SignalStore interface {
	CreateSignal(ctx context.Context, signal *database.Signal) error
}

// Listener receives channel messages, parses them through the registry and
// queues the resulting signals for execution.
type Listener struct {
	bot      *tele.Bot
	registry *Registry
	store    SignalStore
	logger   zerolog.Logger
	symbol   string
}

// NewListener connects the bot and wires the message handler
func NewListener(token string, registry *Registry, store SignalStore, logger zerolog.Logger, symbol string) (*Listener, error) {
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	l := &Listener{
		bot:      bot,
		registry: registry,
		store:    store,
		logger:   logger.With().Str("component", "TelegramListener").Logger(),
		symbol:   symbol,
	}
	bot.Handle(tele.OnText, l.handleText)
	bot.Handle(tele.OnChannelPost, l.handleText)
	return l, nil
}

// Start begins long polling. Blocks until Stop is called.
func (l *Listener) Start() {
	l.logger.Info().Msg("Telegram listener started")
	l.bot.Start()
}

// Stop shuts the poller down
func (l *Listener) Stop() {
	l.bot.Stop()
	l.logger.Info().Msg("Telegram listener stopped")
}

func (l *Listener) handleText(c tele.Context) error {
	sender := senderName(c)
	text := c.Text()

	signal, err := l.registry.Parse(sender, text)
	if err != nil {
		if errors.Is(err, ErrUnknownSender) || errors.Is(err, ErrNotASignal) {
			l.logger.Debug().Str("sender", sender).Err(err).Msg("Message ignored")
			return nil
		}
		l.logger.Warn().Str("sender", sender).Err(err).Msg("Signal parse failed")
		return nil
	}

	signal.Instrument = l.symbol
	signal.Comment = fmt.Sprintf("Telegram %s", sender)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.CreateSignal(ctx, signal); err != nil {
		l.logger.Error().Err(err).Msg("Failed to store telegram signal")
		return nil
	}

	l.logger.Info().
		Int64("signal_id", signal.ID).
		Str("sender", sender).
		Str("action", signal.Action).
		Msg("Telegram signal queued")
	return nil
}

// senderName prefers the channel or chat title and falls back to the
// user's handle.
func senderName(c tele.Context) string {
	if chat := c.Chat(); chat != nil && chat.Title != "" {
		return chat.Title
	}
	if sender := c.Sender(); sender != nil {
		if sender.Username != "" {
			return sender.Username
		}
		return sender.FirstName
	}
	return "unknown"
}
