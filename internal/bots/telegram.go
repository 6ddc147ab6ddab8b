package bots

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token       string
	PollTimeout int
	Debug       bool
}

// Telegram is a long-polling Bot API transport. Session identifiers are
// chat ids in decimal form and message refs are message ids.
type Telegram struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *zap.Logger
}

// NewTelegram authenticates against the Bot API.
func NewTelegram(cfg TelegramConfig, logger *zap.Logger) (*Telegram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	api.Debug = cfg.Debug
	logger.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	return &Telegram{api: api, pollTimeout: cfg.PollTimeout, logger: logger}, nil
}

// Run polls for updates and feeds them to the gateway until ctx is done.
func (t *Telegram) Run(ctx context.Context, gateway *Gateway) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := eventFromUpdate(update)
			if !ok {
				continue
			}
			if err := gateway.Process(ctx, ev); err != nil {
				t.logger.Warn("processing update failed",
					zap.Int("update_id", update.UpdateID), zap.Error(err))
			}
		}
	}
}

// eventFromUpdate maps a Bot API update to an Event. Updates other than
// messages and callback queries on a message are ignored.
func eventFromUpdate(update tgbotapi.Update) (Event, bool) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil {
			return Event{}, false
		}
		ev := Event{
			ID:        cq.ID,
			Platform:  PlatformTelegram,
			SessionID: strconv.FormatInt(cq.Message.Chat.ID, 10),
			Kind:      KindButton,
			Action:    cq.Data,
		}
		if cq.From != nil {
			ev.UserName = cq.From.UserName
		}
		return ev, true

	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil {
			return Event{}, false
		}
		ev := Event{
			ID:        strconv.Itoa(msg.MessageID),
			Platform:  PlatformTelegram,
			SessionID: strconv.FormatInt(msg.Chat.ID, 10),
			Kind:      KindText,
			Text:      msg.Text,
		}
		if msg.From != nil {
			ev.UserName = msg.From.UserName
		}
		if reply := msg.ReplyToMessage; reply != nil {
			ev.ReplyToText = reply.Text
			ev.ReplyToRef = MessageRef(strconv.Itoa(reply.MessageID))
		}
		return ev, true
	}
	return Event{}, false
}

// Send posts a message, rendering buttons one per row.
func (t *Telegram) Send(_ context.Context, sessionID, text string, buttons []Button) (MessageRef, error) {
	chatID, err := parseChatID(sessionID)
	if err != nil {
		return "", err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = inlineKeyboard(buttons)
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("sending to %s: %w", sessionID, err)
	}
	return MessageRef(strconv.Itoa(sent.MessageID)), nil
}

// Edit replaces a message's text. Omitting buttons drops the keyboard.
func (t *Telegram) Edit(_ context.Context, sessionID string, ref MessageRef, text string, buttons []Button) error {
	chatID, err := parseChatID(sessionID)
	if err != nil {
		return err
	}
	messageID, err := strconv.Atoi(string(ref))
	if err != nil {
		return fmt.Errorf("invalid message ref %q: %w", ref, err)
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if len(buttons) > 0 {
		kb := inlineKeyboard(buttons)
		edit.ReplyMarkup = &kb
	}
	if _, err := t.api.Send(edit); err != nil {
		return fmt.Errorf("editing %s/%s: %w", sessionID, ref, err)
	}
	return nil
}

// Acknowledge answers a callback query so the client stops its spinner.
func (t *Telegram) Acknowledge(_ context.Context, eventID string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(eventID, "")); err != nil {
		return fmt.Errorf("answering callback %s: %w", eventID, err)
	}
	return nil
}

func inlineKeyboard(buttons []Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseChatID(sessionID string) (int64, error) {
	id, err := strconv.ParseInt(sessionID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", sessionID, err)
	}
	return id, nil
}
