package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/kalambet/kcalbot/internal/conversation"
)

// Conversation is the dialogue engine the transport dispatches into.
// Implemented by conversation.Engine.
type Conversation interface {
	HandleCommand(ctx context.Context, userID int64, command string) string
	HandleText(ctx context.Context, userID int64, text string) string
}

// Bot receives Telegram updates over long polling and routes them to the
// conversation engine.
type Bot struct {
	api    *tgbotapi.BotAPI
	engine Conversation
	logger *slog.Logger
}

// New authenticates against the Telegram API with the given token.
func New(token string, engine Conversation) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	return &Bot{
		api:    api,
		engine: engine,
		logger: slog.Default(),
	}, nil
}

// Username returns the authenticated bot account name.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Run polls for updates until ctx is cancelled. Updates are processed one at
// a time, so each user's messages are handled strictly in arrival order.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	traceID := uuid.New().String()

	var reply string
	if msg.IsCommand() {
		command := msg.Command()
		b.logger.Debug("command received", "trace_id", traceID, "user_id", userID, "command", command)
		reply = b.engine.HandleCommand(ctx, userID, command)
		b.send(msg.Chat.ID, reply, command == conversation.CmdStart, traceID)
		return
	}

	b.logger.Debug("text received", "trace_id", traceID, "user_id", userID)
	reply = b.engine.HandleText(ctx, userID, msg.Text)
	b.send(msg.Chat.ID, reply, false, traceID)
}

func (b *Bot) send(chatID int64, text string, withMenu bool, traceID string) {
	out := tgbotapi.NewMessage(chatID, text)
	if withMenu {
		out.ReplyMarkup = mainMenu()
	}
	if _, err := b.api.Send(out); err != nil {
		b.logger.Error("sending reply", "trace_id", traceID, "chat_id", chatID, "error", err)
	}
}

// mainMenu is the persistent reply keyboard shown after /start.
func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	menu := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/add_food"),
			tgbotapi.NewKeyboardButton("/my_calories"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/set_goal"),
			tgbotapi.NewKeyboardButton("/add_weight"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/profile"),
			tgbotapi.NewKeyboardButton("/bmi"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
	menu.ResizeKeyboard = true
	return menu
}
