package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/model"
	"taskboard/internal/service"
)

// sender is the part of the Telegram API the bot talks to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot aggregates Telegram API with services.
type Bot struct {
	client        *tgbotapi.BotAPI
	api           sender
	users         *service.UserService
	tasks         *service.TaskService
	trash         *service.TrashService
	clock         service.Clock
	logger        *slog.Logger
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, users *service.UserService, tasks *service.TaskService, trash *service.TrashService, logger *slog.Logger) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	logger.Info("bot authorized", "account", client.Self.UserName)

	b := newBot(client, users, tasks, trash, service.SystemClock(), logger)
	b.client = client
	return b, nil
}

func newBot(api sender, users *service.UserService, tasks *service.TaskService, trash *service.TrashService, clock service.Clock, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bot{
		api:           api,
		users:         users,
		tasks:         tasks,
		trash:         trash,
		clock:         clock,
		logger:        logger,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return errors.New("bot has no telegram client")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.client.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.client.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Error("handle callback", "err", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Error("handle message", "chat_id", update.Message.Chat.ID, "err", err)
		}
	}
}

// Notify sends an HTML message to chatID. It lets the reminder service deliver through the bot.
func (b *Bot) Notify(_ context.Context, chatID int64, text string) error {
	return b.sendText(chatID, text)
}

// linkedUser returns the account bound to chatID, or tells the chat how to link one.
func (b *Bot) linkedUser(ctx context.Context, chatID int64) (*model.User, bool, error) {
	user, err := b.users.FindByTelegramChat(ctx, chatID)
	if err == nil {
		return user, true, nil
	}
	if errors.Is(err, service.ErrNotFound) {
		return nil, false, b.sendText(chatID, "This chat is not linked yet. Get a code from the web app and send <code>/link CODE</code>.")
	}
	return nil, false, err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

// sendError reports a service error to the chat in plain words.
func (b *Bot) sendError(chatID int64, err error) error {
	switch service.Kind(err) {
	case "internal":
		b.logger.Error("bot command failed", "chat_id", chatID, "err", err)
		return b.sendText(chatID, "Something went wrong, try again later.")
	default:
		return b.sendText(chatID, "⚠️ "+escape(errorMessage(err)))
	}
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

func errorMessage(err error) string {
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, ": "); ok {
		return after
	}
	return msg
}

func escape(s string) string {
	return html.EscapeString(s)
}
