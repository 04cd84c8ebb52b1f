package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

const (
	cbDonePrefix    = "done:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
)

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /link &lt;code&gt; — link this chat to your account\n" +
	"• /tasks — open tasks assigned to you\n" +
	"• /newtask — add a task step by step\n" +
	"• /done &lt;id&gt; — mark a task complete (your half, for tasks an admin assigned)\n" +
	"• /delete &lt;id&gt; — move a task to the trash\n" +
	"• /trash — tasks you can still restore\n" +
	"• /restore &lt;id&gt; — bring a task back from the trash\n" +
	"• /cancel — stop the current dialog"

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.logger.Info("command", "chat_id", chatID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}
	if isCancelInput(msg.Text) {
		b.clearConversation(chatID)
		return b.sendWithReplyMarkup(chatID, "⏪ Dialog cancelled.", tgbotapi.NewRemoveKeyboard(true))
	}
	if b.getConversation(chatID) != nil {
		return b.handleConversation(ctx, msg)
	}
	return b.sendText(chatID, "I did not understand that. Try /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(chatID, helpText)
	case "link":
		return b.handleLink(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, chatID)
	case "newtask":
		return b.startNewTaskConversation(ctx, chatID)
	case "done":
		return b.withTaskID(ctx, msg, b.completeTask)
	case "delete":
		return b.withTaskID(ctx, msg, b.deleteTask)
	case "restore":
		return b.withTaskID(ctx, msg, b.restoreTask)
	case "trash":
		return b.handleTrash(ctx, chatID)
	case "cancel":
		b.clearConversation(chatID)
		return b.sendWithReplyMarkup(chatID, "⏪ Dialog cancelled.", tgbotapi.NewRemoveKeyboard(true))
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep you posted about your tasks.</b>\n\n%s", escape(name), helpText)
	if err := b.sendText(msg.Chat.ID, text); err != nil {
		return err
	}
	if _, err := b.users.FindByTelegramChat(ctx, msg.Chat.ID); err != nil {
		return b.sendText(msg.Chat.ID, "To get started, request a link code in the web app and send <code>/link CODE</code>.")
	}
	return nil
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) error {
	code := strings.TrimSpace(msg.CommandArguments())
	if code == "" {
		return b.sendText(msg.Chat.ID, "Send the code from the web app: <code>/link CODE</code>")
	}
	user, err := b.users.LinkTelegram(ctx, code, msg.Chat.ID)
	if err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Linked to <b>%s</b>. You will get reminders here.", escape(user.Name)))
}

func (b *Bot) handleListTasks(ctx context.Context, chatID int64) error {
	user, ok, err := b.linkedUser(ctx, chatID)
	if !ok {
		return err
	}
	open := false
	tasks, err := b.tasks.List(ctx, service.ActorFor(user), repository.TaskFilter{Completed: &open})
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "You have no open tasks. Add one with /newtask.")
	}

	now := b.clock.Now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap a button to mark a task complete.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(service.FormatTask(task, now))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)),
				fmt.Sprintf("%s%d", cbDonePrefix, task.ID),
			),
		))
	}
	return b.sendWithReplyMarkup(chatID, strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleTrash(ctx context.Context, chatID int64) error {
	user, ok, err := b.linkedUser(ctx, chatID)
	if !ok {
		return err
	}
	tasks, err := b.trash.ListTrash(ctx, service.ActorFor(user))
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "🗑 The trash is empty.")
	}

	var builder strings.Builder
	builder.WriteString("🗑 <b>Trash</b>\n")
	for _, task := range tasks {
		expires := task.DeletedAt.Add(b.trash.Retention())
		builder.WriteString(fmt.Sprintf("<code>#%d</code> %s · restorable until %s\n",
			task.ID, escape(shortTitle(task.Title, 40)), expires.Format("2006-01-02 15:04")))
	}
	builder.WriteString("\nUse /restore &lt;id&gt; to bring one back.")
	return b.sendText(chatID, builder.String())
}

// withTaskID parses the numeric argument of a command and runs fn for the linked user.
func (b *Bot) withTaskID(ctx context.Context, msg *tgbotapi.Message, fn func(context.Context, int64, *model.User, uint) error) error {
	chatID := msg.Chat.ID
	id, err := parseTaskID(msg.CommandArguments())
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Give the task id: <code>/%s 12</code>", msg.Command()))
	}
	user, ok, err := b.linkedUser(ctx, chatID)
	if !ok {
		return err
	}
	return fn(ctx, chatID, user, id)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.tasks.MarkDone(ctx, service.ActorFor(user), taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	b.logger.Info("task completed from bot", "task_id", task.ID, "user_id", user.ID, "completed", task.IsCompleted)

	title := escape(shortTitle(task.Title, 60))
	if task.IsCompleted {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» is complete.", title))
	}
	return b.sendText(chatID, fmt.Sprintf("☑️ Your part of «%s» is done. Waiting for the other side to confirm.", title))
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	if err := b.trash.Delete(ctx, service.ActorFor(user), taskID); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Task #%d moved to the trash. /restore %d brings it back.", taskID, taskID))
}

func (b *Bot) restoreTask(ctx context.Context, chatID int64, user *model.User, taskID uint) error {
	task, err := b.trash.Restore(ctx, service.ActorFor(user), taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("♻️ «%s» restored.", escape(shortTitle(task.Title, 60))))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack", "err", err)
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		taskID, err := parseTaskID(strings.TrimPrefix(data, cbDonePrefix))
		if err != nil {
			return nil
		}
		return b.askCompleteConfirmation(ctx, chatID, taskID)
	case strings.HasPrefix(data, cbConfirmPrefix):
		taskID, err := parseTaskID(strings.TrimPrefix(data, cbConfirmPrefix))
		if err != nil {
			return nil
		}
		user, ok, err := b.linkedUser(ctx, chatID)
		if !ok {
			return err
		}
		return b.completeTask(ctx, chatID, user, taskID)
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendText(chatID, "↩️ Okay, nothing changed.")
	}
	return nil
}

func (b *Bot) askCompleteConfirmation(ctx context.Context, chatID int64, taskID uint) error {
	user, ok, err := b.linkedUser(ctx, chatID)
	if !ok {
		return err
	}
	task, err := b.tasks.Get(ctx, service.ActorFor(user), taskID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if task.IsCompleted {
		return b.sendText(chatID, "This task is already complete.")
	}

	text := fmt.Sprintf("Mark «%s» (#%d) as complete?", escape(shortTitle(task.Title, 60)), task.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(task.ID))
}

func parseTaskID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, fmt.Errorf("task id must be positive")
	}
	return uint(value), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.Join(strings.Fields(title), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func confirmKeyboard(taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", fmt.Sprintf("%s%d", cbConfirmPrefix, taskID)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", fmt.Sprintf("%s%d", cbCancelPrefix, taskID)),
		),
	)
}
