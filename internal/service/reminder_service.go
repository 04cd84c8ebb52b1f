package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"taskboard/internal/model"
	"taskboard/internal/repository"
)

// Notifier delivers a rendered message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// ReminderService sends due-date reminders and builds daily digests.
type ReminderService struct {
	tasks    *repository.TaskRepository
	users    *repository.UserRepository
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
}

func NewReminderService(tasks *repository.TaskRepository, users *repository.UserRepository, notifier Notifier, clock Clock, logger *slog.Logger) *ReminderService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReminderService{tasks: tasks, users: users, notifier: notifier, clock: clock, logger: logger}
}

// ReminderDue reports whether task's reminder should fire at now.
func ReminderDue(task *model.Task, now time.Time) bool {
	if task.ReminderMinutesBefore == nil || task.DueDate == nil || task.ReminderSentAt != nil {
		return false
	}
	if task.IsCompleted || task.TrashState() == model.Trashed {
		return false
	}
	fireAt := task.DueDate.Add(-time.Duration(*task.ReminderMinutesBefore) * time.Minute)
	return !now.Before(fireAt) && now.Before(*task.DueDate)
}

// Dispatch sends every reminder that is due and returns how many were delivered.
// A failed delivery is logged and retried on the next run.
func (s *ReminderService) Dispatch(ctx context.Context) (int, error) {
	now := s.clock.Now()
	tasks, err := s.tasks.ListReminderCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	chats := make(map[uint]*int64)
	sent := 0
	for i := range tasks {
		task := &tasks[i]
		if !ReminderDue(task, now) {
			continue
		}

		chatID, ok := chats[task.AssignedToID]
		if !ok {
			user, err := s.users.FindByID(ctx, task.AssignedToID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return sent, err
			default:
				chatID = user.TelegramChatID
			}
			chats[task.AssignedToID] = chatID
		}
		if chatID == nil || s.notifier == nil {
			continue
		}

		if err := s.notifier.Notify(ctx, *chatID, formatReminder(task, now)); err != nil {
			s.logger.Error("send reminder", "task_id", task.ID, "chat_id", *chatID, "err", err)
			continue
		}
		if err := s.tasks.MarkReminderSent(ctx, task.ID, now); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Digest renders the open tasks assigned to user.
func (s *ReminderService) Digest(ctx context.Context, user model.User) (string, error) {
	tasks, err := s.tasks.ListOpenAssigned(ctx, user.ID)
	if err != nil {
		return "", err
	}
	now := s.clock.Now()

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(tasks) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, task := range tasks {
			builder.WriteString(FormatTask(task, now))
		}
	}
	return strings.TrimSpace(builder.String()), nil
}

// SendDigests delivers a digest to every user with a linked chat.
func (s *ReminderService) SendDigests(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	users, err := s.users.ListTelegramLinked(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, user := range users {
		if user.TelegramChatID == nil {
			continue
		}
		text, err := s.Digest(ctx, user)
		if err != nil {
			s.logger.Error("build digest", "user_id", user.ID, "err", err)
			continue
		}
		if err := s.notifier.Notify(ctx, *user.TelegramChatID, text); err != nil {
			s.logger.Error("send digest", "user_id", user.ID, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// FormatTask renders one task line in Telegram HTML.
func FormatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.DueDate != nil {
		switch {
		case now.After(*task.DueDate):
			icon = "⚠️"
		case task.DueDate.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	title := html.EscapeString(strings.TrimSpace(task.Title))
	sb.WriteString(fmt.Sprintf("%s <code>#%d</code> %s", icon, task.ID, title))

	if category := strings.TrimSpace(task.Category); category != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(category)))
	}
	if task.Priority == model.PriorityHigh {
		sb.WriteString(" ❗")
	}

	if task.DueDate != nil {
		d := *task.DueDate
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s, <b>overdue</b>", d.Format("2006-01-02 15:04")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · about %d day(s) left", d.Format("2006-01-02 15:04"), daysLeft))
		}
	}

	if task.IsAdminAssigned() {
		sb.WriteString(fmt.Sprintf("\n   ✅ you: %s · admin: %s", checkmark(task.UserCompleted), checkmark(task.AdminCompleted)))
	}

	if len(task.Subtasks) > 0 {
		done := 0
		for _, st := range task.Subtasks {
			if st.Completed {
				done++
			}
		}
		sb.WriteString(fmt.Sprintf("\n   ☑️ %d/%d subtasks", done, len(task.Subtasks)))
	}

	if desc := strings.TrimSpace(task.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(desc)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatReminder(task *model.Task, now time.Time) string {
	left := task.DueDate.Sub(now).Round(time.Minute)
	return fmt.Sprintf("⏰ <b>Reminder</b>: due in %s\n%s", left, strings.TrimSpace(FormatTask(*task, now)))
}

func checkmark(done bool) string {
	if done {
		return "yes"
	}
	return "no"
}
