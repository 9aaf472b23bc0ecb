package gateway

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zulandar/taskrelay/internal/models"
	"github.com/zulandar/taskrelay/internal/telegram"
)

// parseModeHTML is the markup mode used for every outbound message.
const parseModeHTML = "HTML"

// maxDescriptionLen bounds the description excerpt in reminder cards.
const maxDescriptionLen = 120

// taskButtons builds the inline action row attached to task messages.
func taskButtons(taskID string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "✅ Done", CallbackData: "done_" + taskID},
			{Text: "⏰ +1 day", CallbackData: "delay_" + taskID},
			{Text: "💬 Comment", CallbackData: "comment_" + taskID},
		}},
	}
}

// formatReminder renders the reminder card for a task approaching its due
// time: title, truncated description, due date, remaining hours, credits.
func formatReminder(task *models.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⏳ <b>%s</b>\n", html.EscapeString(task.Title)))
	if desc := truncate(task.Description, maxDescriptionLen); desc != "" {
		b.WriteString(html.EscapeString(desc) + "\n")
	}
	if task.DueAt != nil {
		b.WriteString(fmt.Sprintf("Due: %s", task.DueAt.Format("Mon Jan 2 15:04")))
		if hours := task.DueAt.Sub(now).Hours(); hours > 0 {
			b.WriteString(fmt.Sprintf(" (~%dh left)", int(hours+0.5)))
		}
		b.WriteString("\n")
	}
	if task.Credits > 0 {
		b.WriteString(fmt.Sprintf("Credits: %d\n", task.Credits))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatCompleted renders the terminal struck-through state of a task
// message after a done callback.
func formatCompleted(task *models.Task) string {
	return fmt.Sprintf("✅ <s>%s</s>\nCompleted", html.EscapeString(task.Title))
}

// formatDelayed re-renders a task message after its due date was extended.
func formatDelayed(task *models.Task) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⏳ <b>%s</b>\n", html.EscapeString(task.Title)))
	if task.DueAt != nil {
		b.WriteString(fmt.Sprintf("Due: %s (delayed +1 day)", task.DueAt.Format("Mon Jan 2 15:04")))
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatTaskList renders the /mytasks reply.
func formatTaskList(tasks []models.Task) string {
	if len(tasks) == 0 {
		return "You have no open tasks. 🎉"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>Your open tasks</b> (%d)\n", len(tasks)))
	for _, t := range tasks {
		line := "• " + html.EscapeString(t.Title)
		if t.DueAt != nil {
			line += fmt.Sprintf(" — due %s", t.DueAt.Format("Jan 2 15:04"))
		}
		if t.Status == models.TaskStatusOverdue {
			line += " ⚠️ overdue"
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatSummary renders the daily admin summary body.
func formatSummary(r SummaryReport) string {
	var b strings.Builder
	b.WriteString("<b>Daily Summary</b>\n")
	b.WriteString(fmt.Sprintf("Created today: %d\n", r.CreatedToday))
	b.WriteString(fmt.Sprintf("Completed today: %d\n", r.CompletedToday))
	b.WriteString(fmt.Sprintf("Overdue: %d\n", r.Overdue))
	b.WriteString(fmt.Sprintf("Active: %d", r.Active))
	return b.String()
}

// helpText is the generic reply for unrecognized free text.
func helpText() string {
	return "<b>Taskrelay Commands</b>\n" +
		"/start — introduction\n" +
		"/connect — link this chat to your tracker account\n" +
		"/mytasks — list your open tasks\n" +
		"/assign @handle Title [due: tomorrow] [priority: high] — create a task"
}

// startText is the /start reply.
func startText() string {
	return "👋 Taskrelay here. I post task reminders and take quick actions.\n" +
		"Use /connect to link this chat to your tracker account."
}

// truncate returns s truncated to at most maxLen bytes with "..." appended.
// The cut backs up to a rune boundary so the excerpt stays valid UTF-8.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
