package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zulandar/taskrelay/internal/models"
	"github.com/zulandar/taskrelay/internal/telegram"
	"gorm.io/gorm"
)

// ActionKind enumerates the callback actions encoded in button data.
type ActionKind string

const (
	ActionDone    ActionKind = "done"
	ActionDelay   ActionKind = "delay"
	ActionComment ActionKind = "comment"
	ActionUnknown ActionKind = "unknown"
)

// CallbackAction is the decoded form of a callback_data payload.
type CallbackAction struct {
	Kind   ActionKind
	TaskID string
}

// ParseCallbackData decodes "<action>_<taskId>" into a CallbackAction.
// The task ID is everything after the first underscore; task IDs are UUIDs
// (hyphens only), so the split is unambiguous. Unrecognized actions decode
// to ActionUnknown rather than failing.
func ParseCallbackData(data string) CallbackAction {
	action, taskID, found := strings.Cut(data, "_")
	if !found || taskID == "" {
		return CallbackAction{Kind: ActionUnknown}
	}
	switch ActionKind(action) {
	case ActionDone, ActionDelay, ActionComment:
		return CallbackAction{Kind: ActionKind(action), TaskID: taskID}
	default:
		return CallbackAction{Kind: ActionUnknown}
	}
}

// Actions drives task-state transitions from inline button callbacks and
// pending-comment free-text replies.
type Actions struct {
	db        *gorm.DB
	messenger Messenger
}

// ActionsOpts holds parameters for creating Actions.
type ActionsOpts struct {
	DB        *gorm.DB
	Messenger Messenger
}

// NewActions creates Actions.
func NewActions(opts ActionsOpts) (*Actions, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("gateway: actions: db is required")
	}
	if opts.Messenger == nil {
		return nil, fmt.Errorf("gateway: actions: messenger is required")
	}
	return &Actions{db: opts.DB, messenger: opts.Messenger}, nil
}

// HandleCallback processes one button press. The callback is always
// answered — first, before the state mutation — so the client UI never
// shows a stuck spinner, even when the mutation or message edit fails.
func (a *Actions) HandleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	action := ParseCallbackData(cb.Data)

	switch action.Kind {
	case ActionDone:
		a.answer(ctx, cb.ID, "Marked as done ✅")
		a.completeTask(ctx, action.TaskID, cb)
	case ActionDelay:
		a.answer(ctx, cb.ID, "Due date pushed by one day ⏰")
		a.delayTask(ctx, action.TaskID, cb)
	case ActionComment:
		a.answer(ctx, cb.ID, "Reply with your comment and I'll attach it to the task 💬")
		a.stagePendingComment(action.TaskID, cb)
	default:
		a.answer(ctx, cb.ID, "")
		log.Printf("gateway: actions: unknown callback data %q", cb.Data)
	}
}

// completeTask sets status=completed and edits the original message to its
// struck-through terminal state with no buttons. Re-entrant: a done press on
// an already-completed task re-edits to the same state without error.
func (a *Actions) completeTask(ctx context.Context, taskID string, cb *telegram.CallbackQuery) {
	var task models.Task
	if err := a.db.First(&task, "id = ?", taskID).Error; err != nil {
		log.Printf("gateway: actions: done %s: load task: %v", taskID, err)
		return
	}

	if task.Status != models.TaskStatusCompleted {
		now := time.Now()
		if err := a.db.Model(&task).Updates(map[string]interface{}{
			"status":       models.TaskStatusCompleted,
			"completed_at": now,
		}).Error; err != nil {
			log.Printf("gateway: actions: done %s: update: %v", taskID, err)
			return
		}
		task.Status = models.TaskStatusCompleted
	}

	if cb.Message != nil {
		if err := a.messenger.EditMessageText(ctx, telegram.EditMessageParams{
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			Text:      formatCompleted(&task),
			ParseMode: parseModeHTML,
		}); err != nil {
			log.Printf("gateway: actions: done %s: edit message: %v", taskID, err)
		}
	}
}

// delayTask extends the due date by exactly one day from its current value
// (not from now) and re-renders the message with the same action buttons.
func (a *Actions) delayTask(ctx context.Context, taskID string, cb *telegram.CallbackQuery) {
	var task models.Task
	if err := a.db.First(&task, "id = ?", taskID).Error; err != nil {
		log.Printf("gateway: actions: delay %s: load task: %v", taskID, err)
		return
	}

	base := time.Now()
	if task.DueAt != nil {
		base = *task.DueAt
	}
	newDue := base.AddDate(0, 0, 1)
	if err := a.db.Model(&task).Update("due_at", newDue).Error; err != nil {
		log.Printf("gateway: actions: delay %s: update: %v", taskID, err)
		return
	}
	task.DueAt = &newDue

	if cb.Message != nil {
		if err := a.messenger.EditMessageText(ctx, telegram.EditMessageParams{
			ChatID:      cb.Message.Chat.ID,
			MessageID:   cb.Message.MessageID,
			Text:        formatDelayed(&task),
			ParseMode:   parseModeHTML,
			ReplyMarkup: taskButtons(task.ID),
		}); err != nil {
			log.Printf("gateway: actions: delay %s: edit message: %v", taskID, err)
		}
	}
}

// stagePendingComment records that the user's next free-text message should
// be appended to this task's notes. Task status is not altered.
func (a *Actions) stagePendingComment(taskID string, cb *telegram.CallbackQuery) {
	pending := models.PendingCommand{
		UserID: cb.From.ID,
		Kind:   models.PendingKindComment,
		TaskID: taskID,
	}
	if cb.Message != nil {
		pending.ChatID = cb.Message.Chat.ID
		pending.OriginMessageID = cb.Message.MessageID
	}
	if err := a.db.Create(&pending).Error; err != nil {
		log.Printf("gateway: actions: comment %s: persist pending: %v", taskID, err)
	}
}

// HandlePendingComment consumes an outstanding pending-comment marker for
// the sender, appending the text to the task's notes as a timestamped,
// source-tagged entry. Returns false when the sender has no pending comment,
// in which case the caller falls through to generic free-text handling.
func (a *Actions) HandlePendingComment(ctx context.Context, msg *telegram.Message) bool {
	if msg.From == nil {
		return false
	}

	var pending models.PendingCommand
	result := a.db.Where("user_id = ? AND kind = ? AND processed = ?",
		msg.From.ID, models.PendingKindComment, false).
		Order("created_at DESC").First(&pending)
	if result.Error == gorm.ErrRecordNotFound {
		return false
	}
	if result.Error != nil {
		log.Printf("gateway: actions: pending comment lookup: %v", result.Error)
		return false
	}

	// Consume exactly once; a redelivered message loses the race here and
	// falls through to the help reply instead of double-appending.
	consume := a.db.Model(&models.PendingCommand{}).
		Where("id = ? AND processed = ?", pending.ID, false).
		Update("processed", true)
	if consume.Error != nil {
		log.Printf("gateway: actions: consume pending comment: %v", consume.Error)
		return false
	}
	if consume.RowsAffected == 0 {
		return false
	}

	entry := fmt.Sprintf("[telegram %s] %s", time.Now().Format("2006-01-02 15:04"), strings.TrimSpace(msg.Text))
	var task models.Task
	if err := a.db.First(&task, "id = ?", pending.TaskID).Error; err != nil {
		log.Printf("gateway: actions: comment: load task %s: %v", pending.TaskID, err)
		a.reply(ctx, msg.Chat.ID, "Couldn't attach the comment — the task no longer exists.")
		return true
	}

	notes := task.Notes
	if notes != "" {
		notes += "\n"
	}
	notes += entry
	if err := a.db.Model(&task).Update("notes", notes).Error; err != nil {
		log.Printf("gateway: actions: comment: append note to %s: %v", pending.TaskID, err)
		a.reply(ctx, msg.Chat.ID, "Saving the comment failed, please try again.")
		return true
	}

	a.reply(ctx, msg.Chat.ID, fmt.Sprintf("Comment added to “%s” 📝", task.Title))
	return true
}

// answer acknowledges a callback, logging on failure. Never skipped.
func (a *Actions) answer(ctx context.Context, callbackID, text string) {
	if err := a.messenger.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		log.Printf("gateway: actions: answer callback %s: %v", callbackID, err)
	}
}

// reply sends a plain chat reply, logging on failure.
func (a *Actions) reply(ctx context.Context, chatID int64, text string) {
	if _, err := a.messenger.SendMessage(ctx, telegram.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		log.Printf("gateway: actions: reply: %v", err)
	}
}
