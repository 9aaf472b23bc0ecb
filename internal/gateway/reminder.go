package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zulandar/taskrelay/internal/models"
	"github.com/zulandar/taskrelay/internal/telegram"
	"gorm.io/gorm"
)

// Default sweep tuning. Two lookahead windows, each with a ±30 minute band
// around "now + window".
var DefaultWindowHours = []int{24, 6}

const DefaultBandMinutes = 30

// nonTerminalStatuses are the task statuses the sweep considers live.
var nonTerminalStatuses = []string{
	models.TaskStatusPending,
	models.TaskStatusInProgress,
	models.TaskStatusOverdue,
}

// Dispatcher runs the two scheduled notification flows: the reminder sweep
// and the daily admin summary. Both are safe to invoke repeatedly; all
// dedup state lives in the store.
type Dispatcher struct {
	db          *gorm.DB
	messenger   Messenger
	windowHours []int
	band        time.Duration
	out         io.Writer
}

// DispatcherOpts holds parameters for creating a Dispatcher.
type DispatcherOpts struct {
	DB          *gorm.DB
	Messenger   Messenger
	WindowHours []int         // defaults to DefaultWindowHours
	Band        time.Duration // defaults to DefaultBandMinutes
	Out         io.Writer     // defaults to os.Stdout
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOpts) (*Dispatcher, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("gateway: dispatcher: db is required")
	}
	if opts.Messenger == nil {
		return nil, fmt.Errorf("gateway: dispatcher: messenger is required")
	}
	windows := opts.WindowHours
	if len(windows) == 0 {
		windows = DefaultWindowHours
	}
	band := opts.Band
	if band <= 0 {
		band = DefaultBandMinutes * time.Minute
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Dispatcher{
		db:          opts.DB,
		messenger:   opts.Messenger,
		windowHours: windows,
		band:        band,
		out:         out,
	}, nil
}

// SweepReport summarizes one reminder sweep invocation.
type SweepReport struct {
	Candidates int // tasks that fell inside a window band
	Sent       int // reminders actually delivered
	Skipped    int // suppressed by an existing sent ReminderRecord
	Failed     int // send or persistence failures (logged, not fatal)
}

// RunReminderSweep scans each lookahead window for tasks whose due time
// falls inside the ±band around "now + window" and whose assignee has a
// linked, active chat. A (task, window) pair fires at most once ever; the
// two windows fire independently for the same task. A failure on one
// candidate never aborts the rest of the sweep.
func (d *Dispatcher) RunReminderSweep(ctx context.Context) (SweepReport, error) {
	now := time.Now()
	var report SweepReport

	if err := d.markOverdue(now); err != nil {
		log.Printf("gateway: sweep: mark overdue: %v", err)
	}

	for _, hours := range d.windowHours {
		window := fmt.Sprintf("%dh", hours)
		target := now.Add(time.Duration(hours) * time.Hour)
		from, until := target.Add(-d.band), target.Add(d.band)

		var tasks []models.Task
		if err := d.db.Preload("Assignee").
			Where("status IN ? AND due_at >= ? AND due_at <= ? AND assignee_id IS NOT NULL",
				nonTerminalStatuses, from, until).
			Find(&tasks).Error; err != nil {
			return report, fmt.Errorf("gateway: sweep: query window %s: %w", window, err)
		}

		for i := range tasks {
			task := &tasks[i]
			acct := task.Assignee
			if acct == nil || !acct.Active || !acct.TelegramLinked || acct.TelegramChatID == nil {
				continue
			}
			report.Candidates++

			switch sent, err := d.sendReminder(ctx, task, acct, window, now); {
			case err != nil:
				report.Failed++
				log.Printf("gateway: sweep: task %s window %s: %v", task.ID, window, err)
			case sent:
				report.Sent++
			default:
				report.Skipped++
			}
		}
	}

	fmt.Fprintf(d.out, "sweep: %d candidates, %d sent, %d skipped, %d failed\n",
		report.Candidates, report.Sent, report.Skipped, report.Failed)
	return report, nil
}

// sendReminder delivers one reminder, guarded by the (task, window)
// ReminderRecord. The record is claimed before the send — the unique index
// makes the claim the synchronization point for concurrent sweeps — and
// flipped to sent only after delivery, so a failed send is retried by the
// next sweep.
func (d *Dispatcher) sendReminder(ctx context.Context, task *models.Task, acct *models.Account, window string, now time.Time) (bool, error) {
	var existing models.ReminderRecord
	result := d.db.Where("task_id = ? AND window = ?", task.ID, window).First(&existing)
	switch {
	case result.Error == nil:
		if existing.Sent {
			return false, nil
		}
		// Unsent claim from a failed earlier attempt — retry below.
	case result.Error == gorm.ErrRecordNotFound:
		existing = models.ReminderRecord{
			TaskID:    task.ID,
			Window:    window,
			AccountID: acct.ID,
			Message:   window + ":" + task.ID,
		}
		if err := d.db.Create(&existing).Error; err != nil {
			// Distinguish a lost claim race from a real persistence
			// failure: only when a concurrent sweep inserted the pair
			// between the read and this insert is the skip silent.
			var claimed models.ReminderRecord
			if d.db.Where("task_id = ? AND window = ?", task.ID, window).
				First(&claimed).Error == nil {
				return false, nil
			}
			return false, fmt.Errorf("claim reminder record: %w", err)
		}
	default:
		return false, fmt.Errorf("check reminder record: %w", result.Error)
	}

	text := formatReminder(task, now)
	msgID, err := d.messenger.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:      *acct.TelegramChatID,
		Text:        text,
		ParseMode:   parseModeHTML,
		ReplyMarkup: taskButtons(task.ID),
	})
	if err != nil {
		return false, fmt.Errorf("send: %w", err)
	}

	sentAt := time.Now()
	if err := d.db.Model(&models.ReminderRecord{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"sent":    true,
			"sent_at": sentAt,
			"message": text,
		}).Error; err != nil {
		return true, fmt.Errorf("record sent reminder: %w", err)
	}

	// Message-id bookkeeping so callbacks can edit this reminder later.
	if err := d.db.Model(task).Updates(map[string]interface{}{
		"telegram_chat_id":    *acct.TelegramChatID,
		"telegram_message_id": msgID,
	}).Error; err != nil {
		log.Printf("gateway: sweep: task %s: record message id: %v", task.ID, err)
	}

	d.writeNotification(acct.ID, models.NotificationTypeReminder,
		fmt.Sprintf("Reminder (%s): %s", window, task.Title), text, now)
	return true, nil
}

// markOverdue flips past-due live tasks to overdue.
func (d *Dispatcher) markOverdue(now time.Time) error {
	return d.db.Model(&models.Task{}).
		Where("status IN ? AND due_at IS NOT NULL AND due_at < ?",
			[]string{models.TaskStatusPending, models.TaskStatusInProgress}, now).
		Update("status", models.TaskStatusOverdue).Error
}

// writeNotification appends an audit Notification row, suppressing a second
// same-day row with identical (account, type, title). The day boundary is
// local midnight, matching the summary aggregates. Best-effort: failures are
// logged, never propagated.
func (d *Dispatcher) writeNotification(accountID, notifType, title, body string, now time.Time) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	if err := d.db.Model(&models.Notification{}).
		Where("account_id = ? AND type = ? AND title = ? AND created_at >= ?",
			accountID, notifType, title, dayStart).
		Count(&count).Error; err != nil {
		log.Printf("gateway: notification dedup check: %v", err)
		return
	}
	if count > 0 {
		return
	}

	n := models.Notification{
		AccountID: accountID,
		Type:      notifType,
		Title:     title,
		Body:      body,
		Channel:   models.NotificationChannelTelegram,
		Status:    "sent",
	}
	if err := d.db.Create(&n).Error; err != nil {
		log.Printf("gateway: write notification: %v", err)
	}
}
