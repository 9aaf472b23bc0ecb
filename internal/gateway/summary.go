package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/taskrelay/internal/models"
	"github.com/zulandar/taskrelay/internal/telegram"
)

// SummaryReport holds same-day aggregate counts for the admin summary.
type SummaryReport struct {
	CreatedToday   int
	CompletedToday int
	Overdue        int
	Active         int
}

// RunDailySummary sends one aggregate summary to every administrator with a
// linked, active chat. The send itself is not deduplicated — the scheduler
// is assumed to fire at most once per day, and a second invocation sends a
// second summary. Per-admin failures are isolated.
func (d *Dispatcher) RunDailySummary(ctx context.Context) error {
	now := time.Now()
	report, err := d.buildSummaryReport(now)
	if err != nil {
		return fmt.Errorf("gateway: summary: %w", err)
	}

	var admins []models.Account
	if err := d.db.Where("role = ? AND active = ? AND telegram_linked = ?",
		"admin", true, true).Find(&admins).Error; err != nil {
		return fmt.Errorf("gateway: summary: list admins: %w", err)
	}

	body := formatSummary(report)
	sent := 0
	for i := range admins {
		admin := &admins[i]
		if admin.TelegramChatID == nil {
			continue
		}
		if _, err := d.messenger.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:    *admin.TelegramChatID,
			Text:      body,
			ParseMode: parseModeHTML,
		}); err != nil {
			log.Printf("gateway: summary: send to %s: %v", admin.ID, err)
			continue
		}
		sent++
		d.writeNotification(admin.ID, models.NotificationTypeSummary, "Daily Summary", body, now)
	}

	fmt.Fprintf(d.out, "summary: sent to %d of %d admins\n", sent, len(admins))
	return nil
}

// buildSummaryReport computes the same-day aggregates from the store.
func (d *Dispatcher) buildSummaryReport(now time.Time) (SummaryReport, error) {
	var report SummaryReport
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var created int64
	if err := d.db.Model(&models.Task{}).
		Where("created_at >= ?", dayStart).
		Count(&created).Error; err != nil {
		return report, fmt.Errorf("count created: %w", err)
	}
	report.CreatedToday = int(created)

	var completed int64
	if err := d.db.Model(&models.Task{}).
		Where("status = ? AND completed_at >= ?", models.TaskStatusCompleted, dayStart).
		Count(&completed).Error; err != nil {
		return report, fmt.Errorf("count completed: %w", err)
	}
	report.CompletedToday = int(completed)

	var overdue int64
	if err := d.db.Model(&models.Task{}).
		Where("status = ?", models.TaskStatusOverdue).
		Count(&overdue).Error; err != nil {
		return report, fmt.Errorf("count overdue: %w", err)
	}
	report.Overdue = int(overdue)

	var active int64
	if err := d.db.Model(&models.Task{}).
		Where("status IN ?", []string{models.TaskStatusPending, models.TaskStatusInProgress}).
		Count(&active).Error; err != nil {
		return report, fmt.Errorf("count active: %w", err)
	}
	report.Active = int(active)

	return report, nil
}
