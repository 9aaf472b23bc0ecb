package gateway

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/taskrelay/internal/models"
)

func TestBuildSummaryReport(t *testing.T) {
	db := openTestDB(t)
	d, _ := NewDispatcher(DispatcherOpts{DB: db, Messenger: NewMockMessenger(), Out: &bytes.Buffer{}})

	now := time.Now()
	seedTask(t, db, nil, models.TaskStatusPending, nil)
	seedTask(t, db, nil, models.TaskStatusInProgress, nil)
	seedTask(t, db, nil, models.TaskStatusOverdue, nil)

	done := seedTask(t, db, nil, models.TaskStatusCompleted, nil)
	db.Model(done).Update("completed_at", now)

	// Completed yesterday: counted as created today (sqlite backfills
	// created_at at insert) but not as completed today.
	old := seedTask(t, db, nil, models.TaskStatusCompleted, nil)
	db.Model(old).Update("completed_at", now.AddDate(0, 0, -1))

	report, err := d.buildSummaryReport(now)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.CreatedToday != 5 {
		t.Errorf("created = %d, want 5", report.CreatedToday)
	}
	if report.CompletedToday != 1 {
		t.Errorf("completed = %d, want 1", report.CompletedToday)
	}
	if report.Overdue != 1 {
		t.Errorf("overdue = %d, want 1", report.Overdue)
	}
	if report.Active != 2 {
		t.Errorf("active = %d, want 2", report.Active)
	}
}

func TestRunDailySummary_SendsToLinkedAdminsOnly(t *testing.T) {
	db := openTestDB(t)
	mm := NewMockMessenger()
	var out bytes.Buffer
	d, _ := NewDispatcher(DispatcherOpts{DB: db, Messenger: mm, Out: &out})

	admin1 := seedAccount(t, db, "admin", 301, 401)
	admin2 := seedAccount(t, db, "admin", 302, 402)
	seedAccount(t, db, "member", 303, 403)

	unlinked := seedAccount(t, db, "admin", 304, 404)
	db.Model(unlinked).Update("telegram_linked", false)

	if err := d.RunDailySummary(context.Background()); err != nil {
		t.Fatalf("summary: %v", err)
	}

	sent := mm.AllSent()
	if len(sent) != 2 {
		t.Fatalf("sent = %d messages, want 2 (linked admins only)", len(sent))
	}
	chats := map[int64]bool{sent[0].ChatID: true, sent[1].ChatID: true}
	if !chats[401] || !chats[402] {
		t.Errorf("sent to chats %v, want 401 and 402", chats)
	}

	// One audit row per admin.
	for _, id := range []string{admin1.ID, admin2.ID} {
		var count int64
		db.Model(&models.Notification{}).
			Where("account_id = ? AND type = ?", id, models.NotificationTypeSummary).
			Count(&count)
		if count != 1 {
			t.Errorf("admin %s notifications = %d, want 1", id, count)
		}
	}

	if !strings.Contains(out.String(), "sent to 2 of 2 admins") {
		t.Errorf("operator output = %q", out.String())
	}
}

func TestRunDailySummary_PerAdminFailureIsolated(t *testing.T) {
	db := openTestDB(t)
	mm := NewMockMessenger()
	d, _ := NewDispatcher(DispatcherOpts{DB: db, Messenger: mm, Out: &bytes.Buffer{}})

	seedAccount(t, db, "admin", 301, 401)
	mm.SendErr = errors.New("telegram down")

	if err := d.RunDailySummary(context.Background()); err != nil {
		t.Fatalf("summary must not fail on send errors: %v", err)
	}
	if mm.SentCount() != 0 {
		t.Errorf("sent = %d", mm.SentCount())
	}

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Errorf("notifications = %d, failed send must not leave an audit row", count)
	}
}

func TestRunDailySummary_SecondRunDedupsAuditOnly(t *testing.T) {
	db := openTestDB(t)
	mm := NewMockMessenger()
	d, _ := NewDispatcher(DispatcherOpts{DB: db, Messenger: mm, Out: &bytes.Buffer{}})

	admin := seedAccount(t, db, "admin", 301, 401)

	if err := d.RunDailySummary(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := d.RunDailySummary(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	// The message goes out again, the same-day audit row does not repeat.
	if mm.SentCount() != 2 {
		t.Errorf("sent = %d, want 2", mm.SentCount())
	}
	var count int64
	db.Model(&models.Notification{}).
		Where("account_id = ? AND type = ?", admin.ID, models.NotificationTypeSummary).
		Count(&count)
	if count != 1 {
		t.Errorf("notifications = %d, want 1 same-day audit row", count)
	}
}
