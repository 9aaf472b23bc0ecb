package gateway

import (
	"regexp"
	"testing"
	"time"

	"github.com/zulandar/taskrelay/internal/models"
)

var sixDigitsRe = regexp.MustCompile(`^\d{6}$`)

func TestNewLinker_NilDB(t *testing.T) {
	_, err := NewLinker(LinkerOpts{})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestIssueConnectionCode_Fresh(t *testing.T) {
	db := openTestDB(t)
	linker, _ := NewLinker(LinkerOpts{DB: db})

	code, already, err := linker.IssueConnectionCode(100, 200, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if already {
		t.Fatal("expected already=false for an unlinked user")
	}
	if !sixDigitsRe.MatchString(code) {
		t.Fatalf("code = %q, want 6 digits", code)
	}

	var pending models.PendingCommand
	if err := db.Where("kind = ? AND user_id = ?", models.PendingKindConnect, 200).
		First(&pending).Error; err != nil {
		t.Fatalf("pending command not persisted: %v", err)
	}
	if pending.Code != code {
		t.Errorf("persisted code = %q, want %q", pending.Code, code)
	}
	if pending.ChatID != 100 {
		t.Errorf("chat id = %d, want 100", pending.ChatID)
	}
	if pending.Username != "alice" {
		t.Errorf("username = %q, want alice", pending.Username)
	}
	if pending.Processed {
		t.Error("fresh pending command must not be processed")
	}
}

func TestIssueConnectionCode_AlreadyConnected(t *testing.T) {
	db := openTestDB(t)
	linker, _ := NewLinker(LinkerOpts{DB: db})
	seedAccount(t, db, "member", 200, 100)

	// Both calls must short-circuit and issue no pending command.
	for i := 0; i < 2; i++ {
		code, already, err := linker.IssueConnectionCode(100, 200, "alice")
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if !already {
			t.Fatalf("call %d: expected already=true", i)
		}
		if code != "" {
			t.Fatalf("call %d: expected no code, got %q", i, code)
		}
	}

	var count int64
	db.Model(&models.PendingCommand{}).Count(&count)
	if count != 0 {
		t.Errorf("pending commands = %d, want 0", count)
	}
}

func TestVerifyConnectionCode_Success(t *testing.T) {
	db := openTestDB(t)
	linker, _ := NewLinker(LinkerOpts{DB: db})

	acct := models.Account{ID: "acct-1", Name: "Alice", Role: "member", Active: true}
	if err := db.Create(&acct).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}

	code, _, err := linker.IssueConnectionCode(100, 200, "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ok, err := linker.VerifyConnectionCode("acct-1", code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected verification to succeed")
	}

	var bound models.Account
	if err := db.First(&bound, "id = ?", "acct-1").Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if !bound.TelegramLinked {
		t.Error("account not marked linked")
	}
	if bound.TelegramUserID == nil || *bound.TelegramUserID != 200 {
		t.Errorf("telegram user id = %v, want 200", bound.TelegramUserID)
	}
	if bound.TelegramChatID == nil || *bound.TelegramChatID != 100 {
		t.Errorf("telegram chat id = %v, want 100", bound.TelegramChatID)
	}
	if bound.TelegramUsername != "alice" {
		t.Errorf("telegram username = %q, want alice", bound.TelegramUsername)
	}
	if bound.TelegramLinkedAt == nil {
		t.Error("linked timestamp not set")
	}
}

func TestVerifyConnectionCode_ConsumedExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	linker, _ := NewLinker(LinkerOpts{DB: db})
	db.Create(&models.Account{ID: "acct-1", Name: "Alice", Active: true})
	db.Create(&models.Account{ID: "acct-2", Name: "Bob", Active: true})

	code, _, err := linker.IssueConnectionCode(100, 200, "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	ok, err := linker.VerifyConnectionCode("acct-1", code)
	if err != nil || !ok {
		t.Fatalf("first verify: ok=%v err=%v", ok, err)
	}

	// Second attempt with the same code must fail, even against another account.
	ok, err = linker.VerifyConnectionCode("acct-2", code)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if ok {
		t.Fatal("expected second verification of a consumed code to fail")
	}
}

func TestVerifyConnectionCode_WrongCode(t *testing.T) {
	db := openTestDB(t)
	linker, _ := NewLinker(LinkerOpts{DB: db})
	db.Create(&models.Account{ID: "acct-1", Name: "Alice", Active: true})

	if _, _, err := linker.IssueConnectionCode(100, 200, "alice"); err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []string{"000000x", "", "   ", "999999a"}
	for _, code := range tests {
		ok, err := linker.VerifyConnectionCode("acct-1", code)
		if err != nil {
			t.Fatalf("verify %q: %v", code, err)
		}
		if ok {
			t.Errorf("verify %q: expected failure", code)
		}
	}
}

func TestVerifyConnectionCode_ExpiredCode(t *testing.T) {
	db := openTestDB(t)
	linker, _ := NewLinker(LinkerOpts{DB: db, CodeTTL: time.Hour})
	db.Create(&models.Account{ID: "acct-1", Name: "Alice", Active: true})

	stale := models.PendingCommand{
		ChatID:    100,
		UserID:    200,
		Kind:      models.PendingKindConnect,
		Code:      "123456",
		Username:  "alice",
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("seed stale code: %v", err)
	}

	ok, err := linker.VerifyConnectionCode("acct-1", "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected expired code to be rejected")
	}

	var pending models.PendingCommand
	db.First(&pending, stale.ID)
	if pending.Processed {
		t.Error("expired code must not be consumed")
	}
}
