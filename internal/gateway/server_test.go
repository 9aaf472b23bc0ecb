package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/taskrelay/internal/models"
	"github.com/zulandar/taskrelay/internal/telegram"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (http.Handler, *MockMessenger, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	mm := NewMockMessenger()
	gw, err := NewGateway(GatewayOpts{DB: db, Messenger: mm, Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	d, err := NewDispatcher(DispatcherOpts{DB: db, Messenger: mm, Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return NewRouter(gw, d, ""), mm, db
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_MalformedBodyStillAcknowledged(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := postJSON(t, router, "/webhook", "{not json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for garbage", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != false {
		t.Errorf("response = %v, want ok=false", resp)
	}
}

func TestWebhook_RoutesMessage(t *testing.T) {
	router, mm, _ := newTestRouter(t)

	body := `{"update_id":7,"message":{"message_id":1,"from":{"id":200,"username":"alice"},"chat":{"id":100},"text":"/start"}}`
	w := postJSON(t, router, "/webhook", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	last, ok := mm.LastSent()
	if !ok {
		t.Fatal("no reply sent for /start")
	}
	if last.ChatID != 100 {
		t.Errorf("replied to chat %d, want 100", last.ChatID)
	}
}

// panicMessenger blows up on every send, standing in for a handler bug.
type panicMessenger struct {
	MockMessenger
}

func (p *panicMessenger) SendMessage(ctx context.Context, params telegram.SendMessageParams) (int, error) {
	panic("messenger exploded")
}

func TestWebhook_PanicStillAcknowledged(t *testing.T) {
	db := openTestDB(t)
	gw, err := NewGateway(GatewayOpts{DB: db, Messenger: &panicMessenger{}, Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	d, _ := NewDispatcher(DispatcherOpts{DB: db, Messenger: &panicMessenger{}, Out: &bytes.Buffer{}})
	router := NewRouter(gw, d, "")

	body := `{"update_id":8,"message":{"message_id":1,"from":{"id":200},"chat":{"id":100},"text":"/start"}}`
	w := postJSON(t, router, "/webhook", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even when handling panics", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":false`) {
		t.Errorf("body = %s, want ok=false with the error note", w.Body.String())
	}
}

func TestWebhook_SecretPath(t *testing.T) {
	db := openTestDB(t)
	mm := NewMockMessenger()
	gw, _ := NewGateway(GatewayOpts{DB: db, Messenger: mm, Out: &bytes.Buffer{}})
	d, _ := NewDispatcher(DispatcherOpts{DB: db, Messenger: mm, Out: &bytes.Buffer{}})
	router := NewRouter(gw, d, "s3cret")

	if w := postJSON(t, router, "/webhook", `{"update_id":1}`); w.Code != http.StatusNotFound {
		t.Errorf("unsecreted path status = %d, want 404", w.Code)
	}
	if w := postJSON(t, router, "/webhook/s3cret", `{"update_id":1}`); w.Code != http.StatusOK {
		t.Errorf("secreted path status = %d, want 200", w.Code)
	}
}

func TestSweepEndpoint(t *testing.T) {
	router, mm, db := newTestRouter(t)

	acct := seedAccount(t, db, "member", 200, 100)
	due := time.Now().Add(6 * time.Hour)
	seedTask(t, db, acct, models.TaskStatusPending, &due)

	w := postJSON(t, router, "/internal/sweep", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK   bool `json:"ok"`
		Sent int  `json:"sent"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Sent != 1 {
		t.Errorf("response = %+v, want ok with 1 sent", resp)
	}
	if mm.SentCount() != 1 {
		t.Errorf("messages sent = %d, want 1", mm.SentCount())
	}
}

func TestSummaryEndpoint(t *testing.T) {
	router, mm, db := newTestRouter(t)
	seedAccount(t, db, "admin", 301, 401)

	w := postJSON(t, router, "/internal/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if mm.SentCount() != 1 {
		t.Errorf("messages sent = %d, want 1", mm.SentCount())
	}
}

func TestVerifyEndpoint(t *testing.T) {
	router, _, db := newTestRouter(t)

	acct := models.Account{ID: "acct-1", Name: "Alice", Role: "member", Active: true}
	if err := db.Create(&acct).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	db.Create(&models.PendingCommand{
		ChatID: 100, UserID: 200,
		Kind:     models.PendingKindConnect,
		Code:     "123456",
		Username: "alice",
	})

	if w := postJSON(t, router, "/internal/verify", `{"account_id":"acct-1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing code status = %d, want 400", w.Code)
	}

	w := postJSON(t, router, "/internal/verify", `{"account_id":"acct-1","code":"999999"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":false`) {
		t.Errorf("wrong code: status = %d, body = %s", w.Code, w.Body.String())
	}

	w = postJSON(t, router, "/internal/verify", `{"account_id":"acct-1","code":"123456"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Errorf("valid code: status = %d, body = %s", w.Code, w.Body.String())
	}

	var reloaded models.Account
	db.First(&reloaded, "id = ?", "acct-1")
	if !reloaded.TelegramLinked {
		t.Error("account not linked after verification")
	}
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
