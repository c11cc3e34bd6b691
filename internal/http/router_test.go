package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/forum-relay-bot/internal/admin"
	"github.com/tbourn/forum-relay-bot/internal/admission"
	"github.com/tbourn/forum-relay-bot/internal/boards"
	"github.com/tbourn/forum-relay-bot/internal/captcha"
	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/http/handlers"
	"github.com/tbourn/forum-relay-bot/internal/locks"
	"github.com/tbourn/forum-relay-bot/internal/policy"
	"github.com/tbourn/forum-relay-bot/internal/relay"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/session"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newTestEngine wires a full Handlers bundle against an in-memory db and a
// no-op upstream Telegram API, mirroring what cmd/server does at startup.
func newTestEngine(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	db := newTestDB(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": true})
	}))
	t.Cleanup(upstream.Close)
	restore := telegram.SetAPIBase(upstream.URL + "/bot")
	t.Cleanup(restore)

	client := telegram.New("test-token")
	st := store.New(db, time.Minute)
	lm := locks.New()
	cap := captcha.New()
	sess := session.New(cfg.BotToken)
	adm := admission.New(db, st, cfg)
	pol := policy.New(db, st, adm)
	brd := boards.New(client, db, st, lm, cfg)
	rel := relay.New(client, db, st, lm, brd, cfg)
	console := admin.New(client, db, st, brd, adm, cfg)
	dedup := locks.NewUpdateDedup(time.Minute)

	h := handlers.New(cfg, db, client, st, cap, sess, adm, pol, rel, brd, console, dedup)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, cfg, h)
	return r
}

func baseTestConfig() config.Config {
	return config.Config{
		AdminGroup:         -1001111111111,
		BotToken:           "test-token",
		RateRPS:            1000,
		RateBurst:          1000,
		TopicCreateLockTTL: 5 * time.Second,
		InboxLockTTL:       3 * time.Second,
		UpdateDedupTTL:     time.Minute,
	}
}

func TestRegisterRoutes_Index(t *testing.T) {
	r := newTestEngine(t, baseTestConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Verify_MissingUserID(t *testing.T) {
	r := newTestEngine(t, baseTestConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Verify_NoCaptchaKeyConfigured(t *testing.T) {
	r := newTestEngine(t, baseTestConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify?user_id=42", nil))
	// captcha_mode defaults to "turnstile" and no Turnstile site key is set.
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Verify_RendersTurnstileWidget(t *testing.T) {
	cfg := baseTestConfig()
	cfg.TurnstileSiteKey = "site-key"
	r := newTestEngine(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/verify?user_id=42", nil))
	// captcha_mode defaults to "turnstile" and a Turnstile site key is set,
	// so the page renders with the Turnstile widget.
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `class="cf-turnstile"`) {
		t.Fatalf("expected Turnstile widget markup, body=%s", w.Body.String())
	}
}

func TestRegisterRoutes_SubmitToken_MalformedBody(t *testing.T) {
	r := newTestEngine(t, baseTestConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit_token", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("expected success=false, got %+v", body)
	}
}

func TestRegisterRoutes_Webhook_MalformedJSON(t *testing.T) {
	r := newTestEngine(t, baseTestConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_Webhook_AcceptsValidUpdate(t *testing.T) {
	r := newTestEngine(t, baseTestConfig())

	update := telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 1,
			From:      &telegram.User{ID: 555, FirstName: "Ada"},
			Chat:      telegram.Chat{ID: 555, Type: "private"},
			Text:      "/start",
		},
	}
	body, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != "OK" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	// Give the detached goroutine a moment to run before the test process
	// (and its in-memory sqlite connection) tears down.
	time.Sleep(50 * time.Millisecond)
}

func TestRegisterRoutes_NotFoundAndMethodNotAllowed(t *testing.T) {
	r := newTestEngine(t, baseTestConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", w.Code)
	}
}
