package boards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/locks"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:boards_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func withMockAPI(t *testing.T, handler http.HandlerFunc) *telegram.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	restore := telegram.SetAPIBase(srv.URL + "/bot")
	t.Cleanup(restore)
	return telegram.New("test-token")
}

func ok(w http.ResponseWriter, result interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
}

func TestUpdateInbox_CreatesTopicAndPostsCard(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db, time.Minute)
	lm := locks.New()
	cfg := config.Config{AdminGroup: -1001234567890, InboxLockTTL: 3 * time.Second}

	var createdTopic, sentMessage bool
	client := withMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/createForumTopic":
			createdTopic = true
			ok(w, map[string]interface{}{"message_thread_id": 42})
		case "/bottest-token/sendMessage":
			sentMessage = true
			ok(w, map[string]interface{}{"message_id": 7})
		default:
			t.Fatalf("unexpected call %q", r.URL.Path)
		}
	})
	svc := New(client, db, st, lm, cfg)

	ctx := context.Background()
	u, err := repo.GetOrCreateUser(ctx, db, 1)
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	topicID := int64(99)
	u.TopicID = &topicID

	if err := svc.UpdateInbox(ctx, u, "hello there"); err != nil {
		t.Fatalf("UpdateInbox: %v", err)
	}
	if !createdTopic {
		t.Fatalf("expected inbox topic to be lazily created")
	}
	if !sentMessage {
		t.Fatalf("expected a new inbox card to be posted")
	}

	refreshed, err := repo.GetUser(ctx, db, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if refreshed.Info().InboxMsgID != 7 {
		t.Fatalf("expected InboxMsgID to be recorded, got %d", refreshed.Info().InboxMsgID)
	}
}

func TestUpdateInbox_EditsExistingCard(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db, time.Minute)
	lm := locks.New()
	cfg := config.Config{AdminGroup: -1001234567890, InboxLockTTL: 3 * time.Second}
	ctx := context.Background()
	st.Set(ctx, "unread_topic_id", "42")

	var edited bool
	client := withMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bottest-token/editMessageText" {
			edited = true
			ok(w, map[string]interface{}{})
			return
		}
		t.Fatalf("unexpected call %q", r.URL.Path)
	})
	svc := New(client, db, st, lm, cfg)

	u := mustUserWithInboxCard(t, db, 2, 5)

	if err := svc.UpdateInbox(ctx, u, "second message"); err != nil {
		t.Fatalf("UpdateInbox: %v", err)
	}
	if !edited {
		t.Fatalf("expected existing card to be edited, not replaced")
	}
}

func TestAckInbox_DeletesCardAndClearsID(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db, time.Minute)
	lm := locks.New()
	cfg := config.Config{AdminGroup: -1001234567890}
	ctx := context.Background()

	var deleted bool
	client := withMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bottest-token/deleteMessage" {
			deleted = true
			ok(w, map[string]interface{}{})
			return
		}
		t.Fatalf("unexpected call %q", r.URL.Path)
	})
	svc := New(client, db, st, lm, cfg)

	mustUserWithInboxCard(t, db, 3, 11)

	if err := svc.AckInbox(ctx, 3); err != nil {
		t.Fatalf("AckInbox: %v", err)
	}
	if !deleted {
		t.Fatalf("expected card deletion")
	}

	u, err := repo.GetUser(ctx, db, 3)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Info().InboxMsgID != 0 {
		t.Fatalf("expected InboxMsgID cleared, got %d", u.Info().InboxMsgID)
	}
}

func TestPostAndRemoveBlacklistCard(t *testing.T) {
	db := newTestDB(t)
	st := store.New(db, time.Minute)
	lm := locks.New()
	cfg := config.Config{AdminGroup: -1001234567890}
	ctx := context.Background()

	var posted, deleted bool
	client := withMockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/createForumTopic":
			ok(w, map[string]interface{}{"message_thread_id": 55})
		case "/bottest-token/sendMessage":
			posted = true
			ok(w, map[string]interface{}{"message_id": 13})
		case "/bottest-token/deleteMessage":
			deleted = true
			ok(w, map[string]interface{}{})
		default:
			t.Fatalf("unexpected call %q", r.URL.Path)
		}
	})
	svc := New(client, db, st, lm, cfg)

	u, err := repo.GetOrCreateUser(ctx, db, 4)
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if err := svc.PostBlacklistCard(ctx, u); err != nil {
		t.Fatalf("PostBlacklistCard: %v", err)
	}
	if !posted {
		t.Fatalf("expected blacklist card to be posted")
	}

	if err := svc.RemoveBlacklistCard(ctx, 4); err != nil {
		t.Fatalf("RemoveBlacklistCard: %v", err)
	}
	if !deleted {
		t.Fatalf("expected blacklist card to be deleted")
	}

	refreshed, err := repo.GetUser(ctx, db, 4)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if refreshed.Info().BlacklistMsgID != 0 {
		t.Fatalf("expected BlacklistMsgID cleared, got %d", refreshed.Info().BlacklistMsgID)
	}
}

func TestJumpURL_StripsLeading100(t *testing.T) {
	svc := &Service{cfg: config.Config{AdminGroup: -1001234567890}}
	got := svc.JumpURL(42)
	want := "https://t.me/c/1234567890/42"
	if got != want {
		t.Fatalf("JumpURL() = %q, want %q", got, want)
	}
}

func mustUserWithInboxCard(t *testing.T, db *gorm.DB, userID, inboxMsgID int64) *domain.User {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.GetOrCreateUser(ctx, db, userID); err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if err := repo.MergeUserInfo(ctx, db, userID, domain.UserInfo{InboxMsgID: inboxMsgID}); err != nil {
		t.Fatalf("MergeUserInfo: %v", err)
	}
	u, err := repo.GetUser(ctx, db, userID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	return u
}
