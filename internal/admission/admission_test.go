package admission

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/store"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:admission_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, cfg config.Config) *Service {
	db := newTestDB(t)
	st := store.New(db, time.Minute)
	return New(db, st, cfg)
}

func TestStart_BothGatesOff_GoesStraightToVerified(t *testing.T) {
	svc := newTestService(t, config.Config{})
	ctx := context.Background()

	svc.store.Set(ctx, "enable_verify", "false")
	svc.store.Set(ctx, "enable_qa_verify", "false")

	res, err := svc.Start(ctx, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Transitioned || res.NewState != domain.StateVerified {
		t.Fatalf("expected transition to verified, got %+v", res)
	}
}

func TestStart_CaptchaOn_GoesToPendingTurnstile(t *testing.T) {
	svc := newTestService(t, config.Config{})
	ctx := context.Background()
	svc.store.Set(ctx, "enable_verify", "true")

	res, err := svc.Start(ctx, 2)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.NewState != domain.StatePendingTurnstile {
		t.Fatalf("expected pending_turnstile, got %v", res.NewState)
	}
}

func TestStart_TwiceBeforeCaptchaSolved_IsIdempotent(t *testing.T) {
	svc := newTestService(t, config.Config{})
	ctx := context.Background()
	svc.store.Set(ctx, "enable_verify", "true")

	first, err := svc.Start(ctx, 3)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !first.Transitioned {
		t.Fatalf("expected first /start to transition")
	}

	second, err := svc.Start(ctx, 3)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if second.Transitioned {
		t.Fatalf("expected second /start before captcha solved to be a no-op")
	}
	if second.NewState != domain.StatePendingTurnstile {
		t.Fatalf("expected state to remain pending_turnstile, got %v", second.NewState)
	}
}

func TestStart_FromBlocked_ClearsAndReentersPipeline(t *testing.T) {
	svc := newTestService(t, config.Config{})
	ctx := context.Background()
	svc.store.Set(ctx, "enable_verify", "false")
	svc.store.Set(ctx, "enable_qa_verify", "false")

	if _, err := repo.GetOrCreateUser(ctx, svc.db, 4); err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if _, _, err := repo.AccrueViolation(ctx, svc.db, 4, 1); err != nil {
		t.Fatalf("AccrueViolation: %v", err)
	}

	u, err := repo.GetUser(ctx, svc.db, 4)
	if err != nil || !u.IsBlocked {
		t.Fatalf("expected user to be blocked before /start, err=%v u=%+v", err, u)
	}

	res, err := svc.Start(ctx, 4)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Unblocked {
		t.Fatalf("expected Unblocked=true")
	}
	if res.NewState != domain.StateVerified {
		t.Fatalf("expected re-entry to verified with both gates off, got %v", res.NewState)
	}

	u, err = repo.GetUser(ctx, svc.db, 4)
	if err != nil || u.IsBlocked || u.BlockCount != 0 {
		t.Fatalf("expected cleared block state, err=%v u=%+v", err, u)
	}
}

func TestAdvanceAfterCaptcha_QAEnabled(t *testing.T) {
	svc := newTestService(t, config.Config{})
	ctx := context.Background()
	svc.store.Set(ctx, "enable_qa_verify", "true")

	if _, err := repo.GetOrCreateUser(ctx, svc.db, 5); err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	next, err := svc.AdvanceAfterCaptcha(ctx, 5)
	if err != nil {
		t.Fatalf("AdvanceAfterCaptcha: %v", err)
	}
	if next != domain.StatePendingVerification {
		t.Fatalf("expected pending_verification, got %v", next)
	}
}

func TestAdvanceAfterQA_CorrectAnswer(t *testing.T) {
	svc := newTestService(t, config.Config{})
	ctx := context.Background()
	svc.store.Set(ctx, "qa_answer", "2")

	if _, err := repo.GetOrCreateUser(ctx, svc.db, 6); err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}

	ok, err := svc.AdvanceAfterQA(ctx, 6, " 2 ")
	if err != nil {
		t.Fatalf("AdvanceAfterQA: %v", err)
	}
	if !ok {
		t.Fatalf("expected correct answer to be accepted")
	}
	u, err := repo.GetUser(ctx, svc.db, 6)
	if err != nil || u.State != domain.StateVerified {
		t.Fatalf("expected verified state, err=%v u=%+v", err, u)
	}
}

func TestIsAuthorizedAdmin_EnvAndStore(t *testing.T) {
	svc := newTestService(t, config.Config{AdminIDs: []int64{100}})
	ctx := context.Background()
	svc.store.SetJSON(ctx, "authorized_admins", []int64{200})

	if !svc.IsAuthorizedAdmin(ctx, 100) {
		t.Fatalf("expected env admin to be authorized")
	}
	if !svc.IsAuthorizedAdmin(ctx, 200) {
		t.Fatalf("expected store-listed admin to be authorized")
	}
	if svc.IsAuthorizedAdmin(ctx, 300) {
		t.Fatalf("expected unlisted user to not be authorized")
	}
}
