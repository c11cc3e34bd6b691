// Package admission implements the per-user admission and verification
// state machine of §4.3: new → pending_turnstile → pending_verification →
// verified, with a blocked overlay orthogonal to the verification phase.
package admission

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/store"
)

// Service drives user admission state transitions. It wraps the store and
// the user repository with the business rules §4.3 describes; it holds no
// transport concerns.
type Service struct {
	db    *gorm.DB
	store *store.Store
	cfg   config.Config
}

// New constructs an admission Service.
func New(db *gorm.DB, st *store.Store, cfg config.Config) *Service {
	return &Service{db: db, store: st, cfg: cfg}
}

// StartResult reports the effect of Start, so the caller (the webhook
// handler) knows exactly what user-visible side effects to perform.
type StartResult struct {
	User *domain.User
	// Unblocked is true if this call cleared a prior block (§4.3's
	// self-unblock affordance); the caller must delete the blacklist
	// card.
	Unblocked bool
	// Transitioned is true if this call moved the user out of "new";
	// the caller sends the verification prompt pair only when true, so
	// a repeated /start before the captcha is solved sends it exactly
	// once (§8 round-trip property).
	Transitioned bool
	NewState     domain.UserState
}

// Start handles an inbound "/start" command. A blocked user is cleared and
// re-enters the pipeline from "new"; otherwise a user already past "new"
// is left untouched so a repeated /start is a no-op beyond fetching the
// current state.
func (s *Service) Start(ctx context.Context, userID int64) (StartResult, error) {
	u, err := repo.GetOrCreateUser(ctx, s.db, userID)
	if err != nil {
		return StartResult{}, err
	}

	res := StartResult{User: u, NewState: u.State}

	if u.IsBlocked {
		if err := repo.SetBlocked(ctx, s.db, userID, false, true); err != nil {
			return StartResult{}, err
		}
		res.Unblocked = true
		u.IsBlocked = false
		u.BlockCount = 0
		u.State = domain.StateNew
	}

	if u.State != domain.StateNew {
		res.NewState = u.State
		return res, nil
	}

	next := s.determineInitialState(ctx)
	if err := repo.SetUserState(ctx, s.db, userID, next); err != nil {
		return StartResult{}, err
	}
	res.Transitioned = true
	res.NewState = next
	u.State = next
	return res, nil
}

// determineInitialState picks the first admission phase per the toggled
// gates (§4.3): captcha on always gates first; otherwise QA; otherwise
// straight to verified.
func (s *Service) determineInitialState(ctx context.Context) domain.UserState {
	captchaOn := s.store.GetBool(ctx, "enable_verify")
	qaOn := s.store.GetBool(ctx, "enable_qa_verify")
	switch {
	case captchaOn:
		return domain.StatePendingTurnstile
	case qaOn:
		return domain.StatePendingVerification
	default:
		return domain.StateVerified
	}
}

// AdvanceAfterCaptcha transitions a user out of pending_turnstile once
// /submit_token has verified both the captcha token and the session
// attestation (§4.4 step 4).
func (s *Service) AdvanceAfterCaptcha(ctx context.Context, userID int64) (domain.UserState, error) {
	next := domain.StateVerified
	if s.store.GetBool(ctx, "enable_qa_verify") {
		next = domain.StatePendingVerification
	}
	if err := repo.SetUserState(ctx, s.db, userID, next); err != nil {
		return "", err
	}
	return next, nil
}

// AdvanceAfterQA checks answer against the configured QA answer and, if
// correct, promotes the user to verified.
func (s *Service) AdvanceAfterQA(ctx context.Context, userID int64, answer string) (correct bool, err error) {
	expected := s.store.Get(ctx, "qa_answer")
	if normalizeAnswer(answer) != normalizeAnswer(expected) {
		return false, nil
	}
	if err := repo.SetUserState(ctx, s.db, userID, domain.StateVerified); err != nil {
		return false, err
	}
	return true, nil
}

// IsAuthorizedAdmin reports whether userID is an operator: listed in the
// ADMIN_IDS env var, or in the store's "authorized_admins" JSON list
// (§4.3).
func (s *Service) IsAuthorizedAdmin(ctx context.Context, userID int64) bool {
	if s.cfg.IsAdmin(userID) {
		return true
	}
	var admins []int64
	s.store.GetJSON(ctx, "authorized_admins", &admins)
	for _, id := range admins {
		if id == userID {
			return true
		}
	}
	return false
}

// PromoteAdmin unconditionally promotes an authorized admin to verified on
// any private message, bypassing the pipeline entirely (§4.3). It is a
// no-op if the admin is already verified.
func (s *Service) PromoteAdmin(ctx context.Context, userID int64) error {
	u, err := repo.GetOrCreateUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if u.State == domain.StateVerified {
		return nil
	}
	return repo.SetUserState(ctx, s.db, userID, domain.StateVerified)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
