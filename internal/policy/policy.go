// Package policy implements the content-policy pipeline of §4.6: a fixed
// evaluation order over an inbound user message that decides whether it is
// relayed to the operator forum, and what (if anything) is sent back to
// the user along the way.
//
// Stages 1 through 3 short-circuit: the first one that matches stops the
// pipeline and the message is never relayed. Stage 4, quiet hours, is the
// documented exception — it may fire a notice but never blocks relaying.
package policy

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/admission"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// maxMatchLen caps how much of a message's text is tested against
// block-keyword and auto-reply patterns (§4.6.1: "truncated to 2,000
// characters").
const maxMatchLen = 2000

// Reason identifies which pipeline stage produced a stop decision, for
// logging and metrics.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonBlockKeyword    Reason = "block_keyword"
	ReasonTypedContentOff Reason = "typed_content_disabled"
	ReasonAutoReply       Reason = "auto_reply"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	// ShouldRelay is false exactly when one of stages 1-3 matched.
	ShouldRelay bool
	Reason      Reason

	// UserReply is non-empty when the user should receive a text reply as
	// part of the stop decision (the auto-reply rule's response text).
	UserReply string

	// JustBlocked is true when this evaluation's block-keyword violation
	// crossed the configured threshold and newly blocked the user; the
	// caller must push a blacklist card (§4.7) when this is set.
	JustBlocked bool

	// QuietHoursNotice is non-empty when stage 4 fired and the user should
	// be sent the configured busy message, independent of ShouldRelay.
	QuietHoursNotice string
}

// Service evaluates the content-policy pipeline. It holds no transport
// concerns; callers are responsible for actually sending UserReply/
// QuietHoursNotice and for performing the relay itself.
type Service struct {
	db        *gorm.DB
	store     *store.Store
	admission *admission.Service
}

// New constructs a policy Service.
func New(db *gorm.DB, st *store.Store, adm *admission.Service) *Service {
	return &Service{db: db, store: st, admission: adm}
}

// Evaluate runs the fixed-order pipeline against an inbound message from
// userID.
func (s *Service) Evaluate(ctx context.Context, userID int64, m *telegram.Message) (Decision, error) {
	text := m.AllText()
	if r := []rune(text); len(r) > maxMatchLen {
		text = string(r[:maxMatchLen])
	}

	if d, stop, err := s.evalBlockKeywords(ctx, userID, text); err != nil {
		return Decision{}, err
	} else if stop {
		return d, nil
	}

	if d, stop := s.evalTypedContent(ctx, userID, m); stop {
		return d, nil
	}

	if d, stop := s.evalAutoReply(ctx, text); stop {
		return d, nil
	}

	notice, err := s.evalQuietHours(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{ShouldRelay: true, QuietHoursNotice: notice}, nil
}

// evalBlockKeywords is stage 1 (§4.6.1): a hit accrues a violation and
// always short-circuits, regardless of whether it crossed the block
// threshold on this call.
func (s *Service) evalBlockKeywords(ctx context.Context, userID int64, text string) (Decision, bool, error) {
	if text == "" {
		return Decision{}, false, nil
	}
	var rules []Rule
	s.store.GetJSON(ctx, "block_keywords", &rules)
	if len(rules) == 0 {
		return Decision{}, false, nil
	}
	if _, hit := matchAny(rules, text); !hit {
		return Decision{}, false, nil
	}

	threshold := s.store.GetInt(ctx, "block_threshold", 5)
	count, blocked, err := repo.AccrueViolation(ctx, s.db, userID, threshold)
	if err != nil {
		return Decision{}, false, err
	}

	reply := fmt.Sprintf("blocked keyword (%d/%d)", count, threshold)
	if blocked {
		reply = "auto-banned"
	}
	return Decision{ShouldRelay: false, Reason: ReasonBlockKeyword, UserReply: reply, JustBlocked: blocked}, true, nil
}

// evalTypedContent is stage 2 (§4.6.2): an authorized admin bypasses every
// switch (§9 Open Question #1); otherwise a disabled switch for the
// message's Kind short-circuits; plain text is gated by
// enable_text_forwarding like every other Kind.
//
// Forwards are a special case: every forward kind needs
// enable_forward_forwarding on, and a channel forward additionally needs
// enable_channel_forwarding on (§4.6.2 is an AND of the two switches, not a
// single channel-only gate).
func (s *Service) evalTypedContent(ctx context.Context, userID int64, m *telegram.Message) (Decision, bool) {
	kind := Classify(m)
	if s.admission.IsAuthorizedAdmin(ctx, userID) {
		return Decision{}, false
	}
	if s.passesTypedContentSwitches(ctx, kind) {
		return Decision{}, false
	}
	return Decision{ShouldRelay: false, Reason: ReasonTypedContentOff, UserReply: "not accepted"}, true
}

// passesTypedContentSwitches evaluates the config-store switch(es) gating
// kind, composing enable_forward_forwarding and enable_channel_forwarding
// with AND for KindForwardChannel.
func (s *Service) passesTypedContentSwitches(ctx context.Context, kind Kind) bool {
	switch kind {
	case KindForwardUser, KindForwardGroup:
		return s.store.GetBool(ctx, "enable_forward_forwarding")
	case KindForwardChannel:
		return s.store.GetBool(ctx, "enable_forward_forwarding") && s.store.GetBool(ctx, "enable_channel_forwarding")
	default:
		return s.store.GetBool(ctx, kind.switchKey())
	}
}

// evalAutoReply is stage 3 (§4.6.3): the first matching keyword_responses
// rule sends its response text and short-circuits.
func (s *Service) evalAutoReply(ctx context.Context, text string) (Decision, bool) {
	if text == "" {
		return Decision{}, false
	}
	var rules []Rule
	s.store.GetJSON(ctx, "keyword_responses", &rules)
	if len(rules) == 0 {
		return Decision{}, false
	}
	rule, hit := matchAny(rules, text)
	if !hit {
		return Decision{}, false
	}
	return Decision{ShouldRelay: false, Reason: ReasonAutoReply, UserReply: rule.Response}, true
}

// quietHoursCooldown bounds how often the busy notice re-fires for the
// same user (§4.6.4: "more than 300 s since this user's last quiet-hours
// notice"), so a burst of messages during quiet hours doesn't spam them
// with one notice per message.
const quietHoursCooldown = 300 * time.Second

// evalQuietHours is stage 4 (§4.6.4). It never returns a stop: the caller
// always relays regardless of whether a notice fired.
func (s *Service) evalQuietHours(ctx context.Context, userID int64) (string, error) {
	if !s.store.GetBool(ctx, "busy_mode") {
		return "", nil
	}
	u, err := repo.GetOrCreateUser(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	last := time.Unix(u.Info().LastBusyReply, 0)
	if u.Info().LastBusyReply != 0 && time.Since(last) < quietHoursCooldown {
		return "", nil
	}
	if err := repo.MergeUserInfo(ctx, s.db, userID, domain.UserInfo{LastBusyReply: time.Now().Unix()}); err != nil {
		return "", err
	}
	return s.store.Get(ctx, "busy_msg"), nil
}
