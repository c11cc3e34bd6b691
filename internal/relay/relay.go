// Package relay implements the relay engine of §4.5: it binds a verified
// user to a forum topic in the operator group, attempts delivery,
// recovers from a lost topic, posts the pinned info card, acknowledges
// the user, and fans out to the inbox board and an optional backup
// mirror without letting either block the primary relay's success.
package relay

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/boards"
	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/locks"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// maxTopicNameLen is the chat platform's forum-topic name limit (§4.5.2:
// "truncated to 128 characters").
const maxTopicNameLen = 128

// ackEmoji is the preferred delivery acknowledgement (§4.5.6).
const ackEmoji = "👍"

// ackFallbackText is sent when setting the reaction fails.
const ackFallbackText = "✅ 已送达"

// sessionExpiredText is sent when both delivery attempts hit a
// topic-lost signal (§4.5.4).
const sessionExpiredText = "Session expired, please resend your message."

// Service is the relay engine.
type Service struct {
	client *telegram.Client
	db     *gorm.DB
	store  *store.Store
	locks  *locks.Map
	boards *boards.Service
	cfg    config.Config
}

// New constructs a relay Service.
func New(client *telegram.Client, db *gorm.DB, st *store.Store, lm *locks.Map, brd *boards.Service, cfg config.Config) *Service {
	return &Service{client: client, db: db, store: st, locks: lm, boards: brd, cfg: cfg}
}

// Relay runs the full §4.5 contract for an inbound message from a
// verified, non-blocked user. It returns an error only for failures the
// caller must surface (e.g. a store write failure); transient remote
// failures and intentional drops (lock contention, policy-equivalent
// topic loss) are handled internally and reported via log, per the
// error-handling taxonomy's "transient remote failure" class.
func (s *Service) Relay(ctx context.Context, u *domain.User, m *telegram.Message) error {
	if err := s.refreshIdentity(ctx, u, m); err != nil {
		return err
	}

	topicID, dropped, err := s.bindTopic(ctx, u)
	if err != nil {
		return err
	}
	if dropped {
		return nil
	}
	u.TopicID = &topicID

	delivered, topicLost, err := s.deliver(ctx, u, m, topicID)
	if err != nil {
		return err
	}
	if topicLost {
		return s.recoverLostTopic(ctx, u)
	}
	if delivered == nil {
		// Transient remote failure on both attempts; abort this effect
		// without corrupting state (§7b).
		return nil
	}

	if m.Text != "" {
		if err := repo.RecordMessage(ctx, s.db, u.UserID, m.MessageID, m.Text, m.Date); err != nil {
			return err
		}
	}

	if u.Info().CardMsgID == 0 {
		s.postInfoCard(ctx, u, topicID)
	}

	s.ack(ctx, u, m)

	go s.fanOut(context.WithoutCancel(ctx), u, m)

	return nil
}

// EnsureTopic implements the tail of §4.4 step 4: once a user clears
// verification, a topic and its pinned info card are provisioned
// up-front if none exists yet, so the admin side is ready before the
// user's first message arrives. It is a no-op if the user already has a
// topic.
func (s *Service) EnsureTopic(ctx context.Context, u *domain.User) error {
	topicID, dropped, err := s.bindTopic(ctx, u)
	if err != nil {
		return err
	}
	if dropped {
		return nil
	}
	u.TopicID = &topicID
	if u.Info().CardMsgID == 0 {
		s.postInfoCard(ctx, u, topicID)
	}
	return nil
}

// refreshIdentity persists a changed display name/username and
// best-effort renames the bound topic to match (§4.5.1).
func (s *Service) refreshIdentity(ctx context.Context, u *domain.User, m *telegram.Message) error {
	name := m.From.DisplayName()
	username := ""
	if m.From != nil {
		username = m.From.Username
	}
	info := u.Info()
	if name == info.DisplayName && username == info.Username {
		return nil
	}

	patch := domain.UserInfo{DisplayName: name, Username: username}
	if err := repo.MergeUserInfo(ctx, s.db, u.UserID, patch); err != nil {
		return err
	}
	u.SetInfo(info.Merge(patch))

	if u.TopicID != nil {
		if err := s.client.EditForumTopic(ctx, s.cfg.AdminGroup, *u.TopicID, topicName(name, u.UserID)); err != nil {
			log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: best-effort topic rename failed")
		}
	}
	return nil
}

// bindTopic implements §4.5.2's topic-binding contract: reuse an existing
// topic id, or take the soft lock, re-read to avoid a duplicate create
// under a race, and provision a new topic. dropped is true when the lock
// could not be acquired, meaning a concurrent invocation is already
// handling topic creation for this user.
func (s *Service) bindTopic(ctx context.Context, u *domain.User) (topicID int64, dropped bool, err error) {
	if u.TopicID != nil {
		return *u.TopicID, false, nil
	}

	lockKey := fmt.Sprintf("topic_create:%d", u.UserID)
	if !s.locks.TryAcquire(lockKey, s.cfg.TopicCreateLockTTL) {
		return 0, true, nil
	}
	defer s.locks.Release(lockKey)

	fresh, err := repo.GetUser(ctx, s.db, u.UserID)
	if err != nil {
		return 0, false, err
	}
	if fresh.TopicID != nil {
		return *fresh.TopicID, false, nil
	}

	id, err := s.client.CreateForumTopic(ctx, s.cfg.AdminGroup, topicName(u.Info().DisplayName, u.UserID))
	if err != nil {
		return 0, false, err
	}
	if err := repo.SetUserTopic(ctx, s.db, u.UserID, &id); err != nil {
		return 0, false, err
	}
	return id, false, nil
}

// deliver implements §4.5.3-4: try forwardMessage, fall back to
// copyMessage, classify a double topic-lost failure for the caller to
// recover from.
func (s *Service) deliver(ctx context.Context, u *domain.User, m *telegram.Message, topicID int64) (delivered *telegram.Message, topicLost bool, err error) {
	msg, fwdErr := s.client.ForwardMessage(ctx, s.cfg.AdminGroup, u.UserID, m.MessageID, topicID)
	if fwdErr == nil {
		return msg, false, nil
	}

	msg, cpyErr := s.client.CopyMessage(ctx, s.cfg.AdminGroup, u.UserID, m.MessageID, topicID)
	if cpyErr == nil {
		return msg, false, nil
	}

	if telegram.IsTopicLost(fwdErr) && telegram.IsTopicLost(cpyErr) {
		return nil, true, nil
	}
	log.Warn().Err(cpyErr).Int64("user_id", u.UserID).Msg("relay: delivery failed on both forward and copy")
	return nil, false, nil
}

// recoverLostTopic implements §4.5.4: clear the stale topic binding and
// tell the user their session expired.
func (s *Service) recoverLostTopic(ctx context.Context, u *domain.User) error {
	if err := repo.SetUserTopic(ctx, s.db, u.UserID, nil); err != nil {
		return err
	}
	if err := repo.ClearUserCard(ctx, s.db, u.UserID); err != nil {
		return err
	}
	if _, err := s.client.SendMessage(ctx, u.UserID, sessionExpiredText, telegram.SendMessageOpts{}); err != nil {
		log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: failed to notify user of session expiry")
	}
	return nil
}

// ack implements §4.5.6: preferred reaction, text-reply fallback.
func (s *Service) ack(ctx context.Context, u *domain.User, m *telegram.Message) {
	if err := s.client.SetMessageReaction(ctx, u.UserID, m.MessageID, ackEmoji); err == nil {
		return
	}
	if _, err := s.client.SendMessage(ctx, u.UserID, ackFallbackText, telegram.SendMessageOpts{
		ReplyToMessageID:    m.MessageID,
		DisableNotification: true,
	}); err != nil {
		log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: ack fallback reply failed")
	}
}

// fanOut implements §4.5.7: inbox-board update and optional backup
// mirror run concurrently and never block or fail the primary relay.
func (s *Service) fanOut(ctx context.Context, u *domain.User, m *telegram.Message) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.boards.UpdateInbox(ctx, u, m.AllText()); err != nil {
			log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: inbox board update failed")
		}
	}()

	if raw := s.store.Get(ctx, "backup_group_id"); raw != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			backupID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				log.Warn().Err(err).Str("backup_group_id", raw).Msg("relay: invalid backup_group_id")
				return
			}
			if _, err := s.client.ForwardMessage(ctx, backupID, u.UserID, m.MessageID, 0); err != nil {
				log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: backup mirror failed")
			}
		}()
	}

	wg.Wait()
}

// topicName builds the forum topic title of §4.5.2.
func topicName(displayName string, userID int64) string {
	if displayName == "" {
		displayName = fmt.Sprintf("User %d", userID)
	}
	full := fmt.Sprintf("%s | %d", displayName, userID)
	if r := []rune(full); len(r) > maxTopicNameLen {
		full = string(r[:maxTopicNameLen])
	}
	return full
}
