// Package boards implements the two auxiliary singleton topics of §4.7:
// the inbox board (one card per user: name, latest-message preview and a
// jump link to their topic) and the
// blacklist board (a card per currently-blocked user). Both topics live
// inside the operator forum group and are created lazily on first use,
// with their ids cached in the configuration store under
// "unread_topic_id" and "blocked_topic_id".
package boards

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/locks"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// previewLen is the clipped length of the latest message shown on an
// inbox card (§4.7: "a 20-char preview of the latest message").
const previewLen = 20

// Service manages the inbox and blacklist boards.
type Service struct {
	client *telegram.Client
	db     *gorm.DB
	store  *store.Store
	locks  *locks.Map
	cfg    config.Config
}

// New constructs a boards Service.
func New(client *telegram.Client, db *gorm.DB, st *store.Store, lm *locks.Map, cfg config.Config) *Service {
	return &Service{client: client, db: db, store: st, locks: lm, cfg: cfg}
}

// UpdateInbox posts or edits the requesting user's card on the inbox
// board after a successful relay (§4.7). A per-user short lock damps
// stampedes from rapid consecutive messages; a caller that loses the race
// simply skips this update, since the next message will refresh the card
// anyway.
func (s *Service) UpdateInbox(ctx context.Context, u *domain.User, latestText string) error {
	lockKey := fmt.Sprintf("inbox:%d", u.UserID)
	if !s.locks.TryAcquire(lockKey, s.cfg.InboxLockTTL) {
		return nil
	}
	defer s.locks.Release(lockKey)

	topicID, err := s.ensureTopic(ctx, "unread_topic_id", "Inbox")
	if err != nil {
		return err
	}

	info := u.Info()
	text := s.inboxCardText(u, info, latestText)
	keyboard := &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{{Text: "Acknowledge", Data: fmt.Sprintf("inbox:ack:%d", u.UserID)}},
	}}

	if info.InboxMsgID != 0 {
		if err := s.client.EditMessageText(ctx, s.cfg.AdminGroup, info.InboxMsgID, text, keyboard); err == nil {
			return nil
		}
		// Fall through to post a fresh card if the old one is gone.
	}

	msg, err := s.client.SendMessage(ctx, s.cfg.AdminGroup, text, telegram.SendMessageOpts{
		ThreadID: topicID,
		Keyboard: keyboard,
	})
	if err != nil {
		return err
	}
	return repo.MergeUserInfo(ctx, s.db, u.UserID, domain.UserInfo{InboxMsgID: msg.MessageID})
}

// AckInbox handles the "inbox:ack:<userId>" callback by deleting that
// user's inbox card.
func (s *Service) AckInbox(ctx context.Context, userID int64) error {
	u, err := repo.GetUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	info := u.Info()
	if info.InboxMsgID == 0 {
		return nil
	}
	if err := s.client.DeleteMessage(ctx, s.cfg.AdminGroup, info.InboxMsgID); err != nil && !telegram.IsTopicLost(err) {
		return err
	}
	return repo.ClearUserInboxCard(ctx, s.db, userID)
}

// PostBlacklistCard posts a card for userID on the blacklist board,
// carrying an unblock callback (§4.7). Called whenever a user becomes
// blocked, regardless of whether that was manual or accrual-triggered.
func (s *Service) PostBlacklistCard(ctx context.Context, u *domain.User) error {
	topicID, err := s.ensureTopic(ctx, "blocked_topic_id", "Blacklist")
	if err != nil {
		return err
	}

	info := u.Info()
	text := fmt.Sprintf("<b>Blocked</b>\n%s\nID: %d\nViolations: %d", htmlEscapeName(info), u.UserID, u.BlockCount)
	keyboard := &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{{Text: "Unblock", Data: fmt.Sprintf("unblock:%d", u.UserID)}},
	}}

	msg, err := s.client.SendMessage(ctx, s.cfg.AdminGroup, text, telegram.SendMessageOpts{
		ThreadID:  topicID,
		ParseMode: "HTML",
		Keyboard:  keyboard,
	})
	if err != nil {
		return err
	}
	return repo.MergeUserInfo(ctx, s.db, u.UserID, domain.UserInfo{BlacklistMsgID: msg.MessageID})
}

// RemoveBlacklistCard deletes userID's blacklist card when they are
// unblocked, manually or via the self-unblock "/start" affordance.
func (s *Service) RemoveBlacklistCard(ctx context.Context, userID int64) error {
	u, err := repo.GetUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	info := u.Info()
	if info.BlacklistMsgID == 0 {
		return nil
	}
	if err := s.client.DeleteMessage(ctx, s.cfg.AdminGroup, info.BlacklistMsgID); err != nil && !telegram.IsTopicLost(err) {
		return err
	}
	return repo.ClearUserBlacklistCard(ctx, s.db, userID)
}

// JumpURL builds the "jump to thread" deep link for a bound topic
// (§4.7): https://t.me/c/<internalGroupId>/<topicId>, where
// internalGroupId strips the admin group id's leading "-100".
func (s *Service) JumpURL(topicID int64) string {
	return fmt.Sprintf("https://t.me/c/%s/%d", internalGroupID(s.cfg.AdminGroup), topicID)
}

func internalGroupID(adminGroup int64) string {
	s := strconv.FormatInt(adminGroup, 10)
	s = strings.TrimPrefix(s, "-")
	return strings.TrimPrefix(s, "100")
}

// ensureTopic returns the cached topic id under key, creating the topic
// in the admin group and caching it if none exists yet.
func (s *Service) ensureTopic(ctx context.Context, key, name string) (int64, error) {
	raw := s.store.Get(ctx, key)
	if raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id != 0 {
			return id, nil
		}
	}
	id, err := s.client.CreateForumTopic(ctx, s.cfg.AdminGroup, name)
	if err != nil {
		return 0, err
	}
	if err := s.store.Set(ctx, key, strconv.FormatInt(id, 10)); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Service) inboxCardText(u *domain.User, info domain.UserInfo, latestText string) string {
	preview := latestText
	if r := []rune(preview); len(r) > previewLen {
		preview = string(r[:previewLen])
	}
	name := info.DisplayName
	if name == "" {
		name = fmt.Sprintf("User %d", u.UserID)
	}
	return fmt.Sprintf("%s\n%s\n%s", name, preview, s.JumpURL(topicIDOf(u)))
}

func topicIDOf(u *domain.User) int64 {
	if u.TopicID == nil {
		return 0
	}
	return *u.TopicID
}

func htmlEscapeName(info domain.UserInfo) string {
	name := info.DisplayName
	if name == "" {
		name = info.Username
	}
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(name)
}
