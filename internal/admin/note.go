package admin

import (
	"context"
	"strconv"
	"strings"

	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/repo"
)

// RequestNoteEdit arms the admin-input-note state that makes adminUserID's
// next message in the operator group a note update for targetUserID,
// triggered by the info card's "Edit note" button (§4.5.5/§4.9).
func (s *Service) RequestNoteEdit(ctx context.Context, adminUserID, targetUserID int64) error {
	return s.store.SetAdminInputState(ctx, domain.AdminInputState{
		AdminUserID: adminUserID,
		Action:      domain.AdminInputNote,
		Key:         strconv.FormatInt(targetUserID, 10),
	})
}

// consumeNoteInput applies a pending admin-input-note state against text,
// if one is armed for adminUserID (§4.9). "/clear" and "清除" empty the
// note; any other text replaces it.
func (s *Service) consumeNoteInput(ctx context.Context, adminUserID int64, text string) (handled bool, err error) {
	st, ok := s.store.GetAdminInputState(ctx, adminUserID)
	if !ok || st.Action != domain.AdminInputNote {
		return false, nil
	}
	defer func() { _ = s.store.ClearAdminInputState(ctx, adminUserID) }()

	targetUserID, err := strconv.ParseInt(st.Key, 10, 64)
	if err != nil {
		return true, nil
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "/clear" || trimmed == "清除" {
		return true, repo.ClearUserNote(ctx, s.db, targetUserID)
	}
	return true, repo.MergeUserInfo(ctx, s.db, targetUserID, domain.UserInfo{Note: trimmed})
}
