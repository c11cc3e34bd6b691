package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/tbourn/forum-relay-bot/internal/domain"
)

const adminStatePrefix = "admin_state:"

func adminStateKey(adminUserID int64) string {
	return adminStatePrefix + strconv.FormatInt(adminUserID, 10)
}

// SetAdminInputState records that adminUserID's next message should be
// consumed as input for action/key, per the two-step edit workflow of
// §4.8/§4.9.
func (s *Store) SetAdminInputState(ctx context.Context, st domain.AdminInputState) error {
	return s.SetJSON(ctx, adminStateKey(st.AdminUserID), st)
}

// GetAdminInputState returns the pending input state for adminUserID, if
// any. ok is false when no state is pending (or the stored value failed to
// parse — fail closed, same as getJson).
func (s *Store) GetAdminInputState(ctx context.Context, adminUserID int64) (st domain.AdminInputState, ok bool) {
	raw := s.Get(ctx, adminStateKey(adminUserID))
	if raw == "" {
		return domain.AdminInputState{}, false
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return domain.AdminInputState{}, false
	}
	return st, true
}

// ClearAdminInputState removes adminUserID's pending input state, on
// completion or explicit "/cancel".
func (s *Store) ClearAdminInputState(ctx context.Context, adminUserID int64) error {
	return s.Delete(ctx, adminStateKey(adminUserID))
}
