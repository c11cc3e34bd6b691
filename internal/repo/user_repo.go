// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User
// model: the one row per end-user identity that carries admission state,
// the blocked overlay, the bound topic, and the structured profile blob.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
// The admission/relay/policy packages own the business rules (violation
// accrual, state transitions, topic binding) that call into these
// functions, typically inside db.Transaction for atomicity.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/domain"
)

// GetUser fetches a user by id. It returns ErrNotFound if the row does not
// exist.
func GetUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateUser returns the existing user row for userID, creating a new
// one in state "new" if none exists yet. Rows are never deleted once
// created (§3), so this is the sole entry point for first contact.
func GetOrCreateUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, "user_id = ?", userID).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u = domain.User{UserID: userID, State: domain.StateNew}
	if err := db.WithContext(ctx).Create(&u).Error; err != nil {
		// Lost the create race against a concurrent first-contact insert;
		// re-read rather than surface a duplicate-key error to the caller.
		if isDuplicate(err) {
			if readErr := db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; readErr == nil {
				return &u, nil
			}
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByTopic fetches the user bound to topicID, used by the admin
// reply path (§4.9) to resolve an operator group message back to its
// originating user. Returns ErrNotFound if no user is bound to that topic.
func GetUserByTopic(ctx context.Context, db *gorm.DB, topicID int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).First(&u, "topic_id = ?", topicID).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserState updates only the admission state column.
func SetUserState(ctx context.Context, db *gorm.DB, userID int64, state domain.UserState) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", userID).
		Update("user_state", state)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetUserTopic persists the user's bound topic id. Passing nil clears it,
// which is how topic-lost recovery (§4.5.4) invalidates a stale binding.
func SetUserTopic(ctx context.Context, db *gorm.DB, userID int64, topicID *int64) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", userID).
		Update("topic_id", topicID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MergeUserInfo reads the current profile blob, merges patch over it
// (§3 invariant 4), and writes the result back, all inside a transaction
// so a concurrent writer cannot observe or clobber a half-applied merge.
func MergeUserInfo(ctx context.Context, db *gorm.DB, userID int64, patch domain.UserInfo) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
			return err
		}
		u.SetInfo(u.Info().Merge(patch))
		return tx.WithContext(ctx).Model(&domain.User{}).
			Where("user_id = ?", userID).
			Update("user_info_json", u.UserInfo).Error
	})
}

// ClearUserNote empties the note field without touching any other userInfo
// field, satisfying the explicit-clear affordance of the admin reply path
// (§4.9) that the zero-value-means-unset merge rule cannot express.
func ClearUserNote(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
			return err
		}
		u.SetInfo(u.Info().ClearNote())
		return tx.WithContext(ctx).Model(&domain.User{}).
			Where("user_id = ?", userID).
			Update("user_info_json", u.UserInfo).Error
	})
}

// ClearUserCard zeroes the pinned info-card message id, used when a
// bound topic is lost and its card no longer exists (§4.5.4).
func ClearUserCard(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
			return err
		}
		u.SetInfo(u.Info().ClearCardMsgID())
		return tx.WithContext(ctx).Model(&domain.User{}).
			Where("user_id = ?", userID).
			Update("user_info_json", u.UserInfo).Error
	})
}

// ClearUserInboxCard zeroes the inbox card message id, used after the
// inbox card has been acknowledged and deleted (§4.7).
func ClearUserInboxCard(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
			return err
		}
		u.SetInfo(u.Info().ClearInboxMsgID())
		return tx.WithContext(ctx).Model(&domain.User{}).
			Where("user_id = ?", userID).
			Update("user_info_json", u.UserInfo).Error
	})
}

// ClearUserBlacklistCard zeroes the blacklist card message id, used after
// a blocked user's card has been deleted on unblock (§4.7).
func ClearUserBlacklistCard(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
			return err
		}
		u.SetInfo(u.Info().ClearBlacklistMsgID())
		return tx.WithContext(ctx).Model(&domain.User{}).
			Where("user_id = ?", userID).
			Update("user_info_json", u.UserInfo).Error
	})
}

// AccrueViolation increments blockCount and, if it reaches threshold, sets
// isBlocked in the same write (§3 invariant 3, §4.6.1). It returns the
// resulting blockCount and whether this write crossed into blocked.
func AccrueViolation(ctx context.Context, db *gorm.DB, userID int64, threshold int) (count int, blocked bool, err error) {
	err = db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if e := tx.WithContext(ctx).First(&u, "user_id = ?", userID).Error; e != nil {
			return e
		}
		count = u.BlockCount + 1
		nowBlocked := u.IsBlocked || count >= threshold
		blocked = nowBlocked && !u.IsBlocked
		return tx.WithContext(ctx).Model(&domain.User{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"block_count": count,
				"is_blocked":  nowBlocked,
			}).Error
	})
	return count, blocked, err
}

// SetBlocked sets or clears the blocked overlay directly (manual admin
// block/unblock, and the "/start"-from-blocked self-unblock, which also
// zeroes blockCount per §4.3).
func SetBlocked(ctx context.Context, db *gorm.DB, userID int64, blocked bool, resetCount bool) error {
	updates := map[string]interface{}{"is_blocked": blocked}
	if resetCount {
		updates["block_count"] = 0
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UserStats returns the total number of known users and how many are
// currently blocked and currently verified, for the admin console's Base
// panel summary.
func UserStats(ctx context.Context, db *gorm.DB) (total, blocked, verified int64, err error) {
	if err = db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error; err != nil {
		return
	}
	if err = db.WithContext(ctx).Model(&domain.User{}).Where("is_blocked = ?", true).Count(&blocked).Error; err != nil {
		return
	}
	err = db.WithContext(ctx).Model(&domain.User{}).Where("user_state = ?", domain.StateVerified).Count(&verified).Error
	return
}
