// This file provides repository functions for MessageRecord: the short log
// of relayed text messages kept solely for edit-diff lookups (§4.5.3).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/domain"
)

// RecordMessage upserts the text/date recorded for (userID, messageID). A
// later edit of the same message overwrites the row in place, which is
// exactly what an edit-diff lookup needs.
func RecordMessage(ctx context.Context, db *gorm.DB, userID, messageID int64, text string, date int64) error {
	m := &domain.MessageRecord{UserID: userID, MessageID: messageID, Text: text, Date: date}
	return db.WithContext(ctx).Save(m).Error
}

// GetMessage fetches the recorded text for (userID, messageID). Returns
// ErrNotFound if the message was never recorded (e.g. it was never text,
// or relay failed before recording).
func GetMessage(ctx context.Context, db *gorm.DB, userID, messageID int64) (*domain.MessageRecord, error) {
	var m domain.MessageRecord
	err := db.WithContext(ctx).First(&m, "user_id = ? AND message_id = ?", userID, messageID).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
