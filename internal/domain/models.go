// Package domain defines the persistence models for the relay's three-table
// store: configuration entries, end-user identities, and the short message
// log kept for edit-diff lookups. These types are mapped with GORM and form
// the core data layer of the relay bot.
package domain

import (
	"database/sql/driver"
	"encoding/json"
)

// ConfigEntry is a single key-value row in the configuration and rule
// store. Values are opaque strings that may themselves encode JSON (lists
// of keywords, auto-reply rules, the authorized-admin list); interpretation
// is the store package's responsibility, not this model's.
//
// AdminInputState (§3) has no table of its own: it is serialized as the
// Value of a ConfigEntry whose Key carries the reserved prefix
// "admin_state:".
type ConfigEntry struct {
	Key   string `json:"key"   gorm:"column:key;primaryKey;type:varchar(191)"`
	Value string `json:"value" gorm:"column:value;type:text"`
}

// TableName returns the database table name for ConfigEntry.
func (ConfigEntry) TableName() string { return "config" }

// UserState is the admission phase of a User, independent of the blocked
// overlay.
type UserState string

const (
	StateNew                 UserState = "new"
	StatePendingTurnstile    UserState = "pending_turnstile"
	StatePendingVerification UserState = "pending_verification"
	StateVerified            UserState = "verified"
)

// UserInfo is the typed replacement for an ad-hoc JSON blob (§9 design
// note): every field the admission, relay, policy, and admin-console
// components read or write has an explicit name, so a partial update can
// merge at the field level instead of clobbering siblings.
type UserInfo struct {
	DisplayName string `json:"display_name,omitempty"`
	Username    string `json:"username,omitempty"`
	Note        string `json:"note,omitempty"`

	// CardMsgID is the pinned info-card message id inside the user's bound
	// topic (§4.5). InboxMsgID and BlacklistMsgID are the corresponding
	// card ids on the two board topics (§4.7).
	CardMsgID      int64 `json:"card_msg_id,omitempty"`
	InboxMsgID     int64 `json:"inbox_msg_id,omitempty"`
	BlacklistMsgID int64 `json:"blacklist_msg_id,omitempty"`

	// LastBusyReply is the unix-seconds timestamp of the last quiet-hours
	// notice sent to this user (§4.6.4). LastNotify is carried in the blob
	// and merged like the other fields; no code path sets it and the admin
	// console does not display it.
	LastBusyReply int64 `json:"last_busy_reply,omitempty"`
	LastNotify    int64 `json:"last_notify,omitempty"`
	JoinDate      int64 `json:"join_date,omitempty"`
}

// Merge returns a copy of ui with every non-zero field of patch applied
// over it, satisfying the userInfo merge discipline of §3 invariant 4: no
// write may drop an unrelated field.
func (ui UserInfo) Merge(patch UserInfo) UserInfo {
	out := ui
	if patch.DisplayName != "" {
		out.DisplayName = patch.DisplayName
	}
	if patch.Username != "" {
		out.Username = patch.Username
	}
	if patch.Note != "" {
		out.Note = patch.Note
	}
	if patch.CardMsgID != 0 {
		out.CardMsgID = patch.CardMsgID
	}
	if patch.InboxMsgID != 0 {
		out.InboxMsgID = patch.InboxMsgID
	}
	if patch.BlacklistMsgID != 0 {
		out.BlacklistMsgID = patch.BlacklistMsgID
	}
	if patch.LastBusyReply != 0 {
		out.LastBusyReply = patch.LastBusyReply
	}
	if patch.LastNotify != 0 {
		out.LastNotify = patch.LastNotify
	}
	if patch.JoinDate != 0 {
		out.JoinDate = patch.JoinDate
	}
	return out
}

// ClearNote returns a copy of ui with Note emptied. It exists separately
// from Merge because an explicit "/clear" or "清除" note edit (§4.9) must
// be able to drop a field, which the zero-value-means-unset merge rule
// would otherwise treat as a no-op.
func (ui UserInfo) ClearNote() UserInfo {
	out := ui
	out.Note = ""
	return out
}

// ClearCardMsgID returns a copy of ui with CardMsgID zeroed, used when a
// bound topic is lost and its info card no longer exists (§4.5.4).
func (ui UserInfo) ClearCardMsgID() UserInfo {
	out := ui
	out.CardMsgID = 0
	return out
}

// ClearInboxMsgID returns a copy of ui with InboxMsgID zeroed, used once
// the inbox card has been acknowledged and deleted (§4.7).
func (ui UserInfo) ClearInboxMsgID() UserInfo {
	out := ui
	out.InboxMsgID = 0
	return out
}

// ClearBlacklistMsgID returns a copy of ui with BlacklistMsgID zeroed,
// used once a blocked user's blacklist card has been deleted on unblock
// (§4.7).
func (ui UserInfo) ClearBlacklistMsgID() UserInfo {
	out := ui
	out.BlacklistMsgID = 0
	return out
}

// userInfoJSON is the database/sql Valuer/Scanner pair for UserInfo,
// grounded on the JSONB column pattern of a structured per-user blob
// persisted as text.
type userInfoJSON UserInfo

func (j userInfoJSON) Value() (driver.Value, error) {
	b, err := json.Marshal(UserInfo(j))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *userInfoJSON) Scan(value interface{}) error {
	if value == nil {
		*j = userInfoJSON{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errUnsupportedUserInfoType
	}
	if len(data) == 0 {
		*j = userInfoJSON{}
		return nil
	}
	var out UserInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*j = userInfoJSON(out)
	return nil
}

// User is one end-user identity known to the relay: their admission phase,
// blocked overlay, bound topic, and structured profile blob. Rows are
// created on first contact and never deleted (§3).
type User struct {
	UserID     int64        `json:"user_id"      gorm:"column:user_id;primaryKey"`
	State      UserState    `json:"state"        gorm:"column:user_state;type:varchar(32);not null;default:'new'"`
	IsBlocked  bool         `json:"is_blocked"   gorm:"column:is_blocked;not null;default:false"`
	BlockCount int          `json:"block_count"  gorm:"column:block_count;not null;default:0"`
	TopicID    *int64       `json:"topic_id"     gorm:"column:topic_id;uniqueIndex:ux_users_topic_id"`
	UserInfo   userInfoJSON `json:"user_info"    gorm:"column:user_info_json;type:text"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Info returns the typed view of the stored profile blob.
func (u User) Info() UserInfo { return UserInfo(u.UserInfo) }

// SetInfo stores ui as the user's profile blob.
func (u *User) SetInfo(ui UserInfo) { u.UserInfo = userInfoJSON(ui) }

// MessageRecord is a minimal log of successfully relayed text messages,
// kept solely so an edited user message can later be diffed against what
// was originally forwarded (§4.5.3).
type MessageRecord struct {
	UserID    int64  `json:"user_id"    gorm:"column:user_id;primaryKey"`
	MessageID int64  `json:"message_id" gorm:"column:message_id;primaryKey"`
	Text      string `json:"text"       gorm:"column:text;type:text"`
	Date      int64  `json:"date"       gorm:"column:date"`
}

// TableName returns the database table name for MessageRecord.
func (MessageRecord) TableName() string { return "messages" }
