// Package telegram is a thin wrapper over the chat platform's JSON-RPC
// surface (§4.2). It has exactly one contract the rest of the system
// relies on: call a method, get a result or a structured error carrying
// the platform's textual reason. It retries nothing; callers decide.
package telegram

// Update is the push envelope delivered to POST / (§6). Only the shapes
// the relay, policy, admission, and admin-console packages actually read
// are modeled; unrecognized fields are dropped by encoding/json.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	EditedMessage *Message       `json:"edited_message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// User is a chat-platform account identity.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// DisplayName joins the name fields the way the relay's info card and
// inbox/blacklist boards render an identity summary.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// Chat is either a private chat with an end user or the operator forum
// group.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	// IsForum indicates the operator group has topics enabled.
	IsForum bool `json:"is_forum,omitempty"`
}

// MessageEntity marks a span of Message.Text, used to detect link-bearing
// text (§4.6.2: "any URL or text_link entity").
type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url,omitempty"`
}

// PhotoSize is one entry of Message.Photo; only the largest is ever used.
type PhotoSize struct {
	FileID string `json:"file_id"`
}

// FileAsset is the minimal shape shared by video/document/animation/
// sticker/voice/audio attachments: a file id the admin console's
// welcome_msg capture (§4.8) and the typed-content classifier (§4.6.2)
// both only ever need the presence of, plus the id itself for replay.
type FileAsset struct {
	FileID string `json:"file_id"`
}

// Message is the chat-platform message envelope. Field presence
// discriminates the message's typed-content classification (§4.6.2).
type Message struct {
	MessageID     int64            `json:"message_id"`
	MessageThread int64            `json:"message_thread_id,omitempty"`
	From          *User            `json:"from,omitempty"`
	Chat          Chat             `json:"chat"`
	Date          int64            `json:"date"`
	Text          string           `json:"text,omitempty"`
	Caption       string           `json:"caption,omitempty"`
	Entities      []MessageEntity  `json:"entities,omitempty"`
	CaptionEntity []MessageEntity  `json:"caption_entities,omitempty"`
	Photo         []PhotoSize      `json:"photo,omitempty"`
	Video         *FileAsset       `json:"video,omitempty"`
	Document      *FileAsset       `json:"document,omitempty"`
	Animation     *FileAsset       `json:"animation,omitempty"`
	Sticker       *FileAsset       `json:"sticker,omitempty"`
	Voice         *FileAsset       `json:"voice,omitempty"`
	Audio         *FileAsset       `json:"audio,omitempty"`
	ForwardOrigin *ForwardOrigin   `json:"forward_origin,omitempty"`
	ReplyTo       *Message         `json:"reply_to_message,omitempty"`
	IsTopicMsg    bool             `json:"is_topic_message,omitempty"`
}

// ForwardOrigin identifies what a forwarded message was forwarded from,
// needed to distinguish user/group/channel forwards (§4.6.2) and to
// require `enable_channel_forwarding` specifically for channel forwards.
type ForwardOrigin struct {
	Type string `json:"type"` // "user", "chat", "channel", "hidden_user"
}

// CallbackQuery is an inline-keyboard button press, carrying the
// colon-separated callback-data grammar of §6.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// AllText returns the text the policy pipeline should match against,
// preferring the message body and falling back to a media caption.
func (m *Message) AllText() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// AllEntities returns the entity list matching whichever of Text/Caption
// AllText returned.
func (m *Message) AllEntities() []MessageEntity {
	if m.Text != "" {
		return m.Entities
	}
	return m.CaptionEntity
}
