package telegram

import "context"

// InlineKeyboard is the flat button-grid shape used by info cards, board
// cards, and admin-console menus.
type InlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

// InlineButton is a single callback button; Data follows the
// colon-separated grammar of §6. A button carries exactly one of Data,
// URL, or WebApp.
type InlineButton struct {
	Text   string      `json:"text"`
	Data   string      `json:"callback_data,omitempty"`
	URL    string      `json:"url,omitempty"`
	WebApp *WebAppInfo `json:"web_app,omitempty"`
}

// WebAppInfo opens url inside the chat platform's mini-app web view
// instead of an external browser, used by the verification prompt's
// button (§4.4) so the page can read the platform's injected initData.
type WebAppInfo struct {
	URL string `json:"url"`
}

// SendMessageOpts configures an outbound text message.
type SendMessageOpts struct {
	ThreadID            int64
	ParseMode           string
	DisableNotification bool
	ReplyToMessageID    int64
	Keyboard            *InlineKeyboard
}

func (o SendMessageOpts) apply(body map[string]interface{}) {
	if o.ThreadID != 0 {
		body["message_thread_id"] = o.ThreadID
	}
	if o.ParseMode != "" {
		body["parse_mode"] = o.ParseMode
	}
	if o.DisableNotification {
		body["disable_notification"] = true
	}
	if o.ReplyToMessageID != 0 {
		body["reply_parameters"] = map[string]interface{}{
			"message_id": o.ReplyToMessageID,
		}
	}
	if o.Keyboard != nil {
		body["reply_markup"] = o.Keyboard
	}
}

// SendMessage posts text into chatID, returning the sent message (for its
// id, used by info/board cards and the record of a user ack reply).
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts SendMessageOpts) (*Message, error) {
	body := map[string]interface{}{"chat_id": chatID, "text": text}
	opts.apply(body)
	var out Message
	if err := c.Call(ctx, "sendMessage", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendPhoto posts a photo by file id, used to replay a welcome_msg
// captured as a photo attachment (§4.8).
func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error {
	body := map[string]interface{}{"chat_id": chatID, "photo": fileID}
	if caption != "" {
		body["caption"] = caption
	}
	return c.Call(ctx, "sendPhoto", body, nil)
}

// SendVideo posts a video by file id, used to replay a welcome_msg
// captured as a video attachment (§4.8).
func (c *Client) SendVideo(ctx context.Context, chatID int64, fileID, caption string) error {
	body := map[string]interface{}{"chat_id": chatID, "video": fileID}
	if caption != "" {
		body["caption"] = caption
	}
	return c.Call(ctx, "sendVideo", body, nil)
}

// SendAnimation posts an animation by file id, used to replay a
// welcome_msg captured as an animation attachment (§4.8).
func (c *Client) SendAnimation(ctx context.Context, chatID int64, fileID, caption string) error {
	body := map[string]interface{}{"chat_id": chatID, "animation": fileID}
	if caption != "" {
		body["caption"] = caption
	}
	return c.Call(ctx, "sendAnimation", body, nil)
}

// EditMessageText replaces the text of an existing message, the primitive
// the admin console's menu renders with and the inbox board edits cards
// with.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *InlineKeyboard) error {
	body := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if keyboard != nil {
		body["reply_markup"] = keyboard
	}
	return c.Call(ctx, "editMessageText", body, nil)
}

// DeleteMessage removes a message, used to drop inbox/blacklist cards on
// acknowledge/unblock.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.Call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// PinChatMessage pins messageID in chatID. Failure here is always
// best-effort for callers (§4.5.5): pin failure must not fail relay.
func (c *Client) PinChatMessage(ctx context.Context, chatID, messageID int64) error {
	return c.Call(ctx, "pinChatMessage", map[string]interface{}{
		"chat_id":              chatID,
		"message_id":           messageID,
		"disable_notification": true,
	}, nil)
}

// ForwardMessage forwards messageID from fromChatID into toChatID/thread.
func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID, threadID int64) (*Message, error) {
	body := map[string]interface{}{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if threadID != 0 {
		body["message_thread_id"] = threadID
	}
	var out Message
	if err := c.Call(ctx, "forwardMessage", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CopyMessage copies messageID from fromChatID into toChatID/thread,
// preserving text/caption without the "forwarded from" banner (§4.5.3).
func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID, messageID, threadID int64) (*Message, error) {
	body := map[string]interface{}{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}
	if threadID != 0 {
		body["message_thread_id"] = threadID
	}
	var out Message
	if err := c.Call(ctx, "copyMessage", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateForumTopic provisions a new topic named name inside chatID,
// returning its thread id (§4.5.2).
func (c *Client) CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error) {
	var out struct {
		MessageThreadID int64 `json:"message_thread_id"`
	}
	err := c.Call(ctx, "createForumTopic", map[string]interface{}{
		"chat_id": chatID,
		"name":    name,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.MessageThreadID, nil
}

// EditForumTopic best-effort renames topicID to name, used when a bound
// user's display name changes (§4.5.1).
func (c *Client) EditForumTopic(ctx context.Context, chatID, topicID int64, name string) error {
	return c.Call(ctx, "editForumTopic", map[string]interface{}{
		"chat_id":           chatID,
		"message_thread_id": topicID,
		"name":              name,
	}, nil)
}

// SetMessageReaction sets emoji as the sole reaction on messageID, the
// preferred user-acknowledgement primitive (§4.5.6).
func (c *Client) SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string) error {
	return c.Call(ctx, "setMessageReaction", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"reaction": []map[string]string{
			{"type": "emoji", "emoji": emoji},
		},
	}, nil)
}

// AnswerCallbackQuery acknowledges an inline-button press so the client
// stops showing its loading spinner; text, if non-empty, is shown as a
// transient toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	body := map[string]interface{}{"callback_query_id": callbackQueryID}
	if text != "" {
		body["text"] = text
	}
	return c.Call(ctx, "answerCallbackQuery", body, nil)
}
