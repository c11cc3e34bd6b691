package store

import (
	"os"
	"strings"
)

// lookupEnv maps a config key to an environment variable name under the
// fixed rewrite of §4.1 (suffix "_MSG" → "_MESSAGE", "_Q" → "_QUESTION",
// "_A" → "_ANSWER", else the uppercased key) and returns its value if set.
func lookupEnv(key string) (string, bool) {
	name := strings.ToUpper(key)
	switch {
	case strings.HasSuffix(name, "_MSG"):
		name = strings.TrimSuffix(name, "_MSG") + "_MESSAGE"
	case strings.HasSuffix(name, "_Q"):
		name = strings.TrimSuffix(name, "_Q") + "_QUESTION"
	case strings.HasSuffix(name, "_A"):
		name = strings.TrimSuffix(name, "_A") + "_ANSWER"
	}
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// defaults holds the built-in fallback value for every key the system
// reads when neither the store nor the environment has one.
var defaults = map[string]string{
	"enable_verify":             "true",
	"enable_qa_verify":          "false",
	"captcha_mode":              "turnstile",
	"welcome_msg":               "Welcome! Please complete verification to continue.",
	"qa_question":               "What is 1+1?",
	"qa_answer":                 "2",
	"busy_msg":                  "We're currently away and will reply as soon as possible.",
	"block_threshold":           "5",
	"enable_admin_receipt":      "true",
	"enable_forward_forwarding": "true",
	"enable_audio_forwarding":   "true",
	"enable_sticker_forwarding": "true",
	"enable_media_forwarding":   "true",
	"enable_link_forwarding":    "true",
	"enable_text_forwarding":    "true",
	"enable_channel_forwarding": "true",
	"busy_mode":                 "false",
	"authorized_admins":         "[]",
	"block_keywords":            "[]",
	"keyword_responses":         "[]",
	"unread_topic_id":           "",
	"blocked_topic_id":          "",
	"backup_group_id":           "",
}

// defaultFor returns the built-in default for key, or an empty string if
// none is registered.
func defaultFor(key string) string {
	return defaults[key]
}
