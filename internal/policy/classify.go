package policy

import "github.com/tbourn/forum-relay-bot/internal/telegram"

// Kind is the typed-content classification of §4.6.2, in descending
// priority order: a message matches the first Kind whose predicate holds.
type Kind int

const (
	KindText Kind = iota
	KindForwardUser
	KindForwardGroup
	KindForwardChannel
	KindAudio
	KindSticker
	KindMedia
	KindLink
)

// switchKey is the store key gating each Kind, mirroring the exact names
// already carried by internal/store/defaults.go. Forward kinds are not
// covered here: they compose enable_forward_forwarding and
// enable_channel_forwarding directly (see passesTypedContentSwitches in
// policy.go) because a channel forward requires both switches, not one.
func (k Kind) switchKey() string {
	switch k {
	case KindAudio:
		return "enable_audio_forwarding"
	case KindSticker:
		return "enable_sticker_forwarding"
	case KindMedia:
		return "enable_media_forwarding"
	case KindLink:
		return "enable_link_forwarding"
	default:
		return "enable_text_forwarding"
	}
}

// Classify determines the Kind of m following the fixed priority order of
// §4.6.2: forwarded (channel checked ahead of plain user/group so a forward
// that is also a channel post is classified as a channel forward) → audio/
// voice → sticker/animation → media → link-bearing text → plain text.
func Classify(m *telegram.Message) Kind {
	if m.ForwardOrigin != nil {
		switch m.ForwardOrigin.Type {
		case "channel":
			return KindForwardChannel
		case "chat":
			return KindForwardGroup
		default:
			return KindForwardUser
		}
	}
	if m.Audio != nil || m.Voice != nil {
		return KindAudio
	}
	if m.Sticker != nil || m.Animation != nil {
		return KindSticker
	}
	if len(m.Photo) > 0 || m.Video != nil || m.Document != nil {
		return KindMedia
	}
	if hasLink(m) {
		return KindLink
	}
	return KindText
}

// hasLink reports whether m carries a URL or text_link entity anywhere in
// its text or caption (§4.6.2: "any URL or text_link entity").
func hasLink(m *telegram.Message) bool {
	for _, e := range m.AllEntities() {
		if e.Type == "url" || e.Type == "text_link" {
			return true
		}
	}
	return false
}
