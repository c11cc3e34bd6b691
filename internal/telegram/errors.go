package telegram

import "strings"

// APIError is the structured failure surfaced by Client.Call for every
// platform-rejected request (§4.2): one failure, carrying the platform's
// textual description. No retry, no exponential backoff — callers decide.
type APIError struct {
	Method      string
	Description string
}

func (e *APIError) Error() string {
	return "telegram: " + e.Method + ": " + e.Description
}

// IsTopicLost reports whether err is the topic-lost signal described in
// §4.2/§7(c): an error whose textual description contains "thread" or
// "not found".
func IsTopicLost(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	d := strings.ToLower(apiErr.Description)
	return strings.Contains(d, "thread") || strings.Contains(d, "not found")
}
