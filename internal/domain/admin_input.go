package domain

// AdminInputAction distinguishes the two shapes of pending admin input the
// console can be waiting on.
type AdminInputAction string

const (
	// AdminInputValue means the operator's next private message is the
	// scalar value for a "config:edit:<key>" request.
	AdminInputValue AdminInputAction = "input"
	// AdminInputNote means the operator's next message in a bound topic is
	// a note update for the user bound to that topic (§4.9).
	AdminInputNote AdminInputAction = "input_note"
)

// AdminInputState is the per-admin transient workflow state described in
// §3. It has no table of its own: it is JSON-encoded and stored as the
// Value of a ConfigEntry whose Key is "admin_state:<adminUserId>", and is
// removed on completion or an explicit "/cancel".
type AdminInputState struct {
	AdminUserID int64            `json:"admin_user_id"`
	Action      AdminInputAction `json:"action"`
	Key         string           `json:"key"`
}
