package chat

import "time"

// Session captures a transient in-process conversation. Sessions are
// never persisted; they live and die with the hosting process.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
