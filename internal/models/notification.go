package models

// Notification is a best-effort message to every registered user.
type Notification struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}
