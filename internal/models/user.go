package models

// User is an operator account. Usernames double as notification recipients.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
