package domain

// Room describes a live broadcast room.
type Room struct {
	Name      string `json:"name"`
	UserCount int    `json:"user_count"`
}
