package store

import (
	"context"
	"time"
)

// User statuses persisted in the users table. The in-memory presence layer
// carries the same values on its identity snapshots.
const (
	StatusOnline    = "online"
	StatusIdle      = "idle"
	StatusBusy      = "busy"
	StatusInvisible = "invisible"
)

// Role names assignable to users.
const (
	RoleMember    = "Member"
	RoleHelper    = "Helper"
	RoleModerator = "Moderator"
	RoleAdmin     = "Admin"
	RoleBot       = "Bot"
)

// User represents a user in the system.
type User struct {
	ID           int64
	Nickname     string
	PasswordHash string
	AgeGroup     string
	Avatar       string
	ChatColor    string
	Roles        []string
	Status       string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	IsActive     bool
	IsBanned     bool
	CreatedAt    time.Time
	LastSeen     time.Time
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	UserID    int64
	Nickname  string
	Body      string
	CreatedAt time.Time
}

// ModerationEntry is one row of the moderation audit log.
type ModerationEntry struct {
	ID        int64
	Action    string
	TargetID  int64
	ModID     int64
	Reason    string
	CreatedAt time.Time
}

// UserStore provides user persistence operations.
type UserStore interface {
	CreateUser(ctx context.Context, nickname, passwordHash, ageGroup string) (*User, error)
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*User, error)
	UpdateUserStatus(ctx context.Context, id int64, status string) error
	TouchLastSeen(ctx context.Context, id int64) error
}

// MessageStore provides message persistence operations.
type MessageStore interface {
	CreateMessage(ctx context.Context, userID int64, body string) (*Message, error)
	RecentMessages(ctx context.Context, limit int) ([]Message, error)
}

// ModerationStore records moderation actions.
type ModerationStore interface {
	CreateModerationEntry(ctx context.Context, action string, targetID, modID int64, reason string) (*ModerationEntry, error)
}

// Store combines all persistence interfaces.
type Store interface {
	UserStore
	MessageStore
	ModerationStore
	Close() error
}
