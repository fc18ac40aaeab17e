package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/blacksmithop/chatconnect-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	nickname      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	age_group     TEXT NOT NULL DEFAULT '',
	avatar        TEXT NOT NULL DEFAULT '',
	chat_color    TEXT NOT NULL DEFAULT '#3B82F6',
	roles         TEXT NOT NULL DEFAULT '["Member"]',
	status        TEXT NOT NULL DEFAULT 'online',
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	is_active     BOOLEAN NOT NULL DEFAULT 1,
	is_banned     BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS moderation_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	action     TEXT NOT NULL,
	target_id  INTEGER NOT NULL,
	mod_id     INTEGER NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (target_id) REFERENCES users(id),
	FOREIGN KEY (mod_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens a SQLite database at dbPath and applies the schema.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, nickname, passwordHash, ageGroup string) (*store.User, error) {
	query := `
		INSERT INTO users (nickname, password_hash, age_group, is_guest)
		VALUES (?, ?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, nickname, passwordHash, ageGroup)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, sessionID string) (*store.User, error) {
	query := `
		INSERT INTO users (nickname, is_guest, session_id)
		VALUES (?, 1, ?)
	`
	guestNickname := "guest_" + sessionID[:8]

	result, err := s.db.ExecContext(ctx, query, guestNickname, sessionID)
	if err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByNickname retrieves a user by nickname.
func (s *SQLiteStore) GetUserByNickname(ctx context.Context, nickname string) (*store.User, error) {
	return s.getUser(ctx, "nickname = ?", nickname)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, nickname, password_hash, age_group, avatar, chat_color, roles,
		       status, is_guest, COALESCE(session_id, ''), is_active, is_banned,
		       created_at, last_seen
		FROM users
		WHERE ` + where

	var u store.User
	var rolesJSON string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Nickname, &u.PasswordHash, &u.AgeGroup, &u.Avatar, &u.ChatColor,
		&rolesJSON, &u.Status, &u.IsGuest, &u.SessionID, &u.IsActive, &u.IsBanned,
		&u.CreatedAt, &u.LastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if err := json.Unmarshal([]byte(rolesJSON), &u.Roles); err != nil {
		u.Roles = []string{store.RoleMember}
	}

	return &u, nil
}

// UpdateUserStatus updates the durable status field for a user.
func (s *SQLiteStore) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// TouchLastSeen bumps last_seen to the current time.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a chat message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, userID int64, body string) (*store.Message, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO messages (user_id, body) VALUES (?, ?)`, userID, body)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	var m store.Message
	err = s.db.QueryRowContext(ctx, `
		SELECT m.id, m.user_id, u.nickname, m.body, m.created_at
		FROM messages m JOIN users u ON u.id = m.user_id
		WHERE m.id = ?`, id).Scan(&m.ID, &m.UserID, &m.Nickname, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &m, nil
}

// RecentMessages returns up to limit messages, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.user_id, u.nickname, m.body, m.created_at
		FROM messages m JOIN users u ON u.id = m.user_id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Nickname, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// ==== ModerationStore implementation ====

// CreateModerationEntry appends one action to the moderation log.
func (s *SQLiteStore) CreateModerationEntry(ctx context.Context, action string, targetID, modID int64, reason string) (*store.ModerationEntry, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_log (action, target_id, mod_id, reason)
		VALUES (?, ?, ?, ?)`, action, targetID, modID, reason)
	if err != nil {
		return nil, fmt.Errorf("insert moderation entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	var e store.ModerationEntry
	err = s.db.QueryRowContext(ctx, `
		SELECT id, action, target_id, mod_id, reason, created_at
		FROM moderation_log WHERE id = ?`, id).Scan(
		&e.ID, &e.Action, &e.TargetID, &e.ModID, &e.Reason, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query moderation entry: %w", err)
	}

	return &e, nil
}
