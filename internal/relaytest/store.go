package relaytest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrChannelClosed is returned when registering on a closed channel.
var ErrChannelClosed = errors.New("channel closed")

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	owner_id   TEXT NOT NULL,
	closed     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id INTEGER NOT NULL REFERENCES channels(id),
	user_id    TEXT NOT NULL,
	joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (channel_id, user_id)
);
`

// Channel is a registered channel.
type Channel struct {
	ID        int64
	Name      string
	OwnerID   string
	Closed    bool
	CreatedAt time.Time
}

// ChannelStore persists channel registrations in SQLite.
type ChannelStore struct {
	db *sql.DB
}

// NewChannelStore opens dbPath and applies the schema.
func NewChannelStore(dbPath string) (*ChannelStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &ChannelStore{db: db}, nil
}

// Close closes the database connection.
func (s *ChannelStore) Close() error {
	return s.db.Close()
}

// RegisterMember records userID as a member of channel, creating the
// channel with userID as owner when it does not exist yet. Registering again
// is a no-op. created reports whether the channel was new.
func (s *ChannelStore) RegisterMember(ctx context.Context, name, userID string) (ch *Channel, created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO channels (name, owner_id) VALUES (?, ?)`, name, userID)
	if err != nil {
		return nil, false, fmt.Errorf("insert channel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	created = affected == 1

	ch, err = scanChannel(tx.QueryRowContext(ctx, `
		SELECT id, name, owner_id, closed, created_at
		FROM channels
		WHERE name = ?
	`, name))
	if err != nil {
		return nil, false, err
	}
	if ch.Closed {
		return nil, false, ErrChannelClosed
	}

	if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO channel_members (channel_id, user_id) VALUES (?, ?)`, ch.ID, userID); err != nil {
		return nil, false, fmt.Errorf("insert member: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return ch, created, nil
}

// CloseChannel marks name closed, creating it if needed.
func (s *ChannelStore) CloseChannel(ctx context.Context, name string) error {
	query := `
		INSERT INTO channels (name, owner_id, closed)
		VALUES (?, '', 1)
		ON CONFLICT(name) DO UPDATE SET closed = 1
	`
	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	return nil
}

func scanChannel(row *sql.Row) (*Channel, error) {
	var ch Channel
	if err := row.Scan(&ch.ID, &ch.Name, &ch.OwnerID, &ch.Closed, &ch.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel not found: %w", err)
		}
		return nil, fmt.Errorf("query channel: %w", err)
	}
	return &ch, nil
}

// ListMembers returns the user ids registered on name in join order.
func (s *ChannelStore) ListMembers(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.user_id
		FROM channel_members m
		JOIN channels c ON c.id = m.channel_id
		WHERE c.name = ?
		ORDER BY m.rowid
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

// ListChannels returns registered channel names in creation order.
func (s *ChannelStore) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM channels ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
