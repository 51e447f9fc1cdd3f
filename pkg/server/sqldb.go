package server

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/emberline-mud/goember/pkg/gamedb"
)

// MessageLog records channel messages in a SQLite3 database so scrollback
// and per-sender history survive restarts.
type MessageLog struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

const messageSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	sender   INTEGER NOT NULL,
	channels TEXT NOT NULL,
	body     TEXT NOT NULL,
	sent     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender, sent);
CREATE INDEX IF NOT EXISTS idx_messages_sent ON messages(sent);
`

// OpenMessageLog opens a SQLite3 database at path, sets WAL mode and busy
// timeout, and creates the messages table if missing.
func OpenMessageLog(path string, timeoutSec int) (*MessageLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(messageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating messages table: %w", err)
	}
	return &MessageLog{
		db:      db,
		path:    path,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the message log database.
func (m *MessageLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the message log database.
func (m *MessageLog) Path() string { return m.path }

// InsertMessage stores a message and fills in its assigned ID. A zero Sent
// time is stamped with the current time.
func (m *MessageLog) InsertMessage(msg *gamedb.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return fmt.Errorf("message log not open")
	}
	if msg.Sent.IsZero() {
		msg.Sent = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	res, err := m.db.ExecContext(ctx,
		"INSERT INTO messages (sender, channels, body, sent) VALUES (?, ?, ?, ?)",
		int(msg.Sender), strings.Join(msg.Channels, ","), msg.Body, msg.Sent.Unix())
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}
	msg.ID = id
	return nil
}

// MessagesBySender returns all messages sent by a player, oldest first.
func (m *MessageLog) MessagesBySender(sender gamedb.DBRef) ([]gamedb.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil, fmt.Errorf("message log not open")
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	rows, err := m.db.QueryContext(ctx,
		"SELECT id, sender, channels, body, sent FROM messages WHERE sender = ? ORDER BY sent, id",
		int(sender))
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []gamedb.Message
	for rows.Next() {
		var (
			msg      gamedb.Message
			senderID int64
			channels string
			sent     int64
		)
		if err := rows.Scan(&msg.ID, &senderID, &channels, &msg.Body, &sent); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.Sender = gamedb.DBRef(senderID)
		if channels != "" {
			msg.Channels = strings.Split(channels, ",")
		}
		msg.Sent = time.Unix(sent, 0)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// MessagesByChannel returns the latest limit messages on a channel, oldest
// first, for scrollback.
func (m *MessageLog) MessagesByChannel(channel string, limit int) ([]gamedb.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil, fmt.Errorf("message log not open")
	}
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	// Channels are stored comma-joined; match the name as a whole element.
	pattern := "%" + strings.ToLower(channel) + "%"
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, sender, channels, body, sent FROM messages
		 WHERE lower(channels) LIKE ? ORDER BY sent DESC, id DESC LIMIT ?`,
		pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("querying channel messages: %w", err)
	}
	defer rows.Close()

	var msgs []gamedb.Message
	for rows.Next() {
		var (
			msg      gamedb.Message
			senderID int64
			channels string
			sent     int64
		)
		if err := rows.Scan(&msg.ID, &senderID, &channels, &msg.Body, &sent); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.Sender = gamedb.DBRef(senderID)
		if channels != "" {
			msg.Channels = strings.Split(channels, ",")
		}
		msg.Sent = time.Unix(sent, 0)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	// Filter exact channel membership; LIKE can over-match on substrings.
	lower := strings.ToLower(channel)
	var out []gamedb.Message
	for _, msg := range msgs {
		for _, ch := range msg.Channels {
			if strings.ToLower(ch) == lower {
				out = append(out, msg)
				break
			}
		}
	}
	return out, nil
}
