// Package sink persists broadcast barrages so they survive the session.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/barrage-hub/internal/core"
)

// Entry is one persisted barrage row.
type Entry struct {
	MsgID       int64
	Ts          time.Time
	Type        core.MsgType
	RoomID      int64
	WebRoomID   int64
	Username    string
	Content     string
	PayloadJSON string
}

// Writer accepts barrage entries for persistence.
type Writer interface {
	Write(Entry) error
}

const schema = `CREATE TABLE IF NOT EXISTS barrages (
  msg_id INTEGER NOT NULL,
  ts TEXT NOT NULL,
  type INTEGER NOT NULL,
  room_id INTEGER NOT NULL,
  web_room_id INTEGER NOT NULL DEFAULT 0,
  username TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  payload_json TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (room_id, msg_id, type)
);`

type SQLiteSink struct {
	db *sql.DB
}

const defaultRecentLimit = 100

func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	ApplySQLitePragmas(context.Background(), db)
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) Write(e Entry) error {
	const q = `INSERT INTO barrages (msg_id, ts, type, room_id, web_room_id, username, content, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(room_id, msg_id, type) DO NOTHING;`
	ts := e.Ts.UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(q, e.MsgID, ts, int(e.Type), e.RoomID, e.WebRoomID, e.Username, e.Content, e.PayloadJSON)
	return errors.Wrap(err, "insert barrage")
}

func (s *SQLiteSink) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteSink) String() string {
	return fmt.Sprintf("SQLiteSink{%p}", s.db)
}

// Count reports the stored row count, optionally scoped to one room.
// roomID 0 means all rooms.
func (s *SQLiteSink) Count(ctx context.Context, roomID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM barrages`
	var args []any
	if roomID != 0 {
		query += ` WHERE room_id = ?`
		args = append(args, roomID)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query+";", args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

// Recent returns the newest entries, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	const q = `SELECT msg_id, ts, type, room_id, web_room_id, username, content, payload_json
FROM barrages ORDER BY ts DESC LIMIT ?;`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list barrages")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ts string
			mt int
		)
		if err := rows.Scan(&e.MsgID, &ts, &mt, &e.RoomID, &e.WebRoomID, &e.Username, &e.Content, &e.PayloadJSON); err != nil {
			return nil, errors.Wrap(err, "scan barrage")
		}
		e.Type = core.MsgType(mt)
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Ts = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate barrages")
	}
	return out, nil
}
