package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/relayctl/pkg/message"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Index stores the metadata of every message the bot has observed, keyed
// by chat and message ID. It lets a replay classify past messages without
// re-downloading them.
type Index struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the index at path. An empty path or
// ":memory:" keeps it in memory for the lifetime of the process.
func Open(ctx context.Context, path string, busyTimeout int) (*Index, error) {
	inMemory := path == "" || path == memoryPath
	if inMemory {
		path = memoryPath
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db, now: time.Now}, nil
}

// Close releases the database.
func (x *Index) Close() error { return x.db.Close() }

// Ping checks the database connection.
func (x *Index) Ping(ctx context.Context) error { return x.db.PingContext(ctx) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Record stores msg, replacing an earlier entry for the same message
// (edited messages are observed again).
func (x *Index) Record(ctx context.Context, msg *message.Message) error {
	if msg == nil || msg.ID == 0 {
		return nil
	}

	var docMIME, docName string
	if msg.Document != nil {
		docMIME, docName = msg.Document.MIMEType, msg.Document.FileName
	}
	var sentAt int64
	if !msg.Date.IsZero() {
		sentAt = msg.Date.Unix()
	}

	_, err := x.db.ExecContext(ctx, `
		INSERT INTO observed_messages
			(chat_id, message_id, thread_id, sender_id, sent_at, text, video, photo, audio, has_doc, doc_mime, doc_name, other, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, message_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			sender_id = excluded.sender_id,
			sent_at = excluded.sent_at,
			text = excluded.text,
			video = excluded.video,
			photo = excluded.photo,
			audio = excluded.audio,
			has_doc = excluded.has_doc,
			doc_mime = excluded.doc_mime,
			doc_name = excluded.doc_name,
			other = excluded.other,
			observed_at = excluded.observed_at`,
		msg.ChatID, msg.ID, msg.ThreadID, msg.SenderID, sentAt, msg.Text,
		boolInt(msg.Video), boolInt(msg.Photo), boolInt(msg.Audio),
		boolInt(msg.Document != nil), docMIME, docName, boolInt(msg.Other),
		x.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: record %d/%d: %w", msg.ChatID, msg.ID, err)
	}
	return nil
}

// Lookup returns the stored message, or ok=false when it was never observed.
func (x *Index) Lookup(ctx context.Context, chatID int64, id int) (*message.Message, bool, error) {
	var (
		msg                        = &message.Message{ChatID: chatID, ID: id}
		sentAt                     int64
		video, photo, audio, other int
		hasDoc                     int
		docMIME, docName           string
	)
	err := x.db.QueryRowContext(ctx, `
		SELECT thread_id, sender_id, sent_at, text, video, photo, audio, has_doc, doc_mime, doc_name, other
		FROM observed_messages WHERE chat_id = ? AND message_id = ?`, chatID, id,
	).Scan(&msg.ThreadID, &msg.SenderID, &sentAt, &msg.Text, &video, &photo, &audio, &hasDoc, &docMIME, &docName, &other)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: lookup %d/%d: %w", chatID, id, err)
	}

	if sentAt > 0 {
		msg.Date = time.Unix(sentAt, 0).UTC()
	}
	msg.Video = video != 0
	msg.Photo = photo != 0
	msg.Audio = audio != 0
	msg.Other = other != 0
	if hasDoc != 0 {
		msg.Document = &message.Document{MIMEType: docMIME, FileName: docName}
	}
	return msg, true, nil
}

// Prune deletes entries observed before cutoff and returns how many.
func (x *Index) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := x.db.ExecContext(ctx, "DELETE FROM observed_messages WHERE observed_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune: %w", err)
	}
	return res.RowsAffected()
}

// Len returns the number of stored entries.
func (x *Index) Len(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT count(*) FROM observed_messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}
