// Package indexdb keeps a queryable sqlite index of viewer sessions and the
// outcome of every received frame. Writes are asynchronous and dropped when
// the writer falls behind; recordings remain the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Frame outcomes stored in frames.outcome.
const (
	OutcomeAccepted    = "accepted"
	OutcomeStale       = "stale"
	OutcomeDecodeError = "decode_error"
)

type Session struct {
	ID        string
	Remote    string
	StartedAt time.Time
}

type Frame struct {
	SessionID  string
	FrameID    uint64
	Outcome    string
	Primitives int
	Skipped    int
	AtlasBytes int64
	Bytes      int
	ReceivedAt time.Time
}

type Stats struct {
	QueueDepth          int
	QueueCapacity       int
	DropSessionTotal    uint64
	DropFrameTotal      uint64
	DropSessionEndTotal uint64
}

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSession    atomic.Uint64
	dropFrame      atomic.Uint64
	dropSessionEnd atomic.Uint64
}

type reqKind int

const (
	reqSession reqKind = iota + 1
	reqSessionEnd
	reqFrame
)

type req struct {
	kind reqKind

	session Session
	endID   string
	endAt   time.Time
	frame   Frame
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Sized for several seconds of 60 fps frames while a commit is in flight.
		ch: make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			remote TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS frames (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			frame_id INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			primitives INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			atlas_bytes INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			received_at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_outcome ON frames(outcome, session_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued writes and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(s.ch),
		QueueCapacity:       cap(s.ch),
		DropSessionTotal:    s.dropSession.Load(),
		DropFrameTotal:      s.dropFrame.Load(),
		DropSessionEndTotal: s.dropSessionEnd.Load(),
	}
}

func (s *SQLiteIndex) RecordSession(sess Session) {
	if s == nil || s.closed.Load() || sess.ID == "" {
		return
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	select {
	case s.ch <- req{kind: reqSession, session: sess}:
	default:
		s.dropSession.Add(1)
	}
}

func (s *SQLiteIndex) EndSession(id string, at time.Time) {
	if s == nil || s.closed.Load() || id == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqSessionEnd, endID: id, endAt: at}:
	default:
		s.dropSessionEnd.Add(1)
	}
}

func (s *SQLiteIndex) RecordFrame(f Frame) {
	if s == nil || s.closed.Load() {
		return
	}
	if f.ReceivedAt.IsZero() {
		f.ReceivedAt = time.Now()
	}
	select {
	case s.ch <- req{kind: reqFrame, frame: f}:
	default:
		s.dropFrame.Add(1)
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSession, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(id,remote,started_at) VALUES(?,?,?)`)
	endSession, _ := s.db.Prepare(`UPDATE sessions SET ended_at=? WHERE id=?`)
	insertFrame, _ := s.db.Prepare(`INSERT OR REPLACE INTO frames(session_id,seq,frame_id,outcome,primitives,skipped,atlas_bytes,bytes,received_at) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertSession, endSession, insertFrame} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = 2 * time.Second

		// Frame ids can repeat within a session (stale frames), so rows are
		// keyed by arrival order instead.
		seqBySession = map[string]int64{}
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		var err error
		switch r.kind {
		case reqSession:
			if insertSession != nil {
				_, err = tx.Stmt(insertSession).Exec(r.session.ID, r.session.Remote, formatTime(r.session.StartedAt))
			}
		case reqSessionEnd:
			if endSession != nil {
				_, err = tx.Stmt(endSession).Exec(formatTime(r.endAt), r.endID)
			}
			delete(seqBySession, r.endID)
		case reqFrame:
			f := r.frame
			seq := seqBySession[f.SessionID]
			seqBySession[f.SessionID] = seq + 1
			if insertFrame != nil {
				_, err = tx.Stmt(insertFrame).Exec(
					f.SessionID,
					seq,
					int64(f.FrameID),
					f.Outcome,
					f.Primitives,
					f.Skipped,
					f.AtlasBytes,
					f.Bytes,
					formatTime(f.ReceivedAt),
				)
			}
		}
		if err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
