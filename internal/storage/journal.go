package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	requestsBucket = "requests"
	defaultKeep    = 1000
	defaultTimeout = time.Second
	dbFileMode     = 0600
)

// Entry is one served request as recorded in the journal.
type Entry struct {
	ID       string        `json:"id"`
	Time     time.Time     `json:"time"`
	Peer     string        `json:"peer"`
	Command  string        `json:"command"`
	Args     []string      `json:"args,omitempty"`
	OK       bool          `json:"ok"`
	Bytes    int64         `json:"bytes"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Recorder is what the server needs from a journal.
type Recorder interface {
	Append(e *Entry) error
}

// JournalConfig holds configuration for Journal initialization
type JournalConfig struct {
	DBPath  string
	Keep    int
	Timeout time.Duration
	Logger  *zap.Logger
}

// Journal is an append-only log of served requests kept in a bbolt file.
//
// The database is opened for the duration of each call only, so another
// process (rfsd history) can read it while the daemon is running.
type Journal struct {
	path    string
	keep    int
	timeout time.Duration
	logger  *zap.Logger
}

// NewJournal prepares the journal file and its bucket.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	keep := cfg.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{path: cfg.DBPath, keep: keep, timeout: timeout, logger: logger}
	err := j.update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(requestsBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Debug("Journal initialized",
		zap.String("db_path", cfg.DBPath),
		zap.Int("keep", keep))
	return j, nil
}

// Path returns the journal's database file.
func (j *Journal) Path() string { return j.path }

func (j *Journal) open(readOnly bool) (*bbolt.DB, error) {
	db, err := bbolt.Open(j.path, dbFileMode, &bbolt.Options{Timeout: j.timeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	return db, nil
}

func (j *Journal) update(fn func(*bbolt.Tx) error) error {
	db, err := j.open(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (j *Journal) view(fn func(*bbolt.Tx) error) error {
	db, err := j.open(true)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

// Append stores e, assigning an ID and timestamp when missing, then trims
// the journal back to its configured size.
func (j *Journal) Append(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	encoded, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	return j.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(requestsBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", requestsBucket)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(seqKey(seq), encoded); err != nil {
			return err
		}
		return trim(b, j.keep)
	})
}

// List returns up to limit entries, newest first. A limit of 0 returns all.
func (j *Journal) List(limit int) ([]*Entry, error) {
	var entries []*Entry
	err := j.view(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(requestsBucket))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				j.logger.Warn("Skipping unreadable journal entry",
					zap.Uint64("seq", binary.BigEndian.Uint64(k)),
					zap.Error(err))
				continue
			}
			entries = append(entries, &e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.view(func(tx *bbolt.Tx) error {
		if b := tx.Bucket([]byte(requestsBucket)); b != nil {
			n = countKeys(b)
		}
		return nil
	})
	return n, err
}

// Prune keeps only the newest keep entries.
func (j *Journal) Prune(keep int) error {
	return j.update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(requestsBucket))
		if b == nil {
			return nil
		}
		return trim(b, keep)
	})
}

// trim deletes the oldest keys of b until at most keep remain.
func trim(b *bbolt.Bucket, keep int) error {
	if keep < 0 {
		keep = 0
	}
	excess := countKeys(b) - keep
	if excess <= 0 {
		return nil
	}
	c := b.Cursor()
	var stale [][]byte
	for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func countKeys(b *bbolt.Bucket) int {
	var n int
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}
