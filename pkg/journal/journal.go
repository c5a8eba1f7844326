package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rzbill/localai/pkg/log"
)

// ErrNotFound is returned when no run matches an id.
var ErrNotFound = errors.New("run not found")

const runPrefix = "runs/"

// Record is one invocation of a stack command.
type Record struct {
	ID         string    `json:"id" yaml:"id"`
	Command    string    `json:"command" yaml:"command"`
	Profile    string    `json:"profile,omitempty" yaml:"profile,omitempty"`
	Components []string  `json:"components,omitempty" yaml:"components,omitempty"`
	State      string    `json:"state" yaml:"state"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// NewRecord starts a record for command with a fresh run id.
func NewRecord(command string, now time.Time) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Command:   command,
		StartedAt: now.UTC(),
	}
}

// Finish stamps the final state and error of the run.
func (r *Record) Finish(state string, err error, now time.Time) {
	r.State = state
	r.FinishedAt = now.UTC()
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration is the wall time of a finished run.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Journal keeps run records in a BadgerDB directory.
type Journal struct {
	db     *badger.DB
	path   string
	logger log.Logger
}

// NewJournal creates a journal. Call Open before use.
func NewJournal(logger log.Logger) *Journal {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Journal{logger: logger.WithComponent("journal")}
}

// Open opens or creates the database at path.
func (j *Journal) Open(path string) error {
	j.path = path

	opts := badger.DefaultOptions(path)
	opts.Logger = &badgerLogAdapter{logger: j.logger}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	j.db = db

	j.logger.Debug("Journal opened", log.Str("path", path))
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// makeKey orders records by start time; the id keeps keys unique.
func makeKey(r *Record) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, r.StartedAt.UnixNano(), r.ID))
}

// Put inserts or replaces a record.
func (j *Journal) Put(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		return fmt.Errorf("record has no id")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(r), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", r.ID, err)
	}

	j.logger.Debug("Run recorded", log.RunID(r.ID), log.Str("command", r.Command), log.Str("state", r.State))
	return nil
}

// Get returns the record with the given id. A unique id prefix is accepted.
func (j *Journal) Get(ctx context.Context, id string) (*Record, error) {
	var found []*Record
	err := j.scan(ctx, false, func(r *Record) bool {
		if strings.HasPrefix(r.ID, id) {
			found = append(found, r)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id %q is ambiguous (%d matches)", id, len(found))
	}
}

// List returns up to limit records, newest first. A limit of zero or less returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]*Record, error) {
	var records []*Record
	err := j.scan(ctx, true, func(r *Record) bool {
		records = append(records, r)
		return limit <= 0 || len(records) < limit
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (j *Journal) scan(ctx context.Context, newestFirst bool, fn func(*Record) bool) error {
	if j.db == nil {
		return fmt.Errorf("journal is not open")
	}

	prefix := []byte(runPrefix)

	return j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = newestFirst
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if newestFirst {
			seek = append(append([]byte{}, prefix...), 0xFF)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var r Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("failed to deserialize run: %w", err)
			}
			if !fn(&r) {
				return nil
			}
		}
		return nil
	})
}

// badgerLogAdapter adapts our logger to BadgerDB's printf-style logger.
type badgerLogAdapter struct {
	logger log.Logger
}

func (l *badgerLogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(badgerMessage(format, args))
}

func (l *badgerLogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(badgerMessage(format, args))
}

func (l *badgerLogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Debug(badgerMessage(format, args))
}

func (l *badgerLogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(badgerMessage(format, args))
}

func badgerMessage(format string, args []interface{}) string {
	return "BadgerDB: " + strings.TrimSpace(fmt.Sprintf(format, args...))
}
