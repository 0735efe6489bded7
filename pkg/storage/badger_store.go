package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/log"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/parse"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

const (
	sessionKeyPrefix = "session:"   // session:<id>
	resultKeyPrefix  = "result:"    // result:<domain>|<email>
	resultsDBDir     = "results_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements the ResultStore interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached key count for O(1) Count
}

// NewBadgerStore opens (or creates) the result database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	dbPath := filepath.Join(stateDir, resultsDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}
	logger.Infof("Opening result database at: %s", dbPath)

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing keys: %v", err)
	} else {
		store.keyCount.Store(int64(count))
	}
	logger.Infof("Result database ready (%d keys)", count)
	return store, nil
}

// countKeys performs a one-time full key scan (used only during initialization)
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func resultKey(domain, email string) []byte {
	return []byte(resultKeyPrefix + domain + "|" + email)
}

func resultPrefix(domain string) []byte {
	return []byte(resultKeyPrefix + domain + "|")
}

// SaveSession implements the ResultStore interface
func (s *BadgerStore) SaveSession(session *models.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session without ID", utils.ErrDatabase)
	}
	key := []byte(sessionKeyPrefix + session.ID)
	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal session '%s' JSON: %w", utils.ErrParsing, session.ID, err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in SaveSession: %v", err)
		return fmt.Errorf("%w: saving session '%s': %w", utils.ErrDatabase, session.ID, err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// GetSession implements the ResultStore interface
func (s *BadgerStore) GetSession(id string) (*models.Session, error) {
	var session *models.Session
	key := []byte(sessionKeyPrefix + id)
	err := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting session key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.Session
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				return fmt.Errorf("%w: decoding session '%s' JSON: %w", utils.ErrParsing, id, errJson)
			}
			session = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions implements the ResultStore interface
func (s *BadgerStore) ListSessions(domain string) ([]models.Session, error) {
	domain = parse.BareDomain(domain)
	var sessions []models.Session
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			errValue := it.Item().Value(func(val []byte) error {
				var decoded models.Session
				if errJson := json.Unmarshal(val, &decoded); errJson != nil {
					s.log.Warnf("Skipping undecodable session '%s': %v", string(it.Item().Key()), errJson)
					return nil
				}
				if domain == "" || decoded.Domain == domain {
					sessions = append(sessions, decoded)
				}
				return nil
			})
			if errValue != nil {
				return fmt.Errorf("%w: reading session value: %w", utils.ErrDatabase, errValue)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	return sessions, nil
}

// UpsertResults implements the ResultStore interface
func (s *BadgerStore) UpsertResults(domain, sessionID string, records []models.Record, at time.Time) (int, int, error) {
	domain = parse.BareDomain(domain)
	added, updated := 0, 0

	err := s.dbUpdate(func(txn *badger.Txn) error {
		added, updated = 0, 0 // Reset on conflict retry
		for _, rec := range records {
			key := resultKey(domain, strings.ToLower(rec.Email))
			entry := models.ResultDBEntry{Record: rec, SessionID: sessionID, FirstSeen: at, LastSeen: at, SeenCount: 1}

			item, errGet := txn.Get(key)
			switch {
			case errors.Is(errGet, badger.ErrKeyNotFound):
				added++
			case errGet != nil:
				return errGet
			default:
				var prev models.ResultDBEntry
				errValue := item.Value(func(val []byte) error { return json.Unmarshal(val, &prev) })
				if errValue == nil {
					entry.FirstSeen = prev.FirstSeen
					entry.SeenCount = prev.SeenCount + 1
				} else {
					s.log.Warnf("Replacing undecodable result '%s': %v", string(key), errValue)
				}
				updated++
			}

			value, errJson := json.Marshal(entry)
			if errJson != nil {
				return fmt.Errorf("%w: encoding result JSON: %w", utils.ErrParsing, errJson)
			}
			if errSet := txn.SetEntry(badger.NewEntry(key, value)); errSet != nil {
				return errSet
			}
		}
		return nil
	})
	if err != nil {
		s.log.WithField("domain", domain).Errorf("DB Update error in UpsertResults: %v", err)
		return 0, 0, fmt.Errorf("%w: upserting %d results for '%s': %w", utils.ErrDatabase, len(records), domain, err)
	}
	s.keyCount.Add(int64(added))
	s.log.WithFields(logrus.Fields{"domain": domain, "added": added, "updated": updated}).Debug("Results stored")
	return added, updated, nil
}

// ListResults implements the ResultStore interface
func (s *BadgerStore) ListResults(domain string) ([]models.ResultDBEntry, error) {
	prefix := resultPrefix(parse.BareDomain(domain))
	var entries []models.ResultDBEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			errValue := it.Item().Value(func(val []byte) error {
				var entry models.ResultDBEntry
				if errJson := json.Unmarshal(val, &entry); errJson != nil {
					s.log.Warnf("Skipping undecodable result '%s': %v", string(it.Item().Key()), errJson)
					return nil
				}
				entries = append(entries, entry)
				return nil
			})
			if errValue != nil {
				return fmt.Errorf("%w: reading result value: %w", utils.ErrDatabase, errValue)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys sort by email already; keep the guarantee explicit for callers
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
	return entries, nil
}

// Count implements the ResultStore interface
func (s *BadgerStore) Count() int {
	return int(s.keyCount.Load())
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				// Rewrite while at least half of a value log file is reclaimable
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements the ResultStore interface
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing result DB: %v", err)
		return fmt.Errorf("%w: closing: %w", utils.ErrDatabase, err)
	}
	s.log.Info("Result DB closed.")
	return nil
}
