package filter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/models"
)

// BadgerConfig holds the embedded store settings.
type BadgerConfig struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM, for tests.
	InMemory bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration
}

// BadgerStore keeps one key per design under a tenant prefix. Keys carry
// the design's position so a prefix scan returns them in exchange order.
//
// Badger holds an exclusive lock on its directory, so serialising updates
// in-process is enough to make read-modify-write atomic.
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Logger
	mu  sync.Mutex
}

// OpenBadger opens (creating if needed) an embedded filter store.
func OpenBadger(cfg BadgerConfig, log *logrus.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}

		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating badger directory %s: %w", cfg.Path, err)
		}

		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}

	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}

	return &BadgerStore{db: db, log: log}, nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunGC reclaims value log space every interval until ctx is done.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rewritten := 0
			for s.db.RunValueLogGC(0.5) == nil {
				rewritten++
			}

			if rewritten > 0 {
				s.log.WithField("files", rewritten).Debug("badger value log GC")
			}
		}
	}
}

func tenantPrefix(tenantID string) []byte {
	return []byte("filter/" + tenantID + "/")
}

// Load returns the tenant's designs.
func (s *BadgerStore) Load(_ context.Context, tenantID string) ([]models.FilterDesign, error) {
	var out []models.FilterDesign

	err := s.db.View(func(txn *badger.Txn) error {
		designs, _, err := scanTenant(txn, tenantID)
		out = designs
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading filters: %w", err)
	}

	return out, nil
}

// Update rewrites the tenant's designs inside one badger transaction.
func (s *BadgerStore) Update(
	_ context.Context,
	tenantID string,
	fn func([]models.FilterDesign) []models.FilterDesign,
) ([]models.FilterDesign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []models.FilterDesign

	err := s.db.Update(func(txn *badger.Txn) error {
		current, keys, err := scanTenant(txn, tenantID)
		if err != nil {
			return err
		}

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("deleting %s: %w", k, err)
			}
		}

		next = fn(current)
		for i := range next {
			val, err := json.Marshal(&next[i])
			if err != nil {
				return fmt.Errorf("encoding filter: %w", err)
			}

			key := fmt.Appendf(tenantPrefix(tenantID), "%06d", i)
			if err := txn.Set(key, val); err != nil {
				return fmt.Errorf("writing %s: %w", key, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating filters: %w", err)
	}

	return next, nil
}

func scanTenant(txn *badger.Txn, tenantID string) ([]models.FilterDesign, [][]byte, error) {
	prefix := tenantPrefix(tenantID)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var (
		designs []models.FilterDesign
		keys    [][]byte
	)

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()

		var d models.FilterDesign
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		}); err != nil {
			return nil, nil, fmt.Errorf("decoding %s: %w", item.Key(), err)
		}

		designs = append(designs, d)
		keys = append(keys, item.KeyCopy(nil))
	}

	return designs, keys, nil
}

// badgerLogger routes badger's internal logging through logrus at debug.
type badgerLogger struct {
	log *logrus.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Errorf("badger: "+format, args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warnf("badger: "+format, args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debugf("badger: "+format, args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debugf("badger: "+format, args...)
}
