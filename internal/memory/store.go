// Package memory keeps facts the bot has picked up from chat, per Discord user,
// in an embedded badger database so they survive restarts.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"homestock/internal/intent"
	"homestock/internal/logging"
	"homestock/internal/metrics"
)

// Key prefixes
const (
	factKeyPrefix = "fact/"
	seenKeyPrefix = "seen/"
)

// DefaultRecallLimit is used when Recall is asked for zero or fewer facts
const DefaultRecallLimit = 10

// Record is a stored fact
type Record struct {
	Category  intent.Category `json:"category"`
	Text      string          `json:"text"`
	ChannelID string          `json:"channelId,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store is a badger-backed fact store
type Store struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time
}

// Options configures Open
type Options struct {
	// Path is the badger directory. Empty keeps everything in memory.
	Path string
	// TTL expires facts after the given age. Zero keeps them forever.
	TTL time.Duration
}

func Open(opts Options) (*Store, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return &Store{db: db, ttl: opts.TTL, now: time.Now}, nil
}

func userPrefix(base, discordID string) []byte {
	return []byte(base + discordID + "/")
}

func factKey(discordID string, at time.Time, digest string) []byte {
	// Zero-padded nanos keep keys for one user in chronological order
	return []byte(fmt.Sprintf("%s%s/%020d/%s", factKeyPrefix, discordID, at.UnixNano(), digest[:8]))
}

func seenKey(discordID, digest string) []byte {
	return []byte(seenKeyPrefix + discordID + "/" + digest)
}

func digestOf(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))
	return hex.EncodeToString(sum[:])
}

// Remember stores facts for a user. Facts already stored for that user (same text,
// ignoring case and spacing) are skipped. It returns how many were written.
func (s *Store) Remember(ctx context.Context, discordID, channelID string, facts []intent.Fact) (int, error) {
	if discordID == "" {
		return 0, errors.New("discord id is required")
	}
	if len(facts) == 0 {
		return 0, nil
	}

	stored := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		now := s.now().UTC()
		for i, fact := range facts {
			digest := digestOf(fact.Text)
			_, err := txn.Get(seenKey(discordID, digest))
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to check fact: %w", err)
			}

			data, err := json.Marshal(Record{
				Category:  fact.Category,
				Text:      fact.Text,
				ChannelID: channelID,
				CreatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("failed to marshal fact: %w", err)
			}

			at := now.Add(time.Duration(i))
			factEntry := badger.NewEntry(factKey(discordID, at, digest), data)
			seenEntry := badger.NewEntry(seenKey(discordID, digest), []byte{})
			if s.ttl > 0 {
				factEntry = factEntry.WithTTL(s.ttl)
				seenEntry = seenEntry.WithTTL(s.ttl)
			}
			if err := txn.SetEntry(factEntry); err != nil {
				return fmt.Errorf("failed to store fact: %w", err)
			}
			if err := txn.SetEntry(seenEntry); err != nil {
				return fmt.Errorf("failed to store fact index: %w", err)
			}
			stored++
			metrics.MemoryFactsStored.WithLabelValues(string(fact.Category)).Inc()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if stored > 0 {
		logging.Ctx(ctx).Debug().
			Str("discord_id", discordID).
			Int("facts", stored).
			Msg("Remembered facts")
	}
	return stored, nil
}

// Recall returns up to limit facts for a user, newest first
func (s *Store) Recall(ctx context.Context, discordID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}

	records := make([]Record, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := userPrefix(factKeyPrefix, discordID)
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(records) < limit; it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to read fact: %w", err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Forget removes every fact stored for a user and returns how many there were
func (s *Store) Forget(ctx context.Context, discordID string) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, prefix := range [][]byte{userPrefix(factKeyPrefix, discordID), userPrefix(seenKeyPrefix, discordID)} {
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list facts: %w", err)
	}

	removed := 0
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("failed to delete fact: %w", err)
		}
		if strings.HasPrefix(string(key), factKeyPrefix) {
			removed++
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to delete facts: %w", err)
	}

	logging.Ctx(ctx).Info().Str("discord_id", discordID).Int("facts", removed).Msg("Forgot facts")
	return removed, nil
}

// RunGC reclaims value-log space. It is a no-op for in-memory stores.
func (s *Store) RunGC() error {
	for {
		err := s.db.RunValueLogGC(0.5)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return fmt.Errorf("failed to run value log gc: %w", err)
		}
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}
