// Package bolt keeps instance snapshots and registry entries in a local
// bbolt file, so a simulation can be resumed or inspected without Postgres.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"

	"liquidityVault/internal/model"
	"liquidityVault/internal/storage"
)

var (
	bucketLatest   = []byte("snapshots")
	bucketHistory  = []byte("snapshot_history")
	bucketRegistry = []byte("registry")
)

// ErrNotFound is returned when no snapshot exists for an instance.
var ErrNotFound = errors.New("bolt: not found")

// Store wraps a bbolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.SnapshotWriter = (*Store)(nil)

// Open opens or creates the database at path, creating its directory.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketLatest, bucketHistory, bucketRegistry} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// historyKey orders snapshots of one instance by time.
func historyKey(vault common.Address, ts int64) []byte {
	k := make([]byte, common.AddressLength+8)
	copy(k, vault.Bytes())
	binary.BigEndian.PutUint64(k[common.AddressLength:], uint64(ts))
	return k
}

// PutSnapshots stores each snapshot as the instance's latest and appends it
// to its history.
func (s *Store) PutSnapshots(ctx context.Context, snaps []model.VaultSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		latest, history := tx.Bucket(bucketLatest), tx.Bucket(bucketHistory)
		for _, snap := range snaps {
			if !common.IsHexAddress(snap.Vault) {
				return fmt.Errorf("bolt: invalid vault address %q", snap.Vault)
			}
			addr := common.HexToAddress(snap.Vault)
			data, err := json.Marshal(snap)
			if err != nil {
				return fmt.Errorf("bolt: encode snapshot: %w", err)
			}
			if err := latest.Put(addr.Bytes(), data); err != nil {
				return fmt.Errorf("bolt: put snapshot: %w", err)
			}
			if err := history.Put(historyKey(addr, snap.Timestamp), data); err != nil {
				return fmt.Errorf("bolt: put snapshot history: %w", err)
			}
		}
		return nil
	})
}

// Latest returns the most recently stored snapshot of vault.
func (s *Store) Latest(vault common.Address) (model.VaultSnapshot, error) {
	var snap model.VaultSnapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketLatest).Get(vault.Bytes())
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &snap)
	})
	return snap, err
}

// History returns every stored snapshot of vault, oldest first.
func (s *Store) History(vault common.Address) ([]model.VaultSnapshot, error) {
	var out []model.VaultSnapshot
	prefix := vault.Bytes()
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketHistory).Cursor()
		for k, v := c.Seek(prefix); k != nil && len(k) == len(prefix)+8 && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
			var snap model.VaultSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("bolt: decode snapshot: %w", err)
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

// PutRegistryEntries replaces the stored registry entries.
func (s *Store) PutRegistryEntries(entries []model.RegistryEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketRegistry); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("bolt: clear registry: %w", err)
		}
		b, err := tx.CreateBucket(bucketRegistry)
		if err != nil {
			return fmt.Errorf("bolt: create registry bucket: %w", err)
		}
		for i, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("bolt: encode registry entry: %w", err)
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, uint64(i))
			if err := b.Put(key, data); err != nil {
				return fmt.Errorf("bolt: put registry entry: %w", err)
			}
		}
		return nil
	})
}

// RegistryEntries returns the stored registry entries in deployment order.
func (s *Store) RegistryEntries() ([]model.RegistryEntry, error) {
	var out []model.RegistryEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRegistry).ForEach(func(_, v []byte) error {
			var e model.RegistryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("bolt: decode registry entry: %w", err)
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}
