package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"
	"github.com/lintang-b-s/songmap/pkg/datastructure"
	"github.com/lintang-b-s/songmap/pkg/util"
)

var (
	ErrCoordinateNotFound = errors.New("pca coordinate not found")
	ErrInvalidCoordinate  = errors.New("pca coordinate out of [0, 1]")
	ErrContextCancelled   = errors.New("context cancelled")
)

const (
	batchSize = 1000
)

// KVDB stores the projected coordinate of every track, one key per track.
type KVDB struct {
	db  *badger.DB
	log logr.Logger
}

func NewKVDB(db *badger.DB, log logr.Logger) *KVDB {
	return &KVDB{db: db, log: log}
}

// OpenKVDB opens (or creates) the badger database in dir.
func OpenKVDB(dir string, log logr.Logger) (*KVDB, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger db %s: %w", dir, err)
	}
	return NewKVDB(db, log), nil
}

// InsertPcaCoordinates stores entries, overwriting existing tracks. nothing is written if any entry is invalid.
func (k *KVDB) InsertPcaCoordinates(ctx context.Context, entries []datastructure.PcaCoordinate) error {
	for _, e := range entries {
		if !e.Valid() {
			return fmt.Errorf("%w: track %d (%v, %v)", ErrInvalidCoordinate, e.ID, e.X, e.Y)
		}
	}

	k.log.V(1).Info("saving pca coordinates", "count", len(entries))
	for start := 0; start < len(entries); start += batchSize {
		select {
		case <-ctx.Done():
			return ErrContextCancelled
		default:
		}

		end := min(start+batchSize, len(entries))
		if err := k.saveBatch(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	k.log.Info("saving pca coordinates done", "count", len(entries))
	return nil
}

func (k *KVDB) saveBatch(ctx context.Context, entries []datastructure.PcaCoordinate) error {
	batch := k.db.NewWriteBatch()
	defer batch.Cancel()

	for _, e := range entries {
		select {
		case <-ctx.Done():
			return ErrContextCancelled
		default:
		}

		val, err := encodeCoordinate(e)
		if err != nil {
			return fmt.Errorf("encode track %d: %w", e.ID, err)
		}
		if err := batch.Set(pcaKey(e.ID), val); err != nil {
			return err
		}
	}

	if err := batch.Flush(); err != nil {
		k.log.Error(err, "error saving pca coordinates")
		return err
	}
	return nil
}

func (k *KVDB) get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (k *KVDB) GetPcaCoordinate(id int) (datastructure.PcaCoordinate, error) {
	val, err := k.get(pcaKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datastructure.PcaCoordinate{}, fmt.Errorf("%w: track %d", ErrCoordinateNotFound, id)
	}
	if err != nil {
		return datastructure.PcaCoordinate{}, err
	}
	return decodeCoordinate(val)
}

// GetPcaCoordinates returns every stored coordinate ordered by track id.
func (k *KVDB) GetPcaCoordinates(ctx context.Context) ([]datastructure.PcaCoordinate, error) {
	coords := make([]datastructure.PcaCoordinate, 0)
	prefix := []byte(pcaPrefix)

	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ErrContextCancelled
			default:
			}

			err := it.Item().Value(func(val []byte) error {
				c, err := decodeCoordinate(val)
				if err != nil {
					return err
				}
				coords = append(coords, c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return util.QuickSortG(coords, func(a, b datastructure.PcaCoordinate) int {
		return util.CompareInt(a.ID, b.ID)
	}), nil
}

func (k *KVDB) ContainsInfoForTrack(id int) (bool, error) {
	_, err := k.get(pcaKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (k *KVDB) RemovePcaDataForTrack(id int) error {
	return k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pcaKey(id))
	})
}

// GetPcaDataCount number of stored tracks.
func (k *KVDB) GetPcaDataCount() (int, error) {
	count := 0
	prefix := []byte(pcaPrefix)

	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ClearPcaData removes every stored coordinate.
func (k *KVDB) ClearPcaData() error {
	keys := make([][]byte, 0)
	prefix := []byte(pcaPrefix)
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	batch := k.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	if err := batch.Flush(); err != nil {
		return fmt.Errorf("clear pca data: %w", err)
	}
	k.log.Info("pca data cleared", "count", len(keys))
	return nil
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
