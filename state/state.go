/*
Package state persists each vehicle's last known sample in a bbolt database,
so a restarted web daemon can still answer last-known fetches.
*/
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/types/sample"
	"go.etcd.io/bbolt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	DB    *bbolt.DB
	rOnly bool
}

// Open opens (creating if needed) the state database in dir.
// Opening a writable DB conn will block all other writers and readers
// with essentially a file lock/flock, so Open gives up after a second.
func Open(dir string, readOnly bool) (*Store, error) {
	if !readOnly {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(dir, params.StateDBName), 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return &Store{DB: db, rOnly: readOnly}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) storeKV(bucket, key, data []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("storeKV: empty key")
	}
	if data == nil {
		return fmt.Errorf("storeKV: nil data")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *Store) readKV(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		// Gotcha! The value returned by Get is only valid in the scope of the transaction.
		if got := b.Get(key); got != nil {
			out = append([]byte{}, got...)
		}
		return nil
	})
	return out, err
}

// PutLast stores s as vehicle's last known sample.
func (s *Store) PutLast(vehicle conceptual.VehicleID, smp sample.Sample) error {
	b, err := json.Marshal(smp)
	if err != nil {
		return err
	}
	if err := s.storeKV(params.LastKnownBucket, []byte(vehicle), b); err != nil {
		slog.Error("Failed to store last sample", "vehicle", vehicle, "error", err)
		return err
	}
	return nil
}

// GetLast returns vehicle's last known sample, or ErrNotFound.
func (s *Store) GetLast(vehicle conceptual.VehicleID) (sample.Sample, error) {
	got, err := s.readKV(params.LastKnownBucket, []byte(vehicle))
	if err != nil {
		return sample.Sample{}, err
	}
	if got == nil {
		return sample.Sample{}, fmt.Errorf("%w: %s", ErrNotFound, vehicle)
	}
	smp, err := sample.Decode(got)
	if err != nil {
		return sample.Sample{}, fmt.Errorf("%w: %q", err, string(got))
	}
	return smp, nil
}

// EachLast calls fn for every stored vehicle, in key order.
// Undecodable entries are logged and skipped.
func (s *Store) EachLast(fn func(vehicle conceptual.VehicleID, smp sample.Sample) error) error {
	return s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(params.LastKnownBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			smp, err := sample.Decode(v)
			if err != nil {
				slog.Warn("Skipping stored sample", "vehicle", string(k), "error", err)
				return nil
			}
			return fn(conceptual.VehicleID(k), smp)
		})
	})
}
