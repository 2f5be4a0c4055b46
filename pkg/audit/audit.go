// Package audit keeps a local record of every attestation attempt.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketAttestations = []byte("attestations")
	bucketIndex        = []byte("by_time")

	ErrNotFound = errors.New("audit record not found")
)

// Record is one attestation attempt. Signature and SignerIDs are empty when
// the attempt failed.
type Record struct {
	RequestID      string    `json:"request_id"`
	Time           time.Time `json:"time"`
	Input          string    `json:"input"`
	Value          int64     `json:"value"`
	Magnitude      uint64    `json:"magnitude"`
	IsIncrease     bool      `json:"is_increase"`
	SignerIDs      []int     `json:"signer_ids,omitempty"`
	Responded      []int     `json:"responded,omitempty"`
	Disagreed      []int     `json:"disagreed,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	GroupPublicKey string    `json:"group_public_key,omitempty"`
	TxID           string    `json:"tx_id,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Store is a bbolt-backed audit log.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketAttestations); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketIndex)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put stores rec, replacing any record with the same request id.
func (s *Store) Put(rec *Record) error {
	if rec.RequestID == "" {
		return errors.New("audit record without request id")
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		records, index := tx.Bucket(bucketAttestations), tx.Bucket(bucketIndex)
		if old := records.Get([]byte(rec.RequestID)); old != nil {
			var prev Record
			if err := json.Unmarshal(old, &prev); err == nil {
				if err := index.Delete(indexKey(&prev)); err != nil {
					return err
				}
			}
		}
		if err := records.Put([]byte(rec.RequestID), value); err != nil {
			return err
		}
		return index.Put(indexKey(rec), []byte(rec.RequestID))
	})
}

func (s *Store) Get(requestID string) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(bucketAttestations).Get([]byte(requestID))
		if value == nil {
			return ErrNotFound
		}
		return json.Unmarshal(value, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketAttestations)
		c := tx.Bucket(bucketIndex).Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			value := records.Get(id)
			if value == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(value, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}

// indexKey sorts by time, then request id.
func indexKey(rec *Record) []byte {
	return []byte(fmt.Sprintf("%020d/%s", rec.Time.UnixNano(), rec.RequestID))
}
