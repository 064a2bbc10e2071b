// Package rundb is the inspection-only run ledger: a bbolt database
// recording one record per completed host run, keyed by host and UUID. The
// driver never reads it back; it exists purely for operator inspection.
package rundb

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	bolt "go.etcd.io/bbolt"
)

// HostRunRecord is one entry in the ledger.
type HostRunRecord struct {
	UUID                string    `json:"uuid"`
	Host                string    `json:"host"`
	Status              string    `json:"status"` // "running" | "success" | "failed"
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	ObjectCount         int       `json:"object_count"`
	ManifestFingerprint string    `json:"manifest_fingerprint"`
}

// DB wraps a bbolt database, one bucket per host.
type DB struct {
	db *bolt.DB
}

// Open opens or creates the ledger at path (0600 permissions, matching the
// cache directory's private ownership).
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("rundb: opening %s: %w", path, err)
	}
	return &DB{db: bdb}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Record writes rec into host's bucket, keyed by rec.UUID. The bucket is
// created on first use.
func (d *DB) Record(rec HostRunRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("rundb: encoding record: %w", err)
	}

	return d.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(rec.Host))
		if err != nil {
			return fmt.Errorf("rundb: creating bucket for %s: %w", rec.Host, err)
		}
		return bucket.Put([]byte(rec.UUID), payload)
	})
}

// History returns every record for host, most recent first, truncated to
// limit entries (0 means unlimited).
func (d *DB) History(host string, limit int) ([]HostRunRecord, error) {
	var records []HostRunRecord

	err := d.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(host))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, value []byte) error {
			var rec HostRunRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("rundb: decoding record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortByStartTimeDesc(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func sortByStartTimeDesc(records []HostRunRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].StartTime.After(records[j-1].StartTime); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

// NewRecord starts a "running" record with a fresh UUID and the manifest's
// blake3 fingerprint.
func NewRecord(host string, manifestBody []byte) HostRunRecord {
	h := blake3.New()
	h.Write(manifestBody)

	return HostRunRecord{
		UUID:                uuid.NewString(),
		Host:                host,
		Status:              "running",
		StartTime:           time.Now(),
		ManifestFingerprint: hex.EncodeToString(h.Sum(nil)),
	}
}
