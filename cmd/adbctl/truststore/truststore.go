// Package truststore persists which device fingerprints have completed
// pairing. "adbctl pair" writes an entry after each successful pairing; it
// does not consult the store beforehand, so --code is still required on
// every run. It lives in
// cmd/ rather than adb/keystore because the core connection library reads
// no environment variables and touches no files; only the CLI needs
// durable state.
package truststore

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/pebble"
)

// Entry is one trusted device, keyed by the fingerprint adb/keystore
// derives from its adbd-encoded public key.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	PublicKey   []byte    `json:"public_key"`
	Label       string    `json:"label"`
	PairedAt    time.Time `json:"paired_at"`
}

// Store wraps a pebble database of fingerprint -> Entry.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) the pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pebble database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put records or updates a trusted device.
func (s *Store) Put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(e.Fingerprint), data, pebble.Sync)
}

// Get looks up a device by fingerprint. ok is false if no entry exists.
func (s *Store) Get(fingerprint string) (entry Entry, ok bool, err error) {
	data, closer, err := s.db.Get([]byte(fingerprint))
	if err == pebble.ErrNotFound {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Delete forgets a previously paired device.
func (s *Store) Delete(fingerprint string) error {
	return s.db.Delete([]byte(fingerprint), pebble.Sync)
}

// List returns every trusted device, sorted by fingerprint (pebble's
// natural iteration order for byte keys).
func (s *Store) List() ([]Entry, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var entries []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, iter.Error()
}
