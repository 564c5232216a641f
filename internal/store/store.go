// Package store provides a thin bbolt wrapper for dailywx's local data store.
//
// The store is an explicit accumulator, not a transparent HTTP cache. Raw
// CDO pulls are written by 'fetch --store', daily tables and run records by
// 'clean --store' and 'analyze --store'. Nothing expires; you own your data.
//
// Buckets:
//
//	raw      pivoted raw records keyed by station and date range
//	tables   persisted daily tables keyed by run ID
//	runs     run metadata keyed by run ID
//	_meta    internal: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/pipeline"
	"github.com/derickschaefer/dailywx/internal/tabular"
	"github.com/derickschaefer/dailywx/internal/util"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketRaw      = []byte("raw")
	bucketTables   = []byte("tables")
	bucketRuns     = []byte("runs")
	bucketInternal = []byte("_meta")
)

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"raw", "tables", "runs"}

// Store wraps a bbolt database.
type Store struct {
	db    *bolt.DB
	path  string
	clock clockwork.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	s := &Store{path: path, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(s)
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	if err := s.migrate(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

func (s *Store) open() error {
	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return fmt.Errorf("opening db %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRaw, bucketTables, bucketRuns, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(s.now().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// Info returns the internal metadata entries (schema_version, created_at).
func (s *Store) Info() (map[string]string, error) {
	info := map[string]string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInternal).ForEach(func(k, v []byte) error {
			info[string(k)] = string(v)
			return nil
		})
	})
	return info, err
}

// ─── Raw Records ──────────────────────────────────────────────────────────────

// RawKey builds the canonical key for a raw entry.
// Format: station:<ID>|start:<date>|end:<date>. Empty dates are omitted.
func RawKey(station, start, end string) string {
	key := "station:" + station
	if start != "" {
		key += "|start:" + start
	}
	if end != "" {
		key += "|end:" + end
	}
	return key
}

// RawEntry is the on-disk envelope for one raw pull.
type RawEntry struct {
	Key       string            `json:"key"`
	Station   string            `json:"station"`
	FetchedAt time.Time         `json:"fetched_at"`
	Records   []model.RawRecord `json:"records"`
}

// PutRaw stores raw records under key, stamping FetchedAt.
func (s *Store) PutRaw(key, station string, records []model.RawRecord) error {
	entry := RawEntry{Key: key, Station: station, FetchedAt: s.now(), Records: records}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding raw records: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRaw).Put([]byte(key), b)
	})
}

// GetRaw retrieves a raw entry by key.
// Returns (entry, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetRaw(key string) (RawEntry, bool, error) {
	var entry RawEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRaw).Get([]byte(key))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &entry)
	})
	if err != nil {
		return entry, false, err
	}
	return entry, entry.Key != "", nil
}

// ListRawKeys returns all raw keys for a station, in key order.
// Pass station="" to list all keys.
func (s *Store) ListRawKeys(station string) ([]string, error) {
	prefix := []byte("station:")
	if station != "" {
		prefix = []byte(RawKey(station, "", "") + "|")
	}
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRaw).Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// ─── Daily Tables ─────────────────────────────────────────────────────────────

// storedTable is the JSON-safe on-disk form of a daily table. Values hold
// one *float64 per non-date column so that nulls are stored as JSON null.
type storedTable struct {
	Columns []string     `json:"columns"`
	Dates   []string     `json:"dates"`
	Values  [][]*float64 `json:"values"`
	SavedAt time.Time    `json:"saved_at"`
}

// PutTable stores t under run ID id.
func (s *Store) PutTable(id string, t *model.Table) error {
	header := t.Header()
	st := storedTable{
		Columns: header[1:],
		Dates:   make([]string, len(t.Records)),
		Values:  make([][]*float64, len(t.Records)),
		SavedAt: s.now(),
	}
	getters := make([]model.Getter, len(st.Columns))
	for j, name := range st.Columns {
		g, err := t.Getter(name)
		if err != nil {
			return fmt.Errorf("encoding table: %w", err)
		}
		getters[j] = g
	}
	for i := range t.Records {
		r := &t.Records[i]
		st.Dates[i] = r.Date
		row := make([]*float64, len(getters))
		for j, g := range getters {
			if v, ok := g(r).Get(); ok {
				row[j] = &v
			}
		}
		st.Values[i] = row
	}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding table: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTables).Put([]byte(id), b)
	})
}

// GetTable retrieves the daily table stored under run ID id.
func (s *Store) GetTable(id string) (*model.Table, bool, error) {
	var st storedTable
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTables).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &st)
	})
	if err != nil || !found {
		return nil, false, err
	}

	header := append([]string{model.FieldDate}, st.Columns...)
	rows := make([]tabular.Row, len(st.Dates))
	for i, date := range st.Dates {
		cells := make([]string, len(header))
		cells[0] = date
		for j, v := range st.Values[i] {
			if v != nil {
				cells[j+1] = util.FormatNumber(*v)
			}
		}
		rows[i] = tabular.NewRow(header, cells)
	}
	t, err := pipeline.DecodeTable(rows)
	if err != nil {
		return nil, false, fmt.Errorf("decoding table %s: %w", id, err)
	}
	return t, true, nil
}

// ─── Runs ─────────────────────────────────────────────────────────────────────

// Run records one clean or analyze invocation.
type Run struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"` // clean|analyze|fetch
	Name      string            `json:"name,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Inputs    []string          `json:"inputs,omitempty"`
	Outputs   []string          `json:"outputs,omitempty"`
	Days      int               `json:"days"`
	Anomalies int               `json:"anomalies"`
	Params    map[string]string `json:"params,omitempty"`
}

// NewRunID returns a fresh random run ID.
func NewRunID() string {
	return uuid.New().String()
}

// PutRun saves a run, assigning an ID and CreatedAt when they are unset.
// The saved run is returned.
func (s *Store) PutRun(run Run) (Run, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	b, err := json.Marshal(run)
	if err != nil {
		return run, fmt.Errorf("encoding run: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(run.ID), b)
	})
	return run, err
}

// GetRun retrieves a run by exact ID.
func (s *Store) GetRun(id string) (Run, bool, error) {
	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketRuns).Get([]byte(id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &run)
	})
	if err != nil {
		return run, false, err
	}
	return run, run.ID != "", nil
}

// FindRun resolves a full ID or a unique ID prefix.
func (s *Store) FindRun(prefix string) (Run, error) {
	if prefix == "" {
		return Run{}, fmt.Errorf("run ID is empty")
	}
	if run, ok, err := s.GetRun(prefix); err != nil || ok {
		return run, err
	}
	runs, err := s.ListRuns()
	if err != nil {
		return Run{}, err
	}
	var matches []Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("run not found: %s", prefix)
	case 1:
		return matches[0], nil
	}
	return Run{}, fmt.Errorf("run ID prefix %q is ambiguous (%d matches)", prefix, len(matches))
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns() ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		})
	})
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	return runs, err
}

// DeleteRun removes a run and its stored table.
func (s *Store) DeleteRun(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketTables).Delete([]byte(id))
	})
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats returns row counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	known := false
	for _, b := range AllBuckets {
		if b == name {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown bucket %q (valid: %s)", name, strings.Join(AllBuckets, ", "))
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

// Compact rewrites the database into a fresh file and swaps it in place,
// returning the file sizes before and after. The store stays open.
func (s *Store) Compact() (int64, int64, error) {
	before, err := fileSize(s.path)
	if err != nil {
		return 0, 0, err
	}
	tmp := s.path + ".compact"
	dst, err := bolt.Open(tmp, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return 0, 0, fmt.Errorf("opening %s: %w", tmp, err)
	}
	if err := bolt.Compact(dst, s.db, 0); err != nil {
		dst.Close()
		os.Remove(tmp)
		return 0, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return 0, 0, err
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmp)
		return 0, 0, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return 0, 0, fmt.Errorf("replacing database: %w", err)
	}
	if err := s.open(); err != nil {
		return 0, 0, err
	}
	after, err := fileSize(s.path)
	return before, after, err
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
