package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bazarhq/bazar/internal/logger"
	"github.com/bazarhq/bazar/internal/metrics"
)

// DefaultCacheTTL is how long a cached document stays valid without an
// intervening write.
const DefaultCacheTTL = 5 * time.Minute

// Store provides atomic, cached CRUD and search primitives over named JSON
// collection files under a fixed data root. Mutations to one path are
// serialized through a per-path mutex, so concurrent inserts always receive
// distinct ids. The cache is in-process only: another process writing the
// same files can serve this one stale reads for up to the TTL.
type Store struct {
	root    string
	backups bool
	cache   *documentCache
	log     logger.Logger
	now     func() time.Time
	rename  func(oldpath, newpath string) error

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options configures optional Store behavior.
type Options struct {
	// CacheTTL overrides DefaultCacheTTL when positive.
	CacheTTL time.Duration
	// Backups enables timestamped backup copies before overwrites.
	Backups bool
	// Logger receives store errors; defaults to the process logger.
	Logger logger.Logger
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// New creates a store rooted at dataRoot, creating the directory if needed.
func New(dataRoot string, opts Options) (*Store, error) {
	if dataRoot == "" {
		return nil, fmt.Errorf("%w: empty data root", ErrInvalidInput)
	}

	root, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, dataRoot)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data root: %v", ErrWrite, err)
	}

	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetDefault()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Store{
		root:    root,
		backups: opts.Backups,
		cache:   newDocumentCache(opts.CacheTTL, opts.Clock),
		log:     opts.Logger,
		now:     opts.Clock,
		rename:  os.Rename,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Read loads a collection document, serving it from cache when the entry is
// unexpired. A missing file and malformed JSON are distinct failures.
func (s *Store) Read(path string, useCache bool) (Document, error) {
	full, err := s.resolve(path)
	if err != nil {
		s.fail("read", path, err)
		return nil, err
	}

	if useCache {
		if doc, ok := s.cache.get(full); ok {
			metrics.StoreOperationsTotal.WithLabelValues("read", "success").Inc()
			return doc, nil
		}
	}

	raw, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: file %s", ErrNotFound, path)
		} else {
			err = fmt.Errorf("%w: %s: %v", ErrRead, path, err)
		}
		s.fail("read", path, err)
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
		s.fail("read", path, err)
		return nil, err
	}

	if useCache {
		s.cache.put(full, doc)
	}

	metrics.StoreOperationsTotal.WithLabelValues("read", "success").Inc()
	return doc, nil
}

// Write serializes the document to pretty-printed, Unicode-preserving JSON,
// writes it to a temp file and renames it over the target. The rename is the
// only durability guarantee: readers never see a partially written file. On
// success the cache entry for the path is refreshed.
//
// A backup failure never aborts the write; it is logged and swallowed.
func (s *Store) Write(path string, doc Document, backup bool) error {
	full, err := s.resolve(path)
	if err != nil {
		s.fail("write", path, err)
		return err
	}

	if doc == nil {
		err := fmt.Errorf("%w: document must be an object", ErrInvalidInput)
		s.fail("write", path, err)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		err = fmt.Errorf("%w: create parent dir: %v", ErrWrite, err)
		s.fail("write", path, err)
		return err
	}

	if backup && s.backups {
		s.backupFile(full)
	}

	data, err := encodeDocument(doc)
	if err != nil {
		err = fmt.Errorf("%w: encode %s: %v", ErrInvalidInput, path, err)
		s.fail("write", path, err)
		return err
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		err = fmt.Errorf("%w: temp file %s: %v", ErrWrite, tmp, err)
		s.fail("write", path, err)
		return err
	}

	if err := s.rename(tmp, full); err != nil {
		os.Remove(tmp)
		err = fmt.Errorf("%w: rename %s: %v", ErrWrite, path, err)
		s.fail("write", path, err)
		return err
	}

	s.cache.put(full, doc)
	metrics.StoreOperationsTotal.WithLabelValues("write", "success").Inc()
	return nil
}

// Insert appends a record to the collection under key, assigning it the
// next identifier and created_at/updated_at timestamps. Returns the new id.
func (s *Store) Insert(path string, rec Record, key, idField string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		s.fail("insert", path, err)
		return "", err
	}

	if rec == nil {
		err := fmt.Errorf("%w: record must be an object", ErrInvalidInput)
		s.fail("insert", path, err)
		return "", err
	}

	unlock := s.lockPath(full)
	defer unlock()

	doc, err := s.Read(path, true)
	if err != nil {
		s.fail("insert", path, err)
		return "", err
	}

	doc = doc.clone()
	if doc.records(key) == nil {
		doc[key] = []any{}
	}

	newID := s.nextID(doc, key, idField)

	stamp := s.now().Format(time.RFC3339)
	inserted := Record(deepCopyMap(rec))
	inserted[idField] = newID
	inserted["created_at"] = stamp
	inserted["updated_at"] = stamp

	doc[key] = append(doc.records(key), map[string]any(inserted))
	s.touchMetadata(doc, key, +1)

	if err := s.Write(path, doc, true); err != nil {
		return "", err
	}

	metrics.StoreOperationsTotal.WithLabelValues("insert", "success").Inc()
	return newID, nil
}

// Update merges patch over the record with the given id (patch fields win)
// and restamps updated_at. An empty patch changes only updated_at.
func (s *Store) Update(path, id string, patch Record, key, idField string) error {
	full, err := s.resolve(path)
	if err != nil {
		s.fail("update", path, err)
		return err
	}

	unlock := s.lockPath(full)
	defer unlock()

	doc, err := s.Read(path, true)
	if err != nil {
		s.fail("update", path, err)
		return err
	}

	doc = doc.clone()
	records := doc.records(key)
	idx := findRecordIndex(records, id, idField)
	if idx < 0 {
		err := fmt.Errorf("%w: record %s in %s", ErrNotFound, id, path)
		s.fail("update", path, err)
		return err
	}

	rec := records[idx].(map[string]any)
	for field, value := range patch {
		rec[field] = deepCopyValue(value)
	}
	rec["updated_at"] = s.now().Format(time.RFC3339)
	s.touchMetadata(doc, key, 0)

	if err := s.Write(path, doc, true); err != nil {
		return err
	}

	metrics.StoreOperationsTotal.WithLabelValues("update", "success").Inc()
	return nil
}

// Delete removes the record with the given id from the collection sequence.
func (s *Store) Delete(path, id string, key, idField string) error {
	full, err := s.resolve(path)
	if err != nil {
		s.fail("delete", path, err)
		return err
	}

	unlock := s.lockPath(full)
	defer unlock()

	doc, err := s.Read(path, true)
	if err != nil {
		s.fail("delete", path, err)
		return err
	}

	doc = doc.clone()
	records := doc.records(key)
	idx := findRecordIndex(records, id, idField)
	if idx < 0 {
		err := fmt.Errorf("%w: record %s in %s", ErrNotFound, id, path)
		s.fail("delete", path, err)
		return err
	}

	doc[key] = append(records[:idx:idx], records[idx+1:]...)
	s.touchMetadata(doc, key, -1)

	if err := s.Write(path, doc, true); err != nil {
		return err
	}

	metrics.StoreOperationsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// Search returns records matching every criterion. A scalar criterion
// requires exact equality; a sequence criterion requires the record's field
// to be a sequence with a non-empty intersection. A missing file or key
// yields an empty result, not a failure. Storage order is preserved.
func (s *Store) Search(path string, criteria Record, key string) ([]Record, error) {
	doc, err := s.Read(path, true)
	if err != nil {
		if IsInvalidPath(err) {
			return nil, err
		}
		return []Record{}, nil
	}

	results := []Record{}
	for _, item := range doc.records(key) {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if matchesCriteria(rec, criteria) {
			results = append(results, Record(deepCopyMap(rec)))
		}
	}

	metrics.StoreOperationsTotal.WithLabelValues("search", "success").Inc()
	return results, nil
}

// FindByID returns a copy of the first record whose idField equals id.
func (s *Store) FindByID(path, id, key, idField string) (Record, error) {
	doc, err := s.Read(path, true)
	if err != nil {
		return nil, err
	}

	idx := findRecordIndex(doc.records(key), id, idField)
	if idx < 0 {
		return nil, fmt.Errorf("%w: record %s in %s", ErrNotFound, id, path)
	}

	rec := doc.records(key)[idx].(map[string]any)
	return Record(deepCopyMap(rec)), nil
}

// Exists reports whether a record with the given id is present.
func (s *Store) Exists(path, id, key, idField string) bool {
	_, err := s.FindByID(path, id, key, idField)
	return err == nil
}

// GetAll returns copies of every record under key. A missing file or key
// is treated as an empty collection.
func (s *Store) GetAll(path, key string) []Record {
	doc, err := s.Read(path, true)
	if err != nil {
		return []Record{}
	}

	records := doc.records(key)
	out := make([]Record, 0, len(records))
	for _, item := range records {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, Record(deepCopyMap(rec)))
		}
	}
	return out
}

// Count returns the number of records under key, zero when absent.
func (s *Store) Count(path, key string) int {
	doc, err := s.Read(path, true)
	if err != nil {
		return 0
	}
	return len(doc.records(key))
}

// EnsureCollection creates an empty collection file with counter metadata
// when the file does not exist yet.
func (s *Store) EnsureCollection(path, key string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	unlock := s.lockPath(full)
	defer unlock()

	if _, err := os.Stat(full); err == nil {
		return nil
	}

	singular := singularize(key)
	doc := Document{
		key: []any{},
		"metadata": map[string]any{
			"last_updated":             s.now().Format(time.RFC3339),
			"total_" + singular:        0,
			"next_" + singular + "_id": 1,
		},
	}

	return s.Write(path, doc, false)
}

// InvalidateCache drops the cache entry for path; an empty path clears the
// whole cache.
func (s *Store) InvalidateCache(path string) {
	if path == "" {
		s.cache.clear()
		return
	}
	if full, err := s.resolve(path); err == nil {
		s.cache.invalidate(full)
	}
}

// CacheStats reports the current cache occupancy.
type CacheStats struct {
	CachedDocuments int `json:"cached_documents"`
}

// Stats returns cache statistics.
func (s *Store) Stats() CacheStats {
	return CacheStats{CachedDocuments: s.cache.size()}
}

// resolve joins path with the data root and rejects traversal segments or
// anything escaping the root.
func (s *Store) resolve(path string) (string, error) {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: traversal segment in %s", ErrInvalidPath, path)
		}
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, full)
	}

	abs, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s escapes data root", ErrInvalidPath, path)
	}

	return abs, nil
}

// lockPath serializes mutations per resolved path. Held across the whole
// read-modify-write-rename sequence so concurrent inserts cannot compute
// the same id and clobber each other.
func (s *Store) lockPath(full string) func() {
	s.mu.Lock()
	l, ok := s.locks[full]
	if !ok {
		l = &sync.Mutex{}
		s.locks[full] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// nextID consumes the next_<singular>_id counter when the collection
// carries one (monotonic, no id reuse); otherwise it falls back to the
// max-plus-one scan over live records.
func (s *Store) nextID(doc Document, key, idField string) string {
	maxID := 0
	for _, item := range doc.records(key) {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if n, ok := numericID(rec[idField]); ok && n > maxID {
			maxID = n
		}
	}

	if meta := doc.metadata(); meta != nil {
		counterKey := "next_" + singularize(key) + "_id"
		if n, ok := asInt(meta[counterKey]); ok {
			if n <= maxID {
				n = maxID + 1
			}
			meta[counterKey] = n + 1
			return strconv.Itoa(n)
		}
	}

	return strconv.Itoa(maxID + 1)
}

// touchMetadata refreshes last_updated and adjusts the total counter when
// the document carries a metadata object. Absence never breaks anything.
func (s *Store) touchMetadata(doc Document, key string, delta int) {
	meta := doc.metadata()
	if meta == nil {
		return
	}

	meta["last_updated"] = s.now().Format(time.RFC3339)

	totalKey := "total_" + singularize(key)
	if n, ok := asInt(meta[totalKey]); ok {
		meta[totalKey] = n + delta
	}
}

func (s *Store) backupFile(full string) {
	if _, err := os.Stat(full); err != nil {
		return
	}

	backupPath := full + ".backup." + s.now().Format("2006-01-02-15-04-05")
	data, err := os.ReadFile(full)
	if err == nil {
		err = os.WriteFile(backupPath, data, 0o644)
	}
	if err != nil {
		// A write must not fail merely because its backup could not be made.
		s.log.Warn("Collection backup failed",
			logger.String("path", full),
			logger.Error(err))
		metrics.StoreBackupsTotal.WithLabelValues("error").Inc()
		return
	}

	metrics.StoreBackupsTotal.WithLabelValues("success").Inc()
}

func (s *Store) fail(op, path string, err error) {
	status := "error"
	if IsNotFound(err) {
		status = "not_found"
	}
	metrics.StoreOperationsTotal.WithLabelValues(op, status).Inc()
	s.log.Debug("Store operation failed",
		logger.String("operation", op),
		logger.String("path", path),
		logger.Error(err))
}

func findRecordIndex(records []any, id, idField string) int {
	for i, item := range records {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if recID, ok := rec[idField].(string); ok && recID == id {
			return i
		}
	}
	return -1
}

func matchesCriteria(rec map[string]any, criteria Record) bool {
	for field, want := range criteria {
		got, ok := rec[field]
		if !ok {
			return false
		}

		if wantSeq, isSeq := toSlice(want); isSeq {
			gotSeq, ok := toSlice(got)
			if !ok || !hasIntersection(wantSeq, gotSeq) {
				return false
			}
			continue
		}

		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func hasIntersection(a, b []any) bool {
	for _, av := range a {
		for _, bv := range b {
			if valuesEqual(av, bv) {
				return true
			}
		}
	}
	return false
}

// valuesEqual compares JSON-decoded values against caller-supplied ones,
// tolerating the int/float64 split between Go literals and decoded JSON.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch seq := v.(type) {
	case []any:
		return seq, true
	case []string:
		out := make([]any, len(seq))
		for i, s := range seq {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func encodeDocument(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
