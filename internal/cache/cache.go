// Package cache implements the namespaced component cache.
//
// Every Cache shares one storage key, LogKey, whose value is a JSON object of
// the form
//
//	{"CacheLogger": {"<namespace>": {"<key>": "<serialized record>"}}}
//
// where each serialized record is itself the JSON text of {"key", "value"}.
// Namespaces keep caches that share a backend from clobbering each other.
package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/heywhy/bucket/internal/log"
	"github.com/heywhy/bucket/internal/storage"
)

// LogKey is the storage key holding every namespace.
const LogKey = "CacheLogger"

// instantiated numbers caches that were not given a namespace.
var instantiated atomic.Int64

// logMu serializes read-modify-write cycles on LogKey across caches.
var logMu sync.Mutex

// Record is one cached entry.
type Record struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Decode unmarshals the record value into v.
func (r *Record) Decode(v any) error {
	return json.Unmarshal(r.Value, v)
}

// String returns the value when it holds a JSON string, the raw JSON otherwise.
func (r *Record) String() string {
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		return s
	}
	return string(r.Value)
}

type document struct {
	Namespaces map[string]map[string]string `json:"CacheLogger"`
}

// Cache is a namespaced view of the log stored in a backend.
type Cache struct {
	backend   storage.Backend
	namespace string
}

// Option configures a Cache.
type Option func(*Cache)

// WithNamespace pins the namespace instead of taking the next counter value.
func WithNamespace(namespace string) Option {
	return func(c *Cache) {
		c.namespace = namespace
	}
}

// New creates a cache over backend and makes sure the log exists.
func New(backend storage.Backend, opts ...Option) (*Cache, error) {
	c := &Cache{backend: backend}
	for _, opt := range opts {
		opt(c)
	}
	if c.namespace == "" {
		c.namespace = strconv.FormatInt(instantiated.Add(1)-1, 10)
	}

	logMu.Lock()
	defer logMu.Unlock()

	doc, err := read(backend)
	if err != nil {
		return nil, err
	}
	if _, ok := doc.Namespaces[c.namespace]; !ok {
		doc.Namespaces[c.namespace] = map[string]string{}
		if err := write(backend, doc); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Namespace returns the cache's namespace.
func (c *Cache) Namespace() string {
	return c.namespace
}

// Store saves value under key, replacing any previous value.
func (c *Cache) Store(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	item, err := json.Marshal(Record{Key: key, Value: raw})
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}

	err = c.update(func(items map[string]string) bool {
		items[key] = string(item)
		return true
	})
	if err == nil {
		log.Debug(log.CatCache, "stored", "namespace", c.namespace, "key", key, "bytes", len(raw))
	}
	return err
}

// Retrieve returns the record under key, or nil when absent.
func (c *Cache) Retrieve(key string) (*Record, error) {
	items, err := c.items()
	if err != nil {
		return nil, err
	}
	item, ok := items[key]
	if !ok {
		return nil, nil
	}
	return decodeRecord(key, item)
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) (bool, error) {
	var found bool
	err := c.update(func(items map[string]string) bool {
		_, found = items[key]
		delete(items, key)
		return found
	})
	return found, err
}

// Consume retrieves key and deletes it.
func (c *Cache) Consume(key string) (*Record, error) {
	record, err := c.Retrieve(key)
	if err != nil || record == nil {
		return record, err
	}
	if _, err := c.Delete(key); err != nil {
		return nil, err
	}
	return record, nil
}

// Clear removes every entry of the namespace.
func (c *Cache) Clear() error {
	err := c.update(func(items map[string]string) bool {
		clear(items)
		return true
	})
	if err == nil {
		log.Debug(log.CatCache, "cleared namespace", "namespace", c.namespace)
	}
	return err
}

// GetAll returns every record of the namespace keyed by cache key.
func (c *Cache) GetAll() (map[string]*Record, error) {
	items, err := c.items()
	if err != nil {
		return nil, err
	}
	all := make(map[string]*Record, len(items))
	for key, item := range items {
		record, err := decodeRecord(key, item)
		if err != nil {
			return nil, err
		}
		all[key] = record
	}
	return all, nil
}

// Keys returns the keys of the namespace in sorted order.
func (c *Cache) Keys() ([]string, error) {
	items, err := c.items()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of entries in the namespace.
func (c *Cache) Len() (int, error) {
	items, err := c.items()
	return len(items), err
}

func (c *Cache) String() string {
	return "Cache::" + c.namespace
}

func (c *Cache) items() (map[string]string, error) {
	logMu.Lock()
	defer logMu.Unlock()

	doc, err := read(c.backend)
	if err != nil {
		return nil, err
	}
	return doc.Namespaces[c.namespace], nil
}

// update applies fn to the namespace and writes the log back when fn
// reports a change.
func (c *Cache) update(fn func(items map[string]string) bool) error {
	logMu.Lock()
	defer logMu.Unlock()

	doc, err := read(c.backend)
	if err != nil {
		return err
	}
	items, ok := doc.Namespaces[c.namespace]
	if !ok {
		items = map[string]string{}
		doc.Namespaces[c.namespace] = items
	}
	if !fn(items) {
		return nil
	}
	return write(c.backend, doc)
}

// Namespaces lists the namespaces present in backend's log.
func Namespaces(backend storage.Backend) ([]string, error) {
	logMu.Lock()
	defer logMu.Unlock()

	doc, err := read(backend)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Namespaces))
	for name := range doc.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// BurstAll wipes every namespace in backend.
func BurstAll(backend storage.Backend) error {
	logMu.Lock()
	defer logMu.Unlock()

	log.Info(log.CatCache, "bursting all namespaces")
	return write(backend, &document{Namespaces: map[string]map[string]string{}})
}

func read(backend storage.Backend) (*document, error) {
	raw, ok, err := backend.GetItem(LogKey)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", LogKey, err)
	}
	doc := &document{}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", LogKey, err)
		}
	}
	if doc.Namespaces == nil {
		doc.Namespaces = map[string]map[string]string{}
	}
	return doc, nil
}

func write(backend storage.Backend, doc *document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", LogKey, err)
	}
	if err := backend.SetItem(LogKey, string(raw)); err != nil {
		return fmt.Errorf("writing %s: %w", LogKey, err)
	}
	return nil
}

func decodeRecord(key, item string) (*Record, error) {
	var record Record
	if err := json.Unmarshal([]byte(item), &record); err != nil {
		return nil, fmt.Errorf("decoding record %q: %w", key, err)
	}
	return &record, nil
}
