package storage

import (
	"container/list"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tuannm99/novardb/internal/record"
)

const defaultSchemaCacheSize = 256

// schemaCache is an LRU of decoded schemas keyed by file path. An entry is
// only served while the file's size and modification time are unchanged, so
// edits made behind the store's back are still picked up.
type schemaCache struct {
	mu    sync.Mutex
	cap   int
	lru   *list.List
	items map[string]*list.Element
}

type schemaEntry struct {
	path    string
	size    int64
	modTime time.Time
	schema  record.TableSchema
}

func newSchemaCache(capacity int) *schemaCache {
	if capacity <= 0 {
		capacity = defaultSchemaCacheSize
	}
	return &schemaCache{cap: capacity, lru: list.New(), items: map[string]*list.Element{}}
}

func (c *schemaCache) get(path string, fi os.FileInfo) (*record.TableSchema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[path]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*schemaEntry)
	if e.size != fi.Size() || !e.modTime.Equal(fi.ModTime()) {
		c.lru.Remove(elem)
		delete(c.items, path)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return cloneSchema(&e.schema), true
}

func (c *schemaCache) put(path string, fi os.FileInfo, schema *record.TableSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &schemaEntry{path: path, size: fi.Size(), modTime: fi.ModTime(), schema: *cloneSchema(schema)}
	if elem, ok := c.items[path]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}
	c.items[path] = c.lru.PushFront(e)
	for c.lru.Len() > c.cap {
		back := c.lru.Back()
		c.lru.Remove(back)
		delete(c.items, back.Value.(*schemaEntry).path)
	}
}

// invalidate drops every entry whose path starts with prefix.
func (c *schemaCache) invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path, elem := range c.items {
		if strings.HasPrefix(path, prefix) {
			c.lru.Remove(elem)
			delete(c.items, path)
		}
	}
}

func (c *schemaCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func cloneSchema(s *record.TableSchema) *record.TableSchema {
	out := *s
	out.Columns = make([]record.Column, len(s.Columns))
	for i, col := range s.Columns {
		col.Constraints = append([]record.Constraint(nil), col.Constraints...)
		if col.MaxLength != nil {
			n := *col.MaxLength
			col.MaxLength = &n
		}
		out.Columns[i] = col
	}
	return &out
}
