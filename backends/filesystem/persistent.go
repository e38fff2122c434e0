package filesystem

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// fsKeyPrefix namespaces filesystem metadata keys in db, so a host that
// wants to share one LevelDB handle across several NeoNucleus subsystems
// can do so without key collisions.
const fsKeyPrefix = "nn:fs:"

func fsKey(path string) []byte {
	return append([]byte(fsKeyPrefix), path...)
}

// persistentNode is the on-disk encoding of one path's metadata and
// (for files) contents.
type persistentNode struct {
	Dir          bool
	Data         []byte
	LastModified int64
}

// Persistent is a filesystem backend storing every file's bytes and
// metadata in github.com/syndtr/goleveldb, for embedders that want a
// guest's disk to survive process restarts. It satisfies the same
// Backend interface as Volatile; the kernel has no knowledge it exists.
// Open file handles themselves are kept in memory only — a restart
// loses in-flight descriptors but never committed file contents.
type Persistent struct {
	db       *leveldb.DB
	handles  map[int]*handle
	nextFD   int
	readOnly bool
	label    string
	capacity int64
	now      func() int64
}

// NewPersistent opens (or reuses) db as the backing store for a
// filesystem component. If db is nil, a LevelDB database is opened at
// dir; otherwise db is used directly. Every Persistent keys its records
// under the same fixed fsKeyPrefix, so several backends opened over one
// handle see one shared file tree. now supplies the LastModified clock, in unix
// milliseconds; nil uses a fixed zero clock for deterministic tests.
func NewPersistent(dir string, db *leveldb.DB, capacity int64, now func() int64) (*Persistent, error) {
	if db == nil {
		opened, err := leveldb.OpenFile(dir, nil)
		if err != nil {
			return nil, err
		}
		db = opened
	}
	if now == nil {
		now = func() int64 { return 0 }
	}
	p := &Persistent{
		db:       db,
		handles:  map[int]*handle{},
		capacity: capacity,
		now:      now,
	}
	if _, err := db.Get(fsKey("/"), nil); err != nil {
		if err != leveldb.ErrNotFound {
			return nil, err
		}
		if err := p.putNode("/", &persistentNode{Dir: true}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Persistent) getNode(path string) (*persistentNode, bool) {
	raw, err := p.db.Get(fsKey(path), nil)
	if err != nil {
		return nil, false
	}
	var n persistentNode
	if json.Unmarshal(raw, &n) != nil {
		return nil, false
	}
	return &n, true
}

func (p *Persistent) putNode(path string, n *persistentNode) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.db.Put(fsKey(path), raw, nil)
}

func (p *Persistent) Label() string { return p.label }

func (p *Persistent) SetLabel(label string) string {
	if len(label) > 128 {
		label = label[:128]
	}
	p.label = label
	return p.label
}

func (p *Persistent) SpaceUsed() int64 {
	var used int64
	iter := p.db.NewIterator(util.BytesPrefix([]byte(fsKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var n persistentNode
		if json.Unmarshal(iter.Value(), &n) == nil && !n.Dir {
			used += int64(len(n.Data))
		}
	}
	return used
}

// SpaceTotal reports the configured capacity. As with Volatile, the
// filesystem table's spaceTotal method does not call this — it calls
// SpaceUsed to match the documented ambiguity resolution; the read()
// length clamp does call it.
func (p *Persistent) SpaceTotal() int64 { return p.capacity }

func (p *Persistent) IsReadOnly() bool { return p.readOnly }

func (p *Persistent) Size(path string) int64 {
	n, ok := p.getNode(normalize(path))
	if !ok || n.Dir {
		return 0
	}
	return int64(len(n.Data))
}

func (p *Persistent) Remove(path string) bool {
	path = normalize(path)
	if path == "/" {
		return false
	}
	if _, ok := p.getNode(path); !ok {
		return false
	}
	batch := new(leveldb.Batch)
	iter := p.db.NewIterator(util.BytesPrefix([]byte(fsKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key()[len(fsKeyPrefix):])
		if key == path || strings.HasPrefix(key, path+"/") {
			batch.Delete(iter.Key())
		}
	}
	return p.db.Write(batch, nil) == nil
}

func (p *Persistent) LastModified(path string) int64 {
	n, ok := p.getNode(normalize(path))
	if !ok {
		return 0
	}
	return n.LastModified
}

func (p *Persistent) Rename(from, to string) int {
	from, to = normalize(from), normalize(to)
	batch := new(leveldb.Batch)
	moved := 0
	iter := p.db.NewIterator(util.BytesPrefix([]byte(fsKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key()[len(fsKeyPrefix):])
		var newKey string
		switch {
		case key == from:
			newKey = to
		case strings.HasPrefix(key, from+"/"):
			newKey = to + strings.TrimPrefix(key, from)
		default:
			continue
		}
		value := append([]byte(nil), iter.Value()...)
		batch.Put(fsKey(newKey), value)
		batch.Delete(iter.Key())
		moved++
	}
	if moved > 0 {
		if err := p.db.Write(batch, nil); err != nil {
			return 0
		}
	}
	return moved
}

func (p *Persistent) Exists(path string) bool {
	_, ok := p.getNode(normalize(path))
	return ok
}

func (p *Persistent) IsDirectory(path string) bool {
	n, ok := p.getNode(normalize(path))
	return ok && n.Dir
}

func (p *Persistent) MakeDirectory(path string) bool {
	path = normalize(path)
	if _, ok := p.getNode(path); ok {
		return false
	}
	return p.putNode(path, &persistentNode{Dir: true, LastModified: p.now()}) == nil
}

func (p *Persistent) List(path string) ([]string, error) {
	path = normalize(path)
	n, ok := p.getNode(path)
	if !ok || !n.Dir {
		return nil, leveldb.ErrNotFound
	}
	prefix := path
	if prefix == "/" {
		prefix = ""
	}
	seen := map[string]bool{}
	var out []string
	iter := p.db.NewIterator(util.BytesPrefix([]byte(fsKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		key := string(iter.Key()[len(fsKeyPrefix):])
		if key == path || !strings.HasPrefix(key, prefix+"/") {
			continue
		}
		rest := strings.TrimPrefix(key, prefix+"/")
		name := rest
		var child persistentNode
		_ = json.Unmarshal(iter.Value(), &child)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			name = rest[:idx] + "/"
		} else if child.Dir {
			name += "/"
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (p *Persistent) Open(path, mode string) (int, error) {
	norm := normalize(path)
	n, exists := p.getNode(norm)
	switch mode {
	case "r":
		if !exists || n.Dir {
			return 0, leveldb.ErrNotFound
		}
	case "w":
		if p.readOnly {
			return 0, errReadOnly
		}
		n = &persistentNode{LastModified: p.now()}
		if err := p.putNode(norm, n); err != nil {
			return 0, err
		}
	case "a", "rw":
		if p.readOnly {
			return 0, errReadOnly
		}
		if !exists {
			n = &persistentNode{LastModified: p.now()}
			if err := p.putNode(norm, n); err != nil {
				return 0, err
			}
		}
	default:
		return 0, leveldb.ErrNotFound
	}
	fd := p.nextFD
	p.nextFD++
	h := &handle{path: norm, mode: mode}
	if mode == "a" {
		h.pos = int64(len(n.Data))
	}
	p.handles[fd] = h
	return fd, nil
}

func (p *Persistent) Close(fd int) bool {
	h, ok := p.handles[fd]
	if !ok {
		return false
	}
	h.closed = true
	delete(p.handles, fd)
	return true
}

func (p *Persistent) Write(fd int, data []byte) bool {
	h, ok := p.handles[fd]
	if !ok || h.mode == "r" {
		return false
	}
	n, ok := p.getNode(h.path)
	if !ok {
		return false
	}
	end := h.pos + int64(len(data))
	if end > int64(len(n.Data)) {
		grown := make([]byte, end)
		copy(grown, n.Data)
		n.Data = grown
	}
	copy(n.Data[h.pos:end], data)
	h.pos = end
	n.LastModified = p.now()
	return p.putNode(h.path, n) == nil
}

func (p *Persistent) Read(fd int, buf []byte) int {
	h, ok := p.handles[fd]
	if !ok {
		return 0
	}
	n, ok := p.getNode(h.path)
	if !ok {
		return 0
	}
	if h.pos >= int64(len(n.Data)) {
		return 0
	}
	copied := copy(buf, n.Data[h.pos:])
	h.pos += int64(copied)
	return copied
}

func (p *Persistent) Seek(fd int, whence string, offset int64) (int64, int64) {
	h, ok := p.handles[fd]
	if !ok {
		return 0, 0
	}
	n, _ := p.getNode(h.path)
	var base int64
	switch whence {
	case "set":
		base = 0
	case "cur":
		base = h.pos
	case "end":
		if n != nil {
			base = int64(len(n.Data))
		}
	}
	newPos := base + offset
	if newPos < 0 {
		newPos = 0
	}
	moved := newPos - h.pos
	h.pos = newPos
	return h.pos, moved
}
