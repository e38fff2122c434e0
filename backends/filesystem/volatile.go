package filesystem

import (
	"errors"
	"hash/fnv"
	"math/big"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/bloomfilter/v2"
)

// MaxOpenFiles caps the number of simultaneously open file handles a
// Volatile keeps. Past this, the least-recently-touched handle is
// evicted and closed, mirroring real OS fd exhaustion instead of
// refusing the new open outright.
const MaxOpenFiles = 128

// Volatile is the reference, in-memory filesystem backend: a tree of
// files and directories kept entirely in process memory, with a capped
// table of open file descriptors. Equivalent to the sample backend
// shipped alongside the reference implementation's component sources.
type Volatile struct {
	files    map[string]*vnode
	handles  *lru.Cache // fd(int) -> *handle, least-recently-touched evicted past MaxOpenFiles
	nextFD   int
	readOnly bool
	label    string
	capacity int64
	now      func() int64

	// existsFilter accelerates Exists' common "definitely absent" case.
	// It is a pure optimization: the files map stays the source of
	// truth, a positive filter match always falls through to a real
	// lookup. Rebuilt wholesale on any removal (bloom filters can't
	// un-add a key); appended to on creation.
	existsFilter *bloomfilter.Filter
}

func pathHash(path string) *big.Int {
	h := fnv.New64a()
	h.Write([]byte(path))
	return new(big.Int).SetUint64(h.Sum64())
}

// rebuildExistsFilter recomputes the negative-existence cache from
// scratch, sized generously against the current file count so it stays
// under bloomfilter's recommended fill ratio as the tree grows.
func (v *Volatile) rebuildExistsFilter() {
	m := uint64(len(v.files)+1) * 32
	f, err := bloomfilter.New(m, 4)
	if err != nil {
		// Only returned for m or k of zero, neither of which occurs here.
		panic(err)
	}
	for p := range v.files {
		f.Add(pathHash(p))
	}
	v.existsFilter = f
}

func (v *Volatile) rememberPath(path string) {
	v.existsFilter.Add(pathHash(path))
}

type vnode struct {
	dir          bool
	data         []byte
	lastModified int64
}

type handle struct {
	path   string
	mode   string
	pos    int64
	closed bool
}

var errNoSuchFile = errors.New("no such file")
var errFileExists = errors.New("file already exists")
var errBadFD = errors.New("bad file descriptor")
var errReadOnly = errors.New("filesystem is read only")

// NewVolatile creates an empty in-memory filesystem with the given
// total capacity in bytes. now supplies the clock used for
// LastModified timestamps (in unix milliseconds); pass nil to use a
// fixed zero clock, which is useful in deterministic tests.
func NewVolatile(capacity int64, now func() int64) *Volatile {
	if now == nil {
		now = func() int64 { return 0 }
	}
	handles, err := lru.NewWithEvict(MaxOpenFiles, func(key, value interface{}) {
		value.(*handle).closed = true
	})
	if err != nil {
		// Only returned for a non-positive size, which MaxOpenFiles never is.
		panic(err)
	}
	v := &Volatile{
		files:    map[string]*vnode{"/": {dir: true}},
		handles:  handles,
		capacity: capacity,
		now:      now,
	}
	v.rebuildExistsFilter()
	return v
}

func normalize(path string) string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return "/"
	}
	return "/" + path
}

func (v *Volatile) Label() string { return v.label }

func (v *Volatile) SetLabel(label string) string {
	if len(label) > 128 {
		label = label[:128]
	}
	v.label = label
	return v.label
}

func (v *Volatile) SpaceUsed() int64 {
	var used int64
	for _, n := range v.files {
		if !n.dir {
			used += int64(len(n.data))
		}
	}
	return used
}

// SpaceTotal reports the configured capacity. The filesystem table's
// spaceTotal method does not call this (it calls SpaceUsed instead,
// matching the documented ambiguity resolution); it is exposed for
// backends that want a real distinct figure, and used directly by the
// read() length clamp.
func (v *Volatile) SpaceTotal() int64 { return v.capacity }

func (v *Volatile) IsReadOnly() bool { return v.readOnly }

func (v *Volatile) Size(path string) int64 {
	n, ok := v.files[normalize(path)]
	if !ok || n.dir {
		return 0
	}
	return int64(len(n.data))
}

func (v *Volatile) Remove(path string) bool {
	path = normalize(path)
	if path == "/" {
		return false
	}
	if _, ok := v.files[path]; !ok {
		return false
	}
	for p := range v.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(v.files, p)
		}
	}
	v.rebuildExistsFilter()
	return true
}

func (v *Volatile) LastModified(path string) int64 {
	n, ok := v.files[normalize(path)]
	if !ok {
		return 0
	}
	return n.lastModified
}

func (v *Volatile) Rename(from, to string) int {
	from, to = normalize(from), normalize(to)
	moved := 0
	for p, n := range v.files {
		if p == from {
			v.files[to] = n
			delete(v.files, p)
			moved++
		} else if strings.HasPrefix(p, from+"/") {
			newPath := to + strings.TrimPrefix(p, from)
			v.files[newPath] = n
			delete(v.files, p)
			moved++
		}
	}
	if moved > 0 {
		v.rebuildExistsFilter()
	}
	return moved
}

func (v *Volatile) Exists(path string) bool {
	norm := normalize(path)
	if !v.existsFilter.Contains(pathHash(norm)) {
		return false
	}
	_, ok := v.files[norm]
	return ok
}

func (v *Volatile) IsDirectory(path string) bool {
	n, ok := v.files[normalize(path)]
	return ok && n.dir
}

func (v *Volatile) MakeDirectory(path string) bool {
	path = normalize(path)
	if _, ok := v.files[path]; ok {
		return false
	}
	v.files[path] = &vnode{dir: true, lastModified: v.now()}
	v.rememberPath(path)
	return true
}

func (v *Volatile) List(path string) ([]string, error) {
	path = normalize(path)
	n, ok := v.files[path]
	if !ok || !n.dir {
		return nil, errNoSuchFile
	}
	prefix := path
	if prefix == "/" {
		prefix = ""
	}
	seen := map[string]bool{}
	var out []string
	for p, child := range v.files {
		if p == path || !strings.HasPrefix(p, prefix+"/") {
			continue
		}
		rest := strings.TrimPrefix(p, prefix+"/")
		name := rest
		if idx := strings.Index(rest, "/"); idx >= 0 {
			name = rest[:idx] + "/"
		} else if child.dir {
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

func (v *Volatile) Open(path, mode string) (int, error) {
	norm := normalize(path)
	n, exists := v.files[norm]
	switch mode {
	case "r":
		if !exists || n.dir {
			return 0, errNoSuchFile
		}
	case "w":
		if v.readOnly {
			return 0, errReadOnly
		}
		v.files[norm] = &vnode{lastModified: v.now()}
		v.rememberPath(norm)
	case "a":
		if v.readOnly {
			return 0, errReadOnly
		}
		if !exists {
			v.files[norm] = &vnode{lastModified: v.now()}
			v.rememberPath(norm)
		}
	case "rw":
		if v.readOnly {
			return 0, errReadOnly
		}
		if !exists {
			v.files[norm] = &vnode{lastModified: v.now()}
			v.rememberPath(norm)
		}
	default:
		return 0, errNoSuchFile
	}
	fd := v.nextFD
	v.nextFD++
	h := &handle{path: norm, mode: mode}
	if mode == "a" {
		h.pos = int64(len(v.files[norm].data))
	}
	v.handles.Add(fd, h)
	return fd, nil
}

func (v *Volatile) handle(fd int) (*handle, bool) {
	h, ok := v.handles.Get(fd)
	if !ok {
		return nil, false
	}
	return h.(*handle), true
}

func (v *Volatile) Close(fd int) bool {
	h, ok := v.handle(fd)
	if !ok {
		return false
	}
	h.closed = true
	v.handles.Remove(fd)
	return true
}

func (v *Volatile) Write(fd int, data []byte) bool {
	h, ok := v.handle(fd)
	if !ok || h.mode == "r" {
		return false
	}
	n := v.files[h.path]
	if n == nil {
		return false
	}
	end := h.pos + int64(len(data))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[h.pos:end], data)
	h.pos = end
	n.lastModified = v.now()
	return true
}

func (v *Volatile) Read(fd int, buf []byte) int {
	h, ok := v.handle(fd)
	if !ok {
		return 0
	}
	n, ok := v.files[h.path]
	if !ok {
		return 0
	}
	if h.pos >= int64(len(n.data)) {
		return 0
	}
	copied := copy(buf, n.data[h.pos:])
	h.pos += int64(copied)
	return copied
}

func (v *Volatile) Seek(fd int, whence string, offset int64) (int64, int64) {
	h, ok := v.handle(fd)
	if !ok {
		return 0, 0
	}
	n := v.files[h.path]
	var base int64
	switch whence {
	case "set":
		base = 0
	case "cur":
		base = h.pos
	case "end":
		if n != nil {
			base = int64(len(n.data))
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
