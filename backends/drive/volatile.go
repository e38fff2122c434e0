package drive

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"
)

const defaultSectorSize = 512

// Volatile is the reference, in-memory drive backend: sectors are
// stored in a fastcache byte-oriented cache keyed by sector number,
// which fits the "big flat blob addressed by an integer key" shape of
// drive storage well. Capacity and platter count are tracked
// separately; unwritten sectors read back as all zero.
type Volatile struct {
	cache        *fastcache.Cache
	capacity     int64
	platterCount int
	sectorSize   int
	label        string
}

// NewVolatile creates an in-memory drive with the given total capacity
// in bytes, split across platterCount platters.
func NewVolatile(capacity int64, platterCount int) *Volatile {
	if platterCount < 1 {
		platterCount = 1
	}
	maxBytes := int(capacity)
	if maxBytes < 32*1024 {
		maxBytes = 32 * 1024 // fastcache's practical minimum
	}
	return &Volatile{
		cache:        fastcache.New(maxBytes),
		capacity:     capacity,
		platterCount: platterCount,
		sectorSize:   defaultSectorSize,
	}
}

func sectorKey(sector int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(sector))
	return k[:]
}

func (v *Volatile) Label() string { return v.label }

func (v *Volatile) SetLabel(label string) string {
	if len(label) > 128 {
		label = label[:128]
	}
	v.label = label
	return v.label
}

func (v *Volatile) PlatterCount() int { return v.platterCount }
func (v *Volatile) Capacity() int64   { return v.capacity }
func (v *Volatile) SectorSize() int   { return v.sectorSize }

func (v *Volatile) ReadSector(sector int, buf []byte) {
	got := v.cache.Get(buf[:0], sectorKey(sector))
	if len(got) < len(buf) {
		// Unwritten tail sectors come back zeroed.
		for i := len(got); i < len(buf); i++ {
			buf[i] = 0
		}
	}
}

func (v *Volatile) WriteSector(sector int, buf []byte) {
	v.cache.Set(sectorKey(sector), buf)
}
