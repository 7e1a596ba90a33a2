// SPDX-License-Identifier: Apache-2.0

package small

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// ArenaFlags selects the mapping mode a SlabArena requests from its page
// source, mirroring SLAB_ARENA_PRIVATE / SLAB_ARENA_SHARED /
// SLAB_ARENA_DONTDUMP from spec.md §6.
type ArenaFlags uint32

const (
	// ArenaPrivate requests a private (copy-on-write, not shared with
	// forked processes) mapping. This is the default.
	ArenaPrivate ArenaFlags = 1 << iota
	// ArenaShared requests a mapping shared across process forks.
	ArenaShared
	// ArenaDontDump advises the page source to exclude these pages from
	// crash dumps. Absence of support for this hint is non-fatal.
	ArenaDontDump
)

// MinSlabSize is the smallest slab size a SlabArena will honor, mirroring
// SLAB_MIN_SIZE (64 KiB) from the original implementation.
const MinSlabSize = 64 * 1024

var (
	dontDumpProbeOnce sync.Once
	dontDumpSupported bool
)

// ProbeDontDumpSupported reports whether the host page source honors the
// ArenaDontDump hint. On this Go-heap-backed implementation there is no
// real madvise(MADV_DONTDUMP) equivalent, so the probe always reports
// false; it exists so callers (and the capability-probe log line) have a
// single, cached place to ask the question, exactly as the original
// small/features.c startup probe does for the C implementation.
func ProbeDontDumpSupported() bool {
	dontDumpProbeOnce.Do(func() {
		dontDumpSupported = false
	})
	return dontDumpSupported
}

// SlabArena is a thread-safe source of uniformly sized, power-of-two
// aligned byte blocks ("raw slabs"), charged against a shared Quota. It is
// the only component in this package safe to call concurrently from
// multiple workers (spec.md §5); every layer built on top of it is owned
// by a single worker.
type SlabArena struct {
	quota    *Quota
	slabSize int
	flags    ArenaFlags
	logger   *zapLike
	recycled lockFreeLIFO

	preMu    sync.Mutex
	prealloc []byte
	preUsed  int
	preSlabs int
}

// SlabArenaOption configures a SlabArena at construction time.
type SlabArenaOption func(*SlabArena)

// WithArenaLogger attaches a zap logger for capability-probe and
// out-of-quota diagnostics. A nil logger is treated as a no-op logger.
func WithArenaLogger(l *zap.Logger) SlabArenaOption {
	return func(a *SlabArena) { a.logger = newZapLike(l) }
}

// WithPrealloc reserves `bytes` worth of slabs up front out of the arena's
// quota, rounded to a whole number of slabs. Map() serves from this region
// before ever requesting a fresh heap-backed mapping.
func WithPrealloc(bytes int) SlabArenaOption {
	return func(a *SlabArena) {
		n := bytes / a.slabSize
		if bytes%a.slabSize != 0 {
			n++
		}
		a.preSlabs = n
	}
}

// NewSlabArena creates an arena backed by quota, handing out slabs of
// slabSize (rounded up to a power of two, floored at MinSlabSize).
func NewSlabArena(quota *Quota, slabSize int, flags ArenaFlags, opts ...SlabArenaOption) *SlabArena {
	size := int(nextPowerOfTwo(uint64(slabSize)))
	if size < MinSlabSize {
		size = MinSlabSize
	}
	a := &SlabArena{
		quota:    quota,
		slabSize: size,
		flags:    flags,
		logger:   newZapLike(nil),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.preSlabs > 0 {
		want := a.preSlabs * a.slabSize
		if granted := quota.Use(int64(want)); granted >= 0 {
			a.prealloc = alignedAlloc(a.preSlabs*a.slabSize, a.slabSize)
		}
	}
	if flags&ArenaDontDump != 0 {
		a.logger.capabilityProbe("MADV_DONTDUMP", ProbeDontDumpSupported())
	}
	return a
}

// SlabSize returns the fixed slab size this arena hands out.
func (a *SlabArena) SlabSize() int { return a.slabSize }

// Quota returns the arena's backing quota.
func (a *SlabArena) Quota() *Quota { return a.quota }

// Map returns a new raw slab aligned to SlabSize(), or nil if the quota is
// exhausted. Order of attempts, per spec.md §4.2: recycled LIFO, then the
// preallocated region, then a fresh heap-backed mapping.
func (a *SlabArena) Map() *slab {
	if s := a.recycled.pop(); s != nil {
		s.inUse = true
		return s
	}
	if s := a.mapFromPrealloc(); s != nil {
		s.inUse = true
		return s
	}

	if granted := a.quota.Use(int64(a.slabSize)); granted < 0 {
		a.logger.quotaExhausted(int64(a.slabSize))
		return nil
	}

	buf := alignedAlloc(a.slabSize, a.slabSize)
	s := newSlab(unsafe.Pointer(&buf[0]), a.slabSize, 0, false)
	s.inUse = true
	return s
}

func (a *SlabArena) mapFromPrealloc() *slab {
	if a.prealloc == nil {
		return nil
	}
	a.preMu.Lock()
	defer a.preMu.Unlock()
	if a.preUsed+a.slabSize > len(a.prealloc) {
		return nil
	}
	ptr := unsafe.Pointer(&a.prealloc[a.preUsed])
	a.preUsed += a.slabSize
	return newSlab(ptr, a.slabSize, 0, false)
}

// Unmap returns a raw slab to the arena's recycle LIFO. Memory is never
// returned to the OS until the process (or, for tests, the finalizer on
// the underlying buffer) releases it — see spec.md §1's non-goals.
func (a *SlabArena) Unmap(s *slab) {
	s.inUse = false
	a.recycled.push(s)
}

// GetLarge maps enough raw slabs, concatenated via a single heap
// allocation, to hold size bytes. Large slabs bypass the recycle LIFO and
// the buddy tree entirely; PutLarge releases them straight back to quota.
func (a *SlabArena) GetLarge(size int) *slab {
	rounded := int(alignUp(uintptr(size), uintptr(a.slabSize)))
	if granted := a.quota.Use(int64(rounded)); granted < 0 {
		a.logger.quotaExhausted(int64(rounded))
		return nil
	}
	buf := alignedAlloc(rounded, a.slabSize)
	s := newSlab(unsafe.Pointer(&buf[0]), rounded, 0, true)
	s.inUse = true
	return s
}

// PutLarge releases a large slab straight back to the quota.
func (a *SlabArena) PutLarge(s *slab) {
	a.quota.Release(int64(s.size))
}

// alignedAlloc returns a size-byte slice whose start address is aligned to
// alignment, by over-allocating and trimming the unaligned head — the
// approach spec.md §4.2 calls out as acceptable in lieu of a real aligned
// mmap(2).
func alignedAlloc(size, alignment int) []byte {
	raw := make([]byte, size+alignment)
	base := uintptr(unsafe.Pointer(&raw[0]))
	aligned := alignUp(base, uintptr(alignment))
	offset := int(aligned - base)
	return raw[offset : offset+size]
}
