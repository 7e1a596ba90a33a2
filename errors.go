// SPDX-License-Identifier: Apache-2.0

package small

import "github.com/pkg/errors"

// Sentinel errors for the recoverable error taxonomy of spec.md §7. Most of
// the hot-path API (Mempool.Alloc, SmallAlloc.Alloc, Region.Alloc, ...)
// keeps the original nil/-1 return convention instead of wrapping every call
// in an error, per the spec's own propagation policy. The only API here that
// returns these sentinels is Obuf (Reserve, Alloc, Dup); page-source mapping
// (SlabArena.Map, GetLarge) reports failure as a nil slab.
var (
	// ErrOutOfQuota is returned by Obuf when the slab cache cannot supply a
	// slab for a new iovec, which happens once the backing Quota is
	// exhausted.
	ErrOutOfQuota = errors.New("small: quota exhausted")

	// ErrOutOfAddressSpace names a failure of the page source itself to
	// produce a new aligned mapping. No function in this package returns
	// it: the heap-backed page source has no such failure path.
	ErrOutOfAddressSpace = errors.New("small: out of address space")

	// ErrIovecOverflow is returned by Obuf when more than MaxIovecs iovecs
	// would be required to satisfy a reservation.
	ErrIovecOverflow = errors.New("small: obuf iovec limit exceeded")
)

// violation panics with a wrapped error after logging at DPanic level. It
// is used for the debug-only "Violated Contract" class of spec.md §7:
// conditions that always indicate a caller bug and are never recoverable.
func violation(logger *zapLike, format string, args ...interface{}) {
	if logger == nil {
		logger = newZapLike(nil)
	}
	err := errors.Errorf(format, args...)
	logger.contractViolation(err)
	panic(err)
}
