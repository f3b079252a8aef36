// Package fpstatus provides the fenv-equivalent floating-point status
// surface used by numeric assignment kernels (see spec §6, §4.4).
//
// Go has no portable way to read the hardware FP status/control word
// (no fenv.h equivalent, and golang.org/x/sys only exposes OS syscalls,
// not MXCSR/FPSCR bits), so overflow/inexact detection is done by
// comparing the mathematically exact conversion against its float64
// round-trip rather than by polling a status register.
package fpstatus

import "math"

// Status mirrors the clear/test triad of a hardware FP status word.
type Status struct {
	overflow bool
	inexact  bool
}

// Clear returns a fresh, cleared status, mirroring clear_fp_status().
func Clear() *Status {
	return &Status{}
}

// IsOverflow mirrors is_overflow_fp_status().
func (s *Status) IsOverflow() bool { return s.overflow }

// IsInexact mirrors is_inexact_fp_status().
func (s *Status) IsInexact() bool { return s.inexact }

// NoteFloat64 records the status implied by converting src to dst, where
// dst is the float64 representation of a narrower/wider conversion and
// src is the original exact value (as a float64). Overflow is flagged
// when a finite src produced a non-finite dst; inexact is flagged when
// converting dst back does not reproduce src bit-for-bit.
func (s *Status) NoteFloat64(src, dst float64) {
	if !math.IsInf(src, 0) && !math.IsNaN(src) && math.IsInf(dst, 0) {
		s.overflow = true
	}
	if dst != src && !(math.IsNaN(src) && math.IsNaN(dst)) {
		s.inexact = true
	}
}

// NoteFloat32 records the status implied by narrowing a float64 to a
// float32 and back.
func (s *Status) NoteFloat32(src float64, narrowed float32) {
	widened := float64(narrowed)
	if !math.IsInf(src, 0) && !math.IsNaN(src) && math.IsInf(widened, 0) {
		s.overflow = true
	}
	if widened != src && !(math.IsNaN(src) && math.IsNaN(widened)) {
		s.inexact = true
	}
}

// NoteIntegerTruncation records inexactness when converting a float to
// an integer drops a fractional part, and overflow when the float's
// magnitude exceeds the representable range (the caller supplies the
// range bounds since they depend on the destination integer width).
func (s *Status) NoteIntegerTruncation(src float64, truncated float64, inRange bool) {
	if truncated != src {
		s.inexact = true
	}
	if !inRange {
		s.overflow = true
	}
}
