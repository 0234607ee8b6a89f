package grapple

import (
	"fmt"

	"github.com/fieldrobotics/grapple-can-gateway/internal/bitio"
)

// writeString writes a length-prefixed (u8 count) byte string, capped at
// maxLen, per spec.md §6's "strings: length-prefixed byte sequences with a
// u8 count; names capped at 16 bytes."
func writeString(w *bitio.Writer, s string, maxLen int) error {
	if len(s) > maxLen {
		return fmt.Errorf("%w: string length %d exceeds max %d", ErrOutOfRange, len(s), maxLen)
	}
	if err := w.WriteBits(uint32(len(s)), 8); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	dst, err := w.ReserveAlignedSlice(len(s))
	if err != nil {
		return err
	}
	copy(dst, s)
	return nil
}

// readString reads a length-prefixed byte string, rejecting lengths above maxLen.
func readString(r *bitio.Reader, maxLen int) (string, error) {
	n, err := r.ReadBits(8)
	if err != nil {
		return "", err
	}
	if int(n) > maxLen {
		return "", fmt.Errorf("%w: string length %d exceeds max %d", ErrOutOfRange, n, maxLen)
	}
	if n == 0 {
		return "", nil
	}
	b, err := r.TakeAlignedSlice(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
