// Package hasher computes the content digests used for cache keys and
// report entries.
package hasher

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// altSeed seeds the second xxHash64 pass that widens a Digest to 128 bits.
const altSeed = 0x9e3779b97f4a7c15

// Digest identifies a byte stream by two independently seeded xxHash64
// sums and its length.
type Digest struct {
	Sum uint64
	Alt uint64
	Len int64
}

// String renders the full 128-bit digest as hex followed by the length.
func (d Digest) String() string {
	return fmt.Sprintf("%016x%016x-%d", d.Sum, d.Alt, d.Len)
}

// Hex returns the primary hash as hex, truncated to n chars when 0 < n < 16.
func (d Digest) Hex(n int) string {
	full := fmt.Sprintf("%016x", d.Sum)
	if n > 0 && n < len(full) {
		return full[:n]
	}
	return full
}

// Sum digests data in one shot.
func Sum(data []byte) Digest {
	alt := xxhash.NewWithSeed(altSeed)
	_, _ = alt.Write(data)
	return Digest{Sum: xxhash.Sum64(data), Alt: alt.Sum64(), Len: int64(len(data))}
}
