package split

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// NewRand returns the deterministic generator used for selection. A seed
// fills the first eight bytes of the ChaCha8 key (little endian); a nil seed
// draws the whole key from the operating system once.
func NewRand(seed *uint64) *rand.Rand {
	var key [32]byte
	if seed != nil {
		binary.LittleEndian.PutUint64(key[:8], *seed)
	} else {
		_, _ = crand.Read(key[:])
	}
	return rand.New(rand.NewChaCha8(key))
}
