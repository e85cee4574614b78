// Package hash wraps blake3 hashing used to fingerprint replicated state.
package hash

import (
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
)

// Size is the length of a digest in bytes.
const Size = 32

// Hash32 is a blake3 digest.
type Hash32 [Size]byte

// String returns the full hex encoding of the digest.
func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

// ShortString returns the first five hex characters, enough to tell digests
// apart in logs.
func (h Hash32) ShortString() string {
	return hex.EncodeToString(h[:3])[:5]
}

// hashers amortizes allocation of blake3 hashers across calls.
var hashers = &sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

// GetHasher returns a reset hasher from the pool.
func GetHasher() *blake3.Hasher {
	return hashers.Get().(*blake3.Hasher)
}

// PutHasher resets the hasher and returns it to the pool.
func PutHasher(hasher *blake3.Hasher) {
	hasher.Reset()
	hashers.Put(hasher)
}

// Sum computes the digest of the concatenation of chunks.
func Sum(chunks ...[]byte) Hash32 {
	hasher := GetHasher()
	defer PutHasher(hasher)
	for _, chunk := range chunks {
		hasher.Write(chunk)
	}
	var h Hash32
	hasher.Sum(h[:0])
	return h
}
