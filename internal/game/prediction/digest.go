package prediction

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"golang.org/x/crypto/blake2b"
)

// Digest fingerprints the outcome of an action so the authority and the
// predicting instance can compare results without shipping the full state.
type Digest [blake2b.Size256]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:8])
}

// Digester builds a Digest from a sequence of typed fields.
type Digester struct {
	h   hash.Hash
	buf [8]byte
}

// NewDigester returns an empty digester.
func NewDigester() *Digester {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return &Digester{h: h}
}

// String writes a length-prefixed string.
func (d *Digester) String(s string) *Digester {
	d.Int(int64(len(s)))
	d.h.Write([]byte(s))
	return d
}

// Int writes a signed integer.
func (d *Digester) Int(v int64) *Digester {
	binary.LittleEndian.PutUint64(d.buf[:], uint64(v))
	d.h.Write(d.buf[:])
	return d
}

// Float writes a float64 by its bit pattern.
func (d *Digester) Float(v float64) *Digester {
	binary.LittleEndian.PutUint64(d.buf[:], math.Float64bits(v))
	d.h.Write(d.buf[:])
	return d
}

// Sum returns the digest of everything written so far.
func (d *Digester) Sum() Digest {
	var out Digest
	copy(out[:], d.h.Sum(nil))
	return out
}
