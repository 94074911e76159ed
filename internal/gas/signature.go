package gas

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Duplicate-grouping resolution. These are fixed so that scan results are
// stable regardless of any tolerance a caller passes to a match query.
const (
	// SignatureScale is the number of mole-fraction buckets per unit.
	SignatureScale = 1e6

	// TemperatureBucketScale is the number of temperature buckets per kelvin.
	TemperatureBucketScale = 1e4

	// SignatureEpsilon is the mole-fraction bucket width.
	SignatureEpsilon = 1 / SignatureScale

	// TemperatureEpsilon is the temperature bucket width in kelvin.
	TemperatureEpsilon = 1 / TemperatureBucketScale
)

// DomainSignature separates signature digests from any other hash this
// module might compute. The version suffix allows a future bucket change.
const DomainSignature = "hydrate/signature/v1"

// Signature is the bucketed composition + temperature used to detect
// duplicate measurements. Two records collide when every bucket is equal.
type Signature struct {
	Fractions   [NumComponents]int64 `json:"fractions"`
	Temperature int64                `json:"temperature"`
}

// NewSignature buckets a composition and temperature.
// Rounding is half away from zero, matching SQLite ROUND().
func NewSignature(c Composition, temperature float64) Signature {
	var sig Signature
	for i, v := range c {
		sig.Fractions[i] = bucket(v, SignatureScale)
	}
	sig.Temperature = bucket(temperature, TemperatureBucketScale)
	return sig
}

// bucket multiplies rather than divides so the result is bit-identical to
// the storage layer's ROUND(x * scale).
func bucket(v, scale float64) int64 {
	return int64(math.Round(v * scale))
}

// Key returns a stable hex digest of the signature.
// Format: SHA256(domain + 0x00 + big-endian buckets).
func (s Signature) Key() string {
	h := sha256.New()
	h.Write([]byte(DomainSignature))
	h.Write([]byte{0x00})
	var buf [8]byte
	for _, b := range s.Fractions {
		binary.BigEndian.PutUint64(buf[:], uint64(b))
		h.Write(buf[:])
	}
	binary.BigEndian.PutUint64(buf[:], uint64(s.Temperature))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))[:16]
}
