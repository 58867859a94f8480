package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"
)

// Hasher turns an item's canonical serialized bytes into a fixed-length
// hex-encoded cache key.
type Hasher interface {
	Sum(data []byte) string
}

// XX64 returns the default hasher: xxhash64 rendered as 16 hex characters.
// Fast and deterministic; not collision-resistant against adversarial
// inputs, which value caching does not require.
func XX64() Hasher {
	return xx64Hasher{}
}

type xx64Hasher struct{}

func (xx64Hasher) Sum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Digest returns a hasher backed by a registered digest algorithm, for
// callers that want cryptographic keys (e.g. digest.Canonical for SHA256).
func Digest(alg digest.Algorithm) Hasher {
	return digestHasher{alg: alg}
}

type digestHasher struct {
	alg digest.Algorithm
}

func (h digestHasher) Sum(data []byte) string {
	return h.alg.FromBytes(data).Encoded()
}

// Keyer derives cache keys by serializing an item with a Codec and digesting
// the result with a Hasher. Both cache implementations and the wrapper's
// identifier recomputation share this derivation.
type Keyer struct {
	hasher Hasher
	codec  Codec
}

// NewKeyer pairs a hasher with a codec. Nil arguments select the defaults
// (XX64 and Msgpack).
func NewKeyer(h Hasher, c Codec) Keyer {
	if h == nil {
		h = XX64()
	}
	if c == nil {
		c = Msgpack()
	}
	return Keyer{hasher: h, codec: c}
}

// KeyFor returns the hex key for an arbitrary item value.
func (k Keyer) KeyFor(item any) (string, error) {
	data, err := k.codec.Marshal(item)
	if err != nil {
		return "", fmt.Errorf("keying item: %w", err)
	}
	return k.hasher.Sum(data), nil
}

// Sum digests raw bytes directly, bypassing serialization.
func (k Keyer) Sum(data []byte) string {
	return k.hasher.Sum(data)
}

// Codec returns the keyer's serialization strategy.
func (k Keyer) Codec() Codec {
	return k.codec
}
