package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a 256-bit digest used for block hashes
type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	SHA256d    Algorithm = "sha256d" // double SHA-256 (Bitcoin-style)
	SHA3_256   Algorithm = "sha3-256"
	BLAKE2b256 Algorithm = "blake2b-256"

	// DefaultAlgorithm is used when no algorithm is configured
	DefaultAlgorithm = SHA256

	// DigestSize is the output size in bytes of every supported algorithm
	DigestSize = 32
)

// Algorithms lists the supported digest algorithms
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, SHA256d, SHA3_256, BLAKE2b256}
}

// ParseAlgorithm returns the algorithm with the given name.
// An empty name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return DefaultAlgorithm, nil
	}
	alg := Algorithm(name)
	if !alg.Valid() {
		return "", fmt.Errorf("unknown hash algorithm %q", name)
	}
	return alg, nil
}

// Valid reports whether the algorithm is supported
func (a Algorithm) Valid() bool {
	switch a {
	case SHA256, SHA256d, SHA3_256, BLAKE2b256:
		return true
	}
	return false
}

// Sum returns the digest of data.
// It panics on an unsupported algorithm; configuration is validated up front.
func (a Algorithm) Sum(data []byte) []byte {
	switch a {
	case SHA256:
		return HashBytes(data)
	case SHA256d:
		return DoubleHashBytes(data)
	case SHA3_256:
		hash := sha3.Sum256(data)
		return hash[:]
	case BLAKE2b256:
		hash := blake2b.Sum256(data)
		return hash[:]
	}
	panic(fmt.Sprintf("crypto: unsupported hash algorithm %q", string(a)))
}

// Double applies the algorithm twice
func (a Algorithm) Double(data []byte) []byte {
	return a.Sum(a.Sum(data))
}

// HexSum returns the hex-encoded digest of data
func (a Algorithm) HexSum(data []byte) string {
	return hex.EncodeToString(a.Sum(data))
}

func (a Algorithm) String() string {
	return string(a)
}

// HashBytes returns SHA-256 hash of the input data
func HashBytes(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// DoubleHashBytes returns double SHA-256 hash (Bitcoin-style)
func DoubleHashBytes(data []byte) []byte {
	firstHash := sha256.Sum256(data)
	secondHash := sha256.Sum256(firstHash[:])
	return secondHash[:]
}
