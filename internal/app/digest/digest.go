// Package digest turns a URL into a short code under one of several
// hashing or random algorithms.
package digest

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash/adler32"
	"hash/crc32"
	"math/rand/v2"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Algorithm selects how a code is derived from a URL.
type Algorithm uint8

const (
	CRC32 Algorithm = iota
	MD5
	SHA256
	Adler32
	Base62
)

// Fallback is used for any selector that does not name a known algorithm.
const Fallback = CRC32

const (
	md5CodeLength    = 8
	sha256CodeLength = 10
	randomCodeLength = 8

	base62Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var names = map[Algorithm]string{
	CRC32:   "CRC32",
	MD5:     "MD5",
	SHA256:  "SHA256",
	Adler32: "ADLER32",
	Base62:  "BASE62",
}

// All lists every supported algorithm in a stable order.
func All() []Algorithm {
	return []Algorithm{MD5, SHA256, CRC32, Adler32, Base62}
}

// Parse resolves a selector such as "md5" or "SHA256". Matching ignores
// case; anything unrecognised, including the empty string, yields Fallback.
func Parse(selector string) Algorithm {
	switch strings.ToUpper(strings.TrimSpace(selector)) {
	case "MD5":
		return MD5
	case "SHA256":
		return SHA256
	case "CRC32":
		return CRC32
	case "ADLER32":
		return Adler32
	case "BASE62":
		return Base62
	default:
		return Fallback
	}
}

func (a Algorithm) String() string {
	if name, ok := names[a]; ok {
		return name
	}
	return names[Fallback]
}

// Deterministic reports whether identical input always yields the same code.
func (a Algorithm) Deterministic() bool {
	return a != Base62
}

// Compute derives the short code for url. It never fails; an out-of-range
// Algorithm value is treated as Fallback.
func Compute(url string, a Algorithm) string {
	data := []byte(url)
	switch a {
	case MD5:
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:])[:md5CodeLength]
	case SHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])[:sha256CodeLength]
	case Adler32:
		return strconv.FormatUint(uint64(adler32.Checksum(data)), 16)
	case Base62:
		return randomCode()
	default:
		return strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 16)
	}
}

// ComputeString parses selector and computes the code in one step.
func ComputeString(url, selector string) string {
	return Compute(url, Parse(selector))
}

func randomCode() string {
	code, err := gonanoid.Generate(base62Alphabet, randomCodeLength)
	if err == nil {
		return code
	}

	// crypto/rand is unavailable; keep producing codes from the PRNG.
	var b strings.Builder
	b.Grow(randomCodeLength)
	for i := 0; i < randomCodeLength; i++ {
		b.WriteByte(base62Alphabet[rand.IntN(len(base62Alphabet))])
	}
	return b.String()
}
