package credentials

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/ari-accounts/internal/dependencies/random"
	"github.com/mcoot/ari-accounts/internal/model"
)

const (
	algorithmID = "argon2id"
	// hashPad fills encoded hashes up to model.EncodedHashLen
	hashPad = '$'

	minMemoryKB    uint32 = 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

var (
	ErrInvalidHash      = errors.New("invalid encoded hash")
	ErrUnsupportedHash  = errors.New("unsupported hash algorithm")
	ErrInvalidHashParam = errors.New("invalid hash parameters")
)

// HasherConfig holds argon2id cost parameters
type HasherConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultHasherConfig returns production argon2id parameters
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  model.HashSaltLen,
		KeyLength:   model.HashKeyLen,
	}
}

// TestHasherConfig returns the cheapest parameters that still produce
// full-size hashes
func TestHasherConfig() HasherConfig {
	return HasherConfig{
		Memory:      minMemoryKB,
		Time:        minTimeCost,
		Parallelism: minParallelism,
		SaltLength:  model.HashSaltLen,
		KeyLength:   model.HashKeyLen,
	}
}

// Hasher produces and verifies fixed-length argon2id PHC strings.
// Legacy bcrypt hashes verify but always report NeedsUpgrade.
type Hasher struct {
	cfg    HasherConfig
	random random.Random
}

type parsedHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewHasher validates cfg and creates a Hasher
func NewHasher(cfg HasherConfig, rnd random.Random) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("%w: memory must be at least %d KiB", ErrInvalidHashParam, minMemoryKB)
	case cfg.Time < minTimeCost:
		return nil, fmt.Errorf("%w: time must be at least %d", ErrInvalidHashParam, minTimeCost)
	case cfg.Parallelism < minParallelism:
		return nil, fmt.Errorf("%w: parallelism must be at least %d", ErrInvalidHashParam, minParallelism)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", ErrInvalidHashParam, minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("%w: key must be at least %d bytes", ErrInvalidHashParam, minKeyLength)
	}
	return &Hasher{cfg: cfg, random: rnd}, nil
}

// Hash returns the encoded hash of secret padded to model.EncodedHashLen
func (h *Hasher) Hash(secret string) (string, error) {
	salt, err := h.random.Bytes(int(h.cfg.SaltLength))
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	encoded := fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.cfg.Memory,
		h.cfg.Time,
		h.cfg.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	)
	return pad(encoded)
}

// Verify reports whether secret matches the encoded hash
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	encoded = unpad(encoded)

	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
		}
		return true, nil
	}

	parsed, err := parse(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1, nil
}

// NeedsUpgrade reports whether the encoded hash is weaker than the
// configured parameters
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	encoded = unpad(encoded)
	if isBcrypt(encoded) {
		return true, nil
	}

	parsed, err := parse(encoded)
	if err != nil {
		return false, err
	}

	return h.cfg.Memory > parsed.memory ||
		h.cfg.Time > parsed.time ||
		h.cfg.Parallelism > parsed.parallelism ||
		h.cfg.KeyLength != uint32(len(parsed.key)) ||
		h.cfg.SaltLength > uint32(len(parsed.salt)), nil
}

func pad(encoded string) (string, error) {
	if len(encoded) > model.EncodedHashLen {
		return "", fmt.Errorf("%w: encoded hash exceeds %d bytes", ErrInvalidHashParam, model.EncodedHashLen)
	}
	return encoded + strings.Repeat(string(hashPad), model.EncodedHashLen-len(encoded)), nil
}

// unpad strips the fill. Neither base64 nor bcrypt output ends in '$'.
func unpad(encoded string) string {
	return strings.TrimRight(encoded, string(hashPad))
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func parse(encoded string) (*parsedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrInvalidHash
	}
	if parts[1] != algorithmID {
		return nil, ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: bad version", ErrInvalidHash)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	var p parsedHash
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, kv)
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrInvalidHash, kv)
		}
		switch k {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, fmt.Errorf("%w: parallelism out of range", ErrInvalidHash)
			}
			p.parallelism = uint8(n)
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidHash, k)
		}
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return nil, fmt.Errorf("%w: missing parameters", ErrInvalidHash)
	}

	if p.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	if p.key, err = base64.StdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return nil, fmt.Errorf("%w: bad key", ErrInvalidHash)
	}
	return &p, nil
}
