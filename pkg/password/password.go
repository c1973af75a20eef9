// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string form. Verification also accepts
// bcrypt hashes written by the previous account system so existing users can
// still sign in; NeedsRehash reports when a stored hash should be replaced.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const algorithmID = "argon2id"

var (
	// ErrInvalidHash is returned for stored hashes in an unknown or corrupt format.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrInvalidConfig is returned for argon2 parameters below the safe floor.
	ErrInvalidConfig = errors.New("invalid argon2 configuration")
)

// Config holds argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig mirrors the OWASP baseline for argon2id.
func DefaultConfig() Config {
	return Config{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Hasher hashes and verifies passwords. It is safe for concurrent use.
type Hasher struct {
	config Config
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Memory < 8*1024 || cfg.Time < 1 || cfg.Parallelism < 1 || cfg.SaltLength < 16 || cfg.KeyLength < 16 {
		return nil, ErrInvalidConfig
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns the PHC encoding of an argon2id hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches encoded. A false result with a nil
// error means the password was wrong; an error means the hash is unusable.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$"+algorithmID+"$"):
		parsed, err := parsePHC(encoded)
		if err != nil {
			return false, err
		}
		key := argon2.IDKey([]byte(plain), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
		return subtle.ConstantTimeCompare(key, parsed.hash) == 1, nil
	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encoded was produced by an older algorithm or
// weaker parameters than the hasher's current configuration.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	parsed, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return parsed.memory < h.config.Memory ||
		parsed.time < h.config.Time ||
		parsed.parallelism < h.config.Parallelism ||
		uint32(len(parsed.hash)) != h.config.KeyLength
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrInvalidHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, ErrInvalidHash
	}

	var (
		memory, iterations uint32
		parallelism        uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return nil, ErrInvalidHash
	}
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return nil, ErrInvalidHash
	}

	salt, err := decodeSegment(parts[4])
	if err != nil || len(salt) < 8 {
		return nil, ErrInvalidHash
	}
	hash, err := decodeSegment(parts[5])
	if err != nil || len(hash) < 16 {
		return nil, ErrInvalidHash
	}

	return &phc{memory: memory, time: iterations, parallelism: parallelism, salt: salt, hash: hash}, nil
}

// decodeSegment accepts both unpadded (reference encoder) and padded base64.
func decodeSegment(s string) ([]byte, error) {
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
