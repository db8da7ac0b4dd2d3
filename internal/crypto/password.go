package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash     = errors.New("invalid password hash format")
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

const argon2Prefix = "$argon2id$"

// Argon2Params tunes the cost of newly created hashes. Stored hashes carry
// their own parameters, so changing these never breaks existing logins.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
		SaltLen:   16,
		KeyLen:    32,
	}
}

// PasswordHasher creates argon2id hashes and verifies argon2id as well as
// the pbkdf2/scrypt hashes written by the previous portal.
type PasswordHasher struct {
	params Argon2Params
}

func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	def := DefaultArgon2Params()
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = def.MemoryKiB
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	if params.SaltLen == 0 {
		params.SaltLen = def.SaltLen
	}
	if params.KeyLen == 0 {
		params.KeyLen = def.KeyLen
	}
	return &PasswordHasher{params: params}
}

// Hash returns $argon2id$v=19$m=65536,t=1,p=4$BASE64_SALT$BASE64_HASH.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt, err := generateRandomBytes(int(h.params.SaltLen))
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	p := h.params
	hash := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encoded. A malformed or unknown
// hash is an error, a plain mismatch is not.
func (h *PasswordHasher) Verify(encoded, password string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		return verifyArgon2(encoded, password)
	case strings.HasPrefix(encoded, "pbkdf2:"), strings.HasPrefix(encoded, "scrypt:"):
		return verifyWerkzeug(encoded, password)
	default:
		return false, ErrUnsupportedHash
	}
}

func verifyArgon2(encoded, password string) (bool, error) {
	// ["", "argon2id", "v=19", "m=65536,t=1,p=4", salt, hash]
	sections := strings.Split(encoded, "$")
	if len(sections) != 6 {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(sections[2], "v=%d", &version); err != nil {
		return false, ErrInvalidHash
	}
	if version != argon2.Version {
		return false, ErrUnsupportedHash
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(sections[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, ErrInvalidHash
	}
	want, err := base64.RawStdEncoding.DecodeString(sections[5])
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}

	got := argon2.IDKey([]byte(password), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func generateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
