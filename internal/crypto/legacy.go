package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Defaults used by werkzeug when the method string omits its parameters.
const (
	werkzeugPBKDF2Iterations = 600000
	werkzeugScryptN          = 1 << 15
	werkzeugScryptR          = 8
	werkzeugScryptP          = 1
	werkzeugScryptKeyLen     = 64
)

// verifyWerkzeug checks "method$salt$hexhash" strings such as
// "pbkdf2:sha256:600000$salt$..." or "scrypt:32768:8:1$salt$...". The salt
// is used as its literal ASCII bytes.
func verifyWerkzeug(encoded, password string) (bool, error) {
	method, rest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, ErrInvalidHash
	}
	salt, hexHash, ok := strings.Cut(rest, "$")
	if !ok || hexHash == "" {
		return false, ErrInvalidHash
	}
	want, err := hex.DecodeString(hexHash)
	if err != nil {
		return false, ErrInvalidHash
	}

	parts := strings.Split(method, ":")
	var got []byte
	switch parts[0] {
	case "pbkdf2":
		got, err = werkzeugPBKDF2(parts[1:], []byte(password), []byte(salt))
	case "scrypt":
		got, err = werkzeugScrypt(parts[1:], []byte(password), []byte(salt))
	default:
		return false, ErrUnsupportedHash
	}
	if err != nil {
		return false, err
	}

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func werkzeugPBKDF2(args []string, password, salt []byte) ([]byte, error) {
	if len(args) == 0 {
		return nil, ErrInvalidHash
	}

	var newHash func() hash.Hash
	switch args[0] {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	case "sha1":
		newHash = sha1.New
	default:
		return nil, ErrUnsupportedHash
	}

	iterations := werkzeugPBKDF2Iterations
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return nil, ErrInvalidHash
		}
		iterations = n
	}

	return pbkdf2.Key(password, salt, iterations, newHash().Size(), newHash), nil
}

func werkzeugScrypt(args []string, password, salt []byte) ([]byte, error) {
	n, r, p := werkzeugScryptN, werkzeugScryptR, werkzeugScryptP
	if len(args) > 0 {
		if len(args) != 3 {
			return nil, ErrInvalidHash
		}
		values := make([]int, 3)
		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil || v <= 0 {
				return nil, ErrInvalidHash
			}
			values[i] = v
		}
		n, r, p = values[0], values[1], values[2]
	}

	key, err := scrypt.Key(password, salt, n, r, p, werkzeugScryptKeyLen)
	if err != nil {
		return nil, ErrInvalidHash
	}
	return key, nil
}
