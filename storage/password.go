package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

// phcArgon2id is the PHC string layout produced by passwordHasher.Hash:
// $argon2id$v=19$m=65536,t=1,p=4$<saltB64>$<hashB64>
const phcArgon2id = "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"

type passwordHasher struct {
	params Argon2idParams
}

func newPasswordHasher(p Argon2idParams) passwordHasher {
	if p.Time == 0 {
		p = defaultArgon2idParams()
	}
	return passwordHasher{params: p}
}

// Hash returns a PHC-formatted argon2id hash of the password
func (h passwordHasher) Hash(password string) (string, error) {
	p := h.params
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.WithStack(err)
	}
	dk := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen)
	return fmt.Sprintf(
		phcArgon2id, argon2.Version, p.MemoryKiB, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

// Verify checks the password against an encoded hash in constant time
func (h passwordHasher) Verify(encoded, password string) (bool, error) {
	stored, err := decodeArgon2id(encoded)
	if err != nil {
		return false, err
	}
	p := stored.params
	dk := argon2.IDKey([]byte(password), stored.salt, p.Time, p.MemoryKiB, p.Parallelism, uint32(len(stored.key)))
	return subtle.ConstantTimeCompare(dk, stored.key) == 1, nil
}

// NeedsRehash reports whether the encoded hash was produced with parameters
// other than the configured ones
func (h passwordHasher) NeedsRehash(encoded string) bool {
	stored, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}
	return stored.params != h.params
}

type decodedHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func decodeArgon2id(encoded string) (decodedHash, error) {
	var out decodedHash
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return out, errors.New("unsupported password hash format")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return out, errors.New("unsupported argon2 version")
	}
	var m, t uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &par); err != nil {
		return out, errors.Wrap(err, "invalid argon2id parameters")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return out, errors.Wrap(err, "invalid argon2id salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return out, errors.Wrap(err, "invalid argon2id hash")
	}
	out.params = Argon2idParams{
		Time:        t,
		MemoryKiB:   m,
		Parallelism: par,
		KeyLen:      uint32(len(key)),
		SaltLen:     uint32(len(salt)),
	}
	out.salt = salt
	out.key = key
	return out, nil
}

func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 1, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32, SaltLen: 16}
}
