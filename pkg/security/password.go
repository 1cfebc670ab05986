package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/lootmarket-backend/pkg/config"
)

// Password length bounds accepted at registration.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

const hashScheme = "argon2id"

var (
	// ErrInvalidHash signals a malformed or unsupported stored hash.
	ErrInvalidHash = errors.New("invalid argon2id hash")
	// ErrWeakPassword is returned by CheckPolicy.
	ErrWeakPassword = fmt.Errorf("password must be %d-%d characters and mix letters with digits", MinPasswordLength, MaxPasswordLength)
	// ErrEmptyPassword is returned by HashPassword for "".
	ErrEmptyPassword = errors.New("password cannot be empty")
)

var b64 = base64.RawStdEncoding

// ArgonParams are the cost parameters stored alongside every hash.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// ParamsFromConfig clamps configured costs into a range argon2 accepts and
// that cannot stall a login.
func ParamsFromConfig(cfg config.PasswordConfig) ArgonParams {
	return ArgonParams{
		Memory:      uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		Time:        uint32(clamp(cfg.ArgonTime, 1, 10)),
		Parallelism: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		SaltLen:     uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:      uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

// weakerThan reports whether p costs less than want on any axis that
// matters for offline attacks.
func (p ArgonParams) weakerThan(want ArgonParams) bool {
	return p.Memory < want.Memory || p.Time < want.Time || p.KeyLen < want.KeyLen
}

func (p ArgonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
}

// HashPassword derives a PHC-formatted argon2id hash:
// $argon2id$v=19$m=<kb>,t=<iterations>,p=<threads>$<salt>$<key>
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	params := ParamsFromConfig(cfg)
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := params.derive(password, salt)

	var sb strings.Builder
	fmt.Fprintf(&sb, "$%s$v=%d$m=%d,t=%d,p=%d$", hashScheme, argon2.Version, params.Memory, params.Time, params.Parallelism)
	sb.WriteString(b64.EncodeToString(salt))
	sb.WriteByte('$')
	sb.WriteString(b64.EncodeToString(key))
	return sb.String(), nil
}

// VerifyPassword reports whether password matches encoded. A malformed hash
// is an error, a mismatch is not.
func VerifyPassword(password, encoded string) (bool, error) {
	stored, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	computed := stored.params.derive(password, stored.salt)
	return subtle.ConstantTimeCompare(stored.key, computed) == 1, nil
}

// NeedsRehash reports whether encoded should be replaced on the next
// successful login, either because it is unreadable or because cfg now asks
// for stronger parameters.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	stored, err := parseHash(encoded)
	if err != nil {
		return true
	}
	return stored.params.weakerThan(ParamsFromConfig(cfg))
}

// CheckPolicy enforces the registration password policy.
func CheckPolicy(password string) error {
	if n := utf8.RuneCountInString(password); n < MinPasswordLength || n > MaxPasswordLength {
		return ErrWeakPassword
	}
	hasLetter := strings.IndexFunc(password, unicode.IsLetter) >= 0
	hasDigit := strings.IndexFunc(password, unicode.IsDigit) >= 0
	if !hasLetter || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}

type storedHash struct {
	params ArgonParams
	salt   []byte
	key    []byte
}

func parseHash(encoded string) (storedHash, error) {
	// "", scheme, version, params, salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != hashScheme {
		return storedHash{}, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return storedHash{}, ErrInvalidHash
	}

	var out storedHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &out.params.Memory, &out.params.Time, &out.params.Parallelism); err != nil {
		return storedHash{}, ErrInvalidHash
	}
	if out.params.Memory == 0 || out.params.Time == 0 || out.params.Parallelism == 0 {
		return storedHash{}, ErrInvalidHash
	}

	var err error
	if out.salt, err = b64.DecodeString(parts[4]); err != nil || len(out.salt) == 0 {
		return storedHash{}, ErrInvalidHash
	}
	if out.key, err = b64.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return storedHash{}, ErrInvalidHash
	}
	out.params.SaltLen = uint32(len(out.salt))
	out.params.KeyLen = uint32(len(out.key))
	return out, nil
}

func clamp(value, lo, hi int) int {
	return min(max(value, lo), hi)
}
