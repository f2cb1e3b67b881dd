package libs

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Stored in every hash string so they can be
// raised later without invalidating existing credentials.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16

	passwordMinLength = 8
	passwordMaxLength = 256
)

// HashPassword derives an Argon2id hash with a fresh random salt and
// returns it in PHC string format.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword recomputes the hash with the stored parameters and
// compares in constant time. A hash in a recognizable but foreign
// scheme (e.g. bcrypt) verifies false without error; a hash that
// cannot be parsed at all is reported as a corrupt credential.
func VerifyPassword(password, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, "$argon2id$") {
		if strings.HasPrefix(encoded, "$") && strings.Count(encoded, "$") >= 2 {
			// legacy scheme this deployment no longer supports
			return false, nil
		}
		return false, NewError(KindCorruptCredential, "malformed credential hash")
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, NewError(KindCorruptCredential, "malformed credential hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, NewError(KindCorruptCredential, "malformed credential hash")
	}
	memory, timeCost, threads, err := parseArgonParams(parts[3])
	if err != nil {
		return false, NewError(KindCorruptCredential, "malformed credential hash")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, NewError(KindCorruptCredential, "malformed credential hash")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, NewError(KindCorruptCredential, "malformed credential hash")
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parseArgonParams(s string) (memory, timeCost uint32, threads uint8, err error) {
	for _, kv := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return 0, 0, 0, fmt.Errorf("bad parameter %q", kv)
		}
		// p must fit the uint8 the argon2 API takes
		bits := 32
		if key == "p" {
			bits = 8
		}
		n, convErr := strconv.ParseUint(val, 10, bits)
		if convErr != nil {
			return 0, 0, 0, convErr
		}
		switch key {
		case "m":
			memory = uint32(n)
		case "t":
			timeCost = uint32(n)
		case "p":
			threads = uint8(n)
		default:
			return 0, 0, 0, fmt.Errorf("unknown parameter %q", key)
		}
	}
	if memory == 0 || timeCost == 0 || threads == 0 {
		return 0, 0, 0, fmt.Errorf("incomplete parameters %q", s)
	}
	return memory, timeCost, threads, nil
}

// ValidatePasswordPolicy enforces length bounds and the four character
// classes. A symbol is any rune that is not a letter or digit. Pure
// function, no I/O.
func ValidatePasswordPolicy(password string) bool {
	if len(password) < passwordMinLength || len(password) > passwordMaxLength {
		return false
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
				hasSymbol = true
			}
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
