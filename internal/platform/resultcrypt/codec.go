// Package resultcrypt turns structured result data into an opaque string
// safe to store in a single text column, and back. Three historical
// encodings remain readable indefinitely: the current AES-256-CBC triple,
// a legacy JSON envelope carrying encryption metadata, and bare JSON from
// before encryption existed. No migration-on-read is assumed to run.
package resultcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"

	"github.com/lims/lims/internal/platform/apperr"
)

// errDecode wraps apperr.ErrDecode without echoing the raw value, which may
// be sensitive.
func errDecode(encoded string) error {
	return fmt.Errorf("value of %d bytes matches no known encoding: %w", len(encoded), apperr.ErrDecode)
}

// Format identifies which persisted encoding a stored value uses. The
// format is resolved once per decode, not by cascading try/catch.
type Format int

const (
	// FormatUnknown means the value matches no known encoding.
	FormatUnknown Format = iota
	// FormatEncrypted is the current hex(iv):hex(salt):hex(ciphertext) triple.
	FormatEncrypted
	// FormatLegacyJSON is the legacy {"encryptionMethod":..,"encryptedData":..} envelope.
	FormatLegacyJSON
	// FormatPlainJSON is a bare JSON document (oldest, fully unencrypted rows).
	FormatPlainJSON
)

const (
	saltSize      = 16
	ivSize        = 16
	keySize       = 32
	keyIterations = 10000
)

// legacyEnvelope is the metadata object written by earlier versions of the
// system.
type legacyEnvelope struct {
	EncryptionMethod string          `json:"encryptionMethod"`
	EncryptedData    json.RawMessage `json:"encryptedData"`
}

// Codec encrypts and decrypts result payloads. The key is derived per call
// from the configured secret and a random salt.
//
// With an empty secret the codec runs disabled (development mode): Encrypt
// stores plain JSON and Decrypt still reads every legacy format.
type Codec struct {
	secret  []byte
	enabled bool
}

// NewCodec creates a codec from the pre-shared secret. An empty secret
// disables encryption and logs a warning; enforcing that the secret is
// present outside development is the config layer's job.
func NewCodec(secret string, logger zerolog.Logger) *Codec {
	if secret == "" {
		logger.Warn().Msg("result encryption disabled: RESULTS_ENCRYPTION_SECRET is not set")
		return &Codec{enabled: false}
	}
	logger.Info().Msg("result encryption enabled")
	return &Codec{secret: []byte(secret), enabled: true}
}

// IsEnabled reports whether values are encrypted at rest.
func (c *Codec) IsEnabled() bool { return c.enabled }

// Encrypt serializes v to JSON and encrypts it with AES-256-CBC. The key is
// derived from the secret and a fresh random salt; the output is
// hex(iv) + ":" + hex(salt) + ":" + hex(ciphertext).
func (c *Codec) Encrypt(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal result payload: %w", err)
	}
	if !c.enabled {
		return string(plaintext), nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt interprets a persisted value under whichever of the three known
// formats it matches and returns the decoded JSON. A value matching none of
// them yields apperr-compatible ErrDecode semantics via errDecode.
func (c *Codec) Decrypt(encoded string) (json.RawMessage, error) {
	switch DetectFormat(encoded) {
	case FormatEncrypted:
		out, err := c.decryptCurrent(encoded)
		if err == nil {
			return out, nil
		}
		// A value that merely looks like the current format may be a
		// legacy row; fall through rather than failing immediately.
		return decodeUnencrypted(encoded)
	case FormatLegacyJSON, FormatPlainJSON:
		return decodeUnencrypted(encoded)
	default:
		return nil, errDecode(encoded)
	}
}

// IsEncrypted reports whether the value needs Decrypt rather than a direct
// JSON parse. It applies the same three-tier detection order as Decrypt.
func IsEncrypted(encoded string) bool {
	switch DetectFormat(encoded) {
	case FormatEncrypted, FormatLegacyJSON:
		return true
	default:
		return false
	}
}

// DetectFormat classifies a persisted value into the closed set of known
// encodings.
func DetectFormat(encoded string) Format {
	if isCurrentTriple(encoded) {
		return FormatEncrypted
	}
	var env legacyEnvelope
	if err := json.Unmarshal([]byte(encoded), &env); err == nil {
		if env.EncryptionMethod != "" || env.EncryptedData != nil {
			return FormatLegacyJSON
		}
		return FormatPlainJSON
	}
	if json.Valid([]byte(encoded)) {
		return FormatPlainJSON
	}
	return FormatUnknown
}

// isCurrentTriple reports whether the value has the shape of the current
// encrypted format: exactly two ":" separators with 32 hex chars in each of
// the first two fields.
func isCurrentTriple(encoded string) bool {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return false
	}
	if len(parts[0]) != ivSize*2 || len(parts[1]) != saltSize*2 {
		return false
	}
	if _, err := hex.DecodeString(parts[0]); err != nil {
		return false
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return false
	}
	return true
}

func (c *Codec) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.secret, salt, keyIterations, keySize, sha256.New)
}

func (c *Codec) decryptCurrent(encoded string) (json.RawMessage, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return nil, errDecode(encoded)
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errDecode(encoded)
	}

	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	if !json.Valid(unpadded) {
		return nil, errDecode(encoded)
	}
	return json.RawMessage(unpadded), nil
}

// decodeUnencrypted handles the legacy JSON envelope and bare JSON formats.
func decodeUnencrypted(encoded string) (json.RawMessage, error) {
	var env legacyEnvelope
	if err := json.Unmarshal([]byte(encoded), &env); err == nil {
		if env.EncryptionMethod == "none" {
			// Double-JSON-encoded plaintext: encryptedData is a JSON
			// string whose content is itself a JSON document.
			var inner string
			if err := json.Unmarshal(env.EncryptedData, &inner); err == nil {
				if json.Valid([]byte(inner)) {
					return json.RawMessage(inner), nil
				}
				return nil, errDecode(encoded)
			}
		}
		if env.EncryptedData != nil {
			// encryptedData holding a JSON value (not a string) is
			// returned directly.
			var asString string
			if json.Unmarshal(env.EncryptedData, &asString) != nil {
				return env.EncryptedData, nil
			}
		}
	}
	if json.Valid([]byte(encoded)) {
		return json.RawMessage(encoded), nil
	}
	return nil, errDecode(encoded)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", pad)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-pad], nil
}
