package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the key length accepted by every cipher in this package.
const KeySize = 32

// formatVersion is the first header byte of sealed records.
const formatVersion byte = 1

const headerSize = 2

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

func (t CipherType) id() (byte, bool) {
	switch t {
	case CipherAESGCM:
		return 1, true
	case CipherChaCha20:
		return 2, true
	default:
		return 0, false
	}
}

func cipherTypeFromID(id byte) (CipherType, bool) {
	switch id {
	case 1:
		return CipherAESGCM, true
	case 2:
		return CipherChaCha20, true
	default:
		return "", false
	}
}

// Errors returned by Decrypt.
var (
	ErrInvalidKey       = errors.New("adaptive: key must be 32 bytes")
	ErrCiphertextShort  = errors.New("adaptive: ciphertext too short")
	ErrUnknownFormat    = errors.New("adaptive: unknown record format")
	ErrAuthentication   = errors.New("adaptive: message authentication failed")
	ErrUnknownAlgorithm = errors.New("adaptive: unknown cipher type")
)

// Cipher provides authenticated encryption.
type Cipher interface {
	// Type returns the algorithm used by Encrypt.
	Type() CipherType

	// Encrypt seals plaintext bound to additionalData.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)

	// Decrypt opens a record sealed by any Cipher holding the same key.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)

	// Overhead returns the bytes added to each plaintext.
	Overhead() int
}

// New creates a cipher with the algorithm best suited to this host.
func New(key []byte) (Cipher, error) {
	if hasAESNI() {
		return NewWithType(key, CipherAESGCM)
	}
	return NewWithType(key, CipherChaCha20)
}

// NewWithType creates a cipher that encrypts with cipherType.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	if _, ok := cipherType.id(); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, cipherType)
	}

	c := &envelopeCipher{typ: cipherType, key: append([]byte(nil), key...)}
	aead, err := c.aead(cipherType)
	if err != nil {
		return nil, err
	}
	c.primary = aead
	return c, nil
}

// DeriveKey expands secret into a KeySize key with HKDF-SHA256.
// Different info strings yield independent keys from one secret.
func DeriveKey(secret, salt []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("adaptive: empty secret")
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("adaptive: derive key: %w", err)
	}
	return key, nil
}

// hasAESNI reports whether crypto/aes is hardware accelerated here.
func hasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x":
		return true
	default:
		return false
	}
}

type envelopeCipher struct {
	typ     CipherType
	key     []byte
	primary cipher.AEAD
}

func (c *envelopeCipher) Type() CipherType {
	return c.typ
}

func (c *envelopeCipher) Overhead() int {
	return headerSize + c.primary.NonceSize() + c.primary.Overhead()
}

func (c *envelopeCipher) aead(t CipherType) (cipher.AEAD, error) {
	switch t {
	case CipherAESGCM:
		block, err := aes.NewCipher(c.key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherChaCha20:
		return chacha20poly1305.New(c.key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, t)
	}
}

func (c *envelopeCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	id, _ := c.typ.id()
	nonceSize := c.primary.NonceSize()

	out := make([]byte, headerSize+nonceSize, headerSize+nonceSize+len(plaintext)+c.primary.Overhead())
	out[0] = formatVersion
	out[1] = id
	nonce := out[headerSize:]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return c.primary.Seal(out, nonce, plaintext, additionalData), nil
}

func (c *envelopeCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < headerSize {
		return nil, ErrCiphertextShort
	}
	if ciphertext[0] != formatVersion {
		return nil, ErrUnknownFormat
	}
	t, ok := cipherTypeFromID(ciphertext[1])
	if !ok {
		return nil, ErrUnknownFormat
	}

	aead := c.primary
	if t != c.typ {
		var err error
		if aead, err = c.aead(t); err != nil {
			return nil, err
		}
	}

	body := ciphertext[headerSize:]
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	nonce, sealed := body[:aead.NonceSize()], body[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
