package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// CipherKeyLength is the required symmetric key length in bytes.
	CipherKeyLength = 32
	// CipherIVLength is the required initialization vector length in bytes.
	CipherIVLength = 16
)

// SecretCipher encrypts secrets at rest: tenant signing keys, provider API
// keys, connection strings. Key and IV are provisioned once at platform
// setup; regenerating them invalidates every ciphertext encrypted under the
// old material, so callers must re-encrypt stored secrets before rotating.
type SecretCipher struct {
	block cipher.Block
	iv    []byte
}

// NewSecretCipher validates the key material and returns a cipher. A wrong
// key or IV length is a fatal startup condition and returns ErrCipherInit.
func NewSecretCipher(key, iv []byte) (*SecretCipher, error) {
	if len(key) != CipherKeyLength {
		return nil, goerrors.Wrap(ErrCipherInit, goerrors.CategoryInternal, "cipher key must be 32 bytes")
	}

	if len(iv) != CipherIVLength {
		return nil, goerrors.Wrap(ErrCipherInit, goerrors.CategoryInternal, "cipher IV must be 16 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, goerrors.Wrap(ErrCipherInit, goerrors.CategoryInternal, "failed to initialize cipher")
	}

	frozen := make([]byte, CipherIVLength)
	copy(frozen, iv)

	return &SecretCipher{block: block, iv: frozen}, nil
}

// Encrypt returns the base64 AES-256-CBC ciphertext of plaintext. The empty
// string is not a secret and passes through unchanged.
func (c *SecretCipher) Encrypt(plaintext string) string {
	if plaintext == "" {
		return ""
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. Malformed encoding and corrupted bytes both
// surface as ErrDecrypt so callers cannot distinguish a bad key from bad
// data.
func (c *SecretCipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}

	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", ErrDecrypt
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)

	unpadded, ok := pkcs7Unpad(out, aes.BlockSize)
	if !ok {
		return "", ErrDecrypt
	}

	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, false
	}

	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, false
		}
	}

	return data[:len(data)-padding], true
}
