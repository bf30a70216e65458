// Package crypto resolves the operator's private key and signs Ethereum
// transactions with it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 480_000
	saltLen       = 16
	aesKeyLen     = 32
	keyFileV1     = 1
)

// keyFile is the on-disk JSON of an encrypted private key. Binary fields are
// base64 standard encoded.
type keyFile struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource says where the operator key comes from. A raw key wins over an
// encrypted key file.
type KeySource struct {
	RawHex   string
	FilePath string
	Password string
}

// EncryptKey seals a hex private key with password (PBKDF2-SHA256 then
// AES-256-GCM) and returns the key file JSON.
func EncryptKey(keyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: encrypt key: empty password")
	}
	raw, err := decodeKeyHex(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: encrypt key: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: encrypt key: salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, fmt.Errorf("crypto: encrypt key: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: encrypt key: nonce: %w", err)
	}

	return json.MarshalIndent(keyFile{
		Version:    keyFileV1,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, raw, nil)),
	}, "", "  ")
}

// DecryptKey opens a key file produced by EncryptKey and returns the key as
// hex without a 0x prefix.
func DecryptKey(data []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: decrypt key: empty password")
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return "", fmt.Errorf("crypto: decrypt key: parse: %w", err)
	}
	if kf.Version != keyFileV1 {
		return "", fmt.Errorf("crypto: decrypt key: unsupported version %d", kf.Version)
	}

	var salt, nonce, sealed []byte
	for _, f := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", kf.Salt, &salt},
		{"nonce", kf.Nonce, &nonce},
		{"ciphertext", kf.Ciphertext, &sealed},
	} {
		b, err := base64.StdEncoding.DecodeString(f.in)
		if err != nil {
			return "", fmt.Errorf("crypto: decrypt key: %s: %w", f.name, err)
		}
		*f.out = b
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt key: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: decrypt key: nonce length %d", len(nonce))
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt key: wrong password or corrupt file: %w", err)
	}
	return hex.EncodeToString(plain), nil
}

// LoadKey returns the operator key as hex without a 0x prefix.
func LoadKey(src KeySource) (string, error) {
	if src.RawHex != "" {
		raw, err := decodeKeyHex(src.RawHex)
		if err != nil {
			return "", fmt.Errorf("crypto: load key: %w", err)
		}
		return hex.EncodeToString(raw), nil
	}
	if src.FilePath != "" {
		data, err := os.ReadFile(src.FilePath)
		if err != nil {
			return "", fmt.Errorf("crypto: load key: %w", err)
		}
		return DecryptKey(data, src.Password)
	}
	return "", errors.New("crypto: load key: no private key or key file configured")
}

func decodeKeyHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("expected 32-byte key, got %d bytes", len(raw))
	}
	return raw, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}
