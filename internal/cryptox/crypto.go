// Package cryptox holds the client-side cryptography: the AES-GCM envelope
// used for every stored payload, the argon2 master key derivation done at
// login, and the HMAC guard derivation (see guard.go).
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/aliceout/nodea/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the raw key length (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce length (96 bits).
	NonceSize = 12
)

// RawKey is the user's symmetric key. It lives in memory only: it is never
// persisted and never sent to the server.
type RawKey []byte

// Validate reports common.ErrorKeyMissing unless k holds exactly KeySize bytes.
func (k RawKey) Validate() error {
	if len(k) != KeySize {
		return fmt.Errorf("%w: need %d raw bytes, have %d", common.ErrorKeyMissing, KeySize, len(k))
	}
	return nil
}

// Wipe zeroes the key in place. Call it on logout.
func (k RawKey) Wipe() {
	common.WipeByteArray(k)
}

// Sealed is the output of Seal: the nonce and the ciphertext with the GCM
// tag appended.
type Sealed struct {
	IV         []byte
	Ciphertext []byte
}

func newGCM(key RawKey) (cipher.AEAD, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorKeyMissing, err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with AES-256-GCM and a fresh random
// 12-byte nonce.
func Seal(plaintext []byte, key RawKey) (*Sealed, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return &Sealed{IV: nonce, Ciphertext: aesgcm.Seal(nil, nonce, plaintext, nil)}, nil
}

// Open decrypts s with key. Any authentication failure, a wrong key, an
// altered nonce or ciphertext, yields common.ErrorDecryption.
func Open(s Sealed, key RawKey) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(s.IV) != NonceSize {
		return nil, fmt.Errorf("%w: bad nonce length %d", common.ErrorDecryption, len(s.IV))
	}

	plaintext, err := aesgcm.Open(nil, s.IV, s.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorDecryption, err)
	}
	return plaintext, nil
}

// OpenWithRetry calls Open and retries exactly once on a decryption
// failure. A second failure escalates to common.ErrorKeyMissing.
func OpenWithRetry(s Sealed, key RawKey) ([]byte, error) {
	plaintext, err := Open(s, key)
	if err == nil {
		return plaintext, nil
	}
	if !isCryptoFailure(err) {
		return nil, err
	}

	plaintext, err = Open(s, key)
	if err == nil {
		return plaintext, nil
	}
	return nil, fmt.Errorf("%w: %v", common.ErrorKeyMissing, err)
}

// SealJSON serializes v to JSON and seals it.
func SealJSON(v any, key RawKey) (*Sealed, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Seal(plaintext, key)
}

// OpenJSON opens s (with the single retry) and unmarshals the plaintext into v.
func OpenJSON(s Sealed, key RawKey, v any) error {
	plaintext, err := OpenWithRetry(s, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// DeriveMasterKey stretches the password with argon2id into a RawKey.
func DeriveMasterKey(password []byte, salt []byte) RawKey {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier is what the server stores to check logins: a hash of the
// master key, never the key itself.
func MakeVerifier(masterKey RawKey) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}
