package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	credentialFile = "credential.enc"
	saltFile       = "credential.salt"

	saltSize   = 32
	keySize    = 32 // AES-256
	iterations = 100_000
)

// FileStore keeps the secret sealed on disk with AES-256-GCM. The key is
// derived with PBKDF2-SHA-256 from a device-local secret plus a random salt,
// so the blob is useless when copied to another machine.
type FileStore struct {
	dir          string
	deviceSecret []byte
}

// NewFileStore creates a credential store rooted at dir. The device secret is
// supplied by the caller (typically the device fingerprint).
func NewFileStore(dir string, deviceSecret []byte) (*FileStore, error) {
	if len(deviceSecret) == 0 {
		return nil, fmt.Errorf("device secret must not be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileStore{dir: dir, deviceSecret: deviceSecret}, nil
}

// Save seals the secret and writes it to disk, replacing any previous one.
func (s *FileStore) Save(secret string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := s.cipherFor(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)

	if err := os.WriteFile(s.saltPath(), salt, 0600); err != nil {
		return fmt.Errorf("failed to write salt: %w", err)
	}
	if err := os.WriteFile(s.credPath(), sealed, 0600); err != nil {
		_ = os.Remove(s.saltPath())
		return fmt.Errorf("failed to write credential: %w", err)
	}
	return nil
}

// Read opens the sealed secret. Returns ErrNotFound when nothing is stored.
func (s *FileStore) Read() (string, error) {
	sealed, err := os.ReadFile(s.credPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	salt, err := os.ReadFile(s.saltPath())
	if err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}

	gcm, err := s.cipherFor(salt)
	if err != nil {
		return "", err
	}

	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("credential file is truncated")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}

// Clear removes the stored secret and its salt.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.credPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential: %w", err)
	}
	if err := os.Remove(s.saltPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove salt: %w", err)
	}
	return nil
}

// Exists reports whether a credential is stored.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.credPath())
	return err == nil
}

func (s *FileStore) cipherFor(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.deviceSecret, salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}

func (s *FileStore) credPath() string {
	return filepath.Join(s.dir, credentialFile)
}

func (s *FileStore) saltPath() string {
	return filepath.Join(s.dir, saltFile)
}
