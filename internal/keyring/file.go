package keyring

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// FileStore keeps secrets in a single file encrypted with
// XChaCha20-Poly1305. The key lives in a separate 0600 file next to it. It
// is meant for machines without a keychain daemon.
type FileStore struct {
	mu      sync.Mutex
	path    string
	keyPath string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, keyPath: path + ".key"}
}

func entryKey(service, user string) string {
	return service + "\x00" + user
}

func (f *FileStore) Get(service, user string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.load()
	if err != nil {
		return nil, err
	}
	secret, ok := secrets[entryKey(service, user)]
	if !ok {
		return nil, ErrNotFound
	}
	return secret, nil
}

func (f *FileStore) Set(service, user string, secret []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.load()
	if err != nil {
		return err
	}
	secrets[entryKey(service, user)] = secret
	return f.save(secrets)
}

func (f *FileStore) Delete(service, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.load()
	if err != nil {
		return err
	}
	k := entryKey(service, user)
	if _, ok := secrets[k]; !ok {
		return ErrNotFound
	}
	delete(secrets, k)
	return f.save(secrets)
}

func (f *FileStore) load() (map[string][]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string][]byte), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}

	key, err := f.key(false)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, fmt.Errorf("secrets file is truncated")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting secrets file: %w", err)
	}

	secrets := make(map[string][]byte)
	if err := json.Unmarshal(plain, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (f *FileStore) save(secrets map[string][]byte) error {
	plain, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshaling secrets: %w", err)
	}

	key, err := f.key(true)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)

	return writeFileAtomic(f.path, sealed)
}

// key loads the encryption key, generating it on first write.
func (f *FileStore) key(create bool) ([]byte, error) {
	key, err := os.ReadFile(f.keyPath)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("key file %s has wrong size", f.keyPath)
		}
		return key, nil
	}
	if !os.IsNotExist(err) || !create {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := writeFileAtomic(f.keyPath, key); err != nil {
		return nil, err
	}
	return key, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming file: %w", err)
	}
	return nil
}
