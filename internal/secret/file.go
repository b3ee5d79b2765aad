package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"gopkg.in/yaml.v3"
)

// FileStore keeps fernet-encrypted secrets in a YAML file.
//
// The key lives in a separate file next to it, generated on first save.
// Both files are written with 0600 permissions.
type FileStore struct {
	mu      sync.Mutex
	path    string
	keyPath string
	log     logger.Logger
}

type secretsFile struct {
	Secrets map[string]fileEntry `yaml:"secrets"`
}

type fileEntry struct {
	Username string `yaml:"username,omitempty"`
	Token    string `yaml:"token"`
}

// NewFileStore creates a store backed by path, encrypted with the key at keyPath.
func NewFileStore(path, keyPath string, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.Noop()
	}
	return &FileStore{path: path, keyPath: keyPath, log: log}
}

// Get decrypts and returns the secret, or "" when none is stored.
func (s *FileStore) Get(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return "", err
	}
	fe, ok := file.Secrets[Key(name)]
	if !ok || fe.Token == "" {
		return "", nil
	}

	key, err := s.loadKey(false)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", errors.New(errors.ErrSecret,
			fmt.Sprintf("Secrets file has entries but key file %s is missing", s.keyPath),
			"Restore the key file, or re-save the profile password.")
	}

	msg := fernet.VerifyAndDecrypt([]byte(fe.Token), 0*time.Second, []*fernet.Key{key})
	if msg == nil {
		return "", errors.New(errors.ErrSecret,
			fmt.Sprintf("Saved password for '%s' could not be decrypted", name),
			"The key file may have changed. Re-save the profile password.")
	}
	return string(msg), nil
}

// Save encrypts and stores the secret, replacing any previous value.
func (s *FileStore) Save(_ context.Context, name, username, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.loadKey(true)
	if err != nil {
		return err
	}
	tok, err := fernet.EncryptAndSign([]byte(secret), key)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to encrypt secret", "")
	}

	file, err := s.load()
	if err != nil {
		return err
	}
	file.Secrets[Key(name)] = fileEntry{Username: username, Token: string(tok)}
	if err := s.write(file); err != nil {
		return err
	}
	s.log.Debug("saved secret for %s in %s", name, s.path)
	return nil
}

// Delete removes the entry for name. A missing entry is not an error.
func (s *FileStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	k := Key(name)
	if _, ok := file.Secrets[k]; !ok {
		return nil
	}
	delete(file.Secrets, k)
	return s.write(file)
}

func (s *FileStore) load() (secretsFile, error) {
	file := secretsFile{Secrets: map[string]fileEntry{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return file, nil
		}
		return file, errors.WrapWithCode(err, errors.ErrSecret,
			"Failed to read secrets file",
			fmt.Sprintf("Check that %s is readable", s.path))
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, errors.WrapWithCode(err, errors.ErrSecret,
			"Secrets file is not valid YAML",
			fmt.Sprintf("Fix or remove %s", s.path))
	}
	if file.Secrets == nil {
		file.Secrets = map[string]fileEntry{}
	}
	return file, nil
}

func (s *FileStore) write(file secretsFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to encode secrets file", "")
	}
	return writePrivate(s.path, data)
}

// loadKey reads the fernet key. With create set, a missing key is generated
// and written; otherwise a missing key returns nil.
func (s *FileStore) loadKey(create bool) (*fernet.Key, error) {
	data, err := os.ReadFile(s.keyPath)
	if err == nil {
		key, err := fernet.DecodeKey(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSecret,
				"Secrets key file is corrupted",
				fmt.Sprintf("Remove %s and re-save your profile passwords", s.keyPath))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.WrapWithCode(err, errors.ErrSecret,
			"Failed to read secrets key file",
			fmt.Sprintf("Check that %s is readable", s.keyPath))
	}
	if !create {
		return nil, nil
	}

	var k fernet.Key
	if err := k.Generate(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSecret, "Failed to generate secrets key", "")
	}
	if err := writePrivate(s.keyPath, []byte(k.Encode()+"\n")); err != nil {
		return nil, err
	}
	s.log.Info("generated secrets key at %s", s.keyPath)
	return &k, nil
}

func writePrivate(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret,
			"Failed to create secrets directory",
			fmt.Sprintf("Check permissions on %s", dir))
	}
	tmp, err := os.CreateTemp(dir, ".vmhop-*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to write "+path, "")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best effort after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to write "+path, "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to write "+path, "")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to write "+path, "")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.WrapWithCode(err, errors.ErrSecret, "Failed to replace "+path, "")
	}
	return nil
}
