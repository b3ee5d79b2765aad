package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rileyhilliard/vmhop/internal/errors"
	"github.com/rileyhilliard/vmhop/internal/logger"
	"gopkg.in/yaml.v3"
)

// profilesFile is the on-disk shape of the YAML store.
type profilesFile struct {
	Version  int       `yaml:"version"`
	Profiles []Profile `yaml:"profiles"`
}

const profilesFileVersion = 1

// YAMLStore keeps profiles in a single YAML file.
// The file is re-read on every call so edits made by other processes are seen.
type YAMLStore struct {
	mu   sync.Mutex
	path string
	log  logger.Logger
}

// NewYAMLStore creates a store backed by the file at path.
// The file and its directory are created on first save.
func NewYAMLStore(path string, log logger.Logger) *YAMLStore {
	if log == nil {
		log = logger.Noop()
	}
	return &YAMLStore{path: path, log: log}
}

// Path returns the backing file path.
func (s *YAMLStore) Path() string {
	return s.path
}

// List returns every stored profile in file order.
func (s *YAMLStore) List(_ context.Context) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Profile, len(profiles))
	for i, p := range profiles {
		out[i] = p.Clone()
	}
	return out, nil
}

// Get looks a profile up by name.
func (s *YAMLStore) Get(_ context.Context, name string) (Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return Profile{}, false, err
	}
	if i := indexOf(profiles, name); i >= 0 {
		return profiles[i].Clone(), true, nil
	}
	return Profile{}, false, nil
}

// Save inserts or replaces the profile with the same name.
func (s *YAMLStore) Save(_ context.Context, p Profile) error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	p.Name = normalizeName(p.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return err
	}

	if i := indexOf(profiles, p.Name); i >= 0 {
		profiles[i] = p.Clone()
	} else {
		profiles = append(profiles, p.Clone())
	}

	if err := s.write(profiles); err != nil {
		return err
	}
	s.log.Info("saved profile: %s", p.Name)
	return nil
}

// Delete removes a profile. Missing profiles are logged and ignored.
func (s *YAMLStore) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load()
	if err != nil {
		return err
	}

	i := indexOf(profiles, name)
	if i < 0 {
		s.log.Warn("profile not found for deletion: %s", name)
		return nil
	}

	profiles = append(profiles[:i], profiles[i+1:]...)
	if err := s.write(profiles); err != nil {
		return err
	}
	s.log.Info("deleted profile: %s", name)
	return nil
}

func (s *YAMLStore) load() ([]Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrProfile,
			"Failed to read profiles file",
			fmt.Sprintf("Check that %s is readable", s.path))
	}

	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrProfile,
			"Profiles file is not valid YAML",
			fmt.Sprintf("Fix or remove %s", s.path))
	}
	if file.Version > profilesFileVersion {
		return nil, errors.New(errors.ErrProfile,
			fmt.Sprintf("Profiles file is from a newer vmhop (version %d)", file.Version),
			"Upgrade vmhop to read this file.")
	}
	return file.Profiles, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *YAMLStore) write(profiles []Profile) error {
	if profiles == nil {
		profiles = []Profile{}
	}
	data, err := yaml.Marshal(profilesFile{Version: profilesFileVersion, Profiles: profiles})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile, "Failed to encode profiles", "")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile,
			"Failed to create profiles directory",
			fmt.Sprintf("Check permissions on %s", dir))
	}

	tmp, err := os.CreateTemp(dir, ".profiles-*.yaml")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile, "Failed to write profiles file", "")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // best effort after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.WrapWithCode(err, errors.ErrProfile, "Failed to write profiles file", "")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile, "Failed to write profiles file", "")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile, "Failed to write profiles file", "")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.WrapWithCode(err, errors.ErrProfile,
			"Failed to replace profiles file",
			fmt.Sprintf("Check permissions on %s", s.path))
	}
	return nil
}

func indexOf(profiles []Profile, name string) int {
	for i, p := range profiles {
		if SameName(p.Name, name) {
			return i
		}
	}
	return -1
}
