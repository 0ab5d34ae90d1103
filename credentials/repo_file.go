package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const DefaultFileName = "credentials.json"

var _ Repo = (*FileRepo)(nil)

// FileRepo keeps the credential keys in a small JSON object on disk. Unknown
// keys already in the file are preserved.
type FileRepo struct {
	path string
	mu   sync.Mutex
}

// NewFileRepo stores credentials in folder/credentials.json.
func NewFileRepo(folder string) *FileRepo {
	return &FileRepo{path: filepath.Join(folder, DefaultFileName)}
}

func (r *FileRepo) Path() string {
	return r.path
}

func (r *FileRepo) Save(tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("FileRepo.Save: nil token")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("Discarding unreadable credentials file")
		values = map[string]string{}
	}
	for k, v := range Encode(tok) {
		values[k] = v
	}
	return r.write(values)
}

func (r *FileRepo) Load() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		log.Warn().Err(err).Str("path", r.path).Msg("Ignoring unreadable credentials file")
		return nil, ErrNoCredentials
	}
	return Decode(values)
}

func (r *FileRepo) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	values, err := r.read()
	if err != nil {
		// Nothing trustworthy in the file, drop it entirely.
		if rmErr := os.Remove(r.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("FileRepo.Clear: %w", rmErr)
		}
		return nil
	}
	if len(values) == 0 {
		return nil
	}

	delete(values, KeyAccessToken)
	delete(values, KeyRefreshToken)
	delete(values, KeyTokenExpiry)
	if len(values) == 0 {
		if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("FileRepo.Clear: %w", err)
		}
		return nil
	}
	return r.write(values)
}

// read returns an empty map when the file does not exist.
func (r *FileRepo) read() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return values, nil
}

func (r *FileRepo) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("FileRepo.write mkdir: %w", err)
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("FileRepo.write marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("FileRepo.write temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("FileRepo.write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("FileRepo.write chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("FileRepo.write close: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("FileRepo.write rename: %w", err)
	}
	return nil
}
