package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements the Storage interface on local disk. Artifacts live
// under a data directory and are served back by the HTTP layer at
// {baseURL}/files/{name}.
type LocalStorage struct {
	dataDir string
	baseURL string
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage instance rooted at dataDir.
// If dataDir is empty, a directory under os.TempDir() is used. The directory
// is created if it doesn't exist. baseURL is the externally reachable server
// address used to build public URLs.
func NewLocalStorage(dataDir, baseURL string) (*LocalStorage, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "adforge")
	}

	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	return &LocalStorage{
		dataDir: dataDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// DataDir returns the data directory path.
func (s *LocalStorage) DataDir() string {
	return s.dataDir
}

// Save writes data to a file under the data directory and returns its path.
// The name may contain a single subdirectory, e.g. "videos/abc.mp4".
func (s *LocalStorage) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 - name is sanitized by resolve
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write artifact file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close artifact file: %w", err)
	}

	return path, nil
}

// Load opens a stored artifact. The caller closes the returned ReadCloser.
func (s *LocalStorage) Load(ctx context.Context, locator string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(locator) // #nosec G304 - locator comes from our own records
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	return f, nil
}

// Delete removes a stored artifact. Missing files are ignored.
func (s *LocalStorage) Delete(_ context.Context, locator string) error {
	if err := os.Remove(locator); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact file %s: %w", locator, err)
	}
	return nil
}

// PublicURL returns the URL the HTTP layer serves this artifact from.
// Names are server-generated (UUID-based) and need no escaping.
func (s *LocalStorage) PublicURL(name string) string {
	return s.baseURL + "/files/" + name
}

// Resolve maps an artifact name to its path under the data directory.
// Names that escape the data directory are rejected.
func (s *LocalStorage) Resolve(name string) (string, error) {
	return s.resolve(name)
}

func (s *LocalStorage) resolve(name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(s.dataDir, cleaned), nil
}
