package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUserExists is returned when registering a taken username.
var ErrUserExists = errors.New("username already exists")

// User is one credentials record. Password is a bcrypt hash.
type User struct {
	Email     string `yaml:"email"`
	Name      string `yaml:"name,omitempty"`
	FirstName string `yaml:"first_name,omitempty"`
	LastName  string `yaml:"last_name,omitempty"`
	Password  string `yaml:"password"`
}

// DisplayName returns the name shown in the greeting.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CookieConfig controls the auth cookie.
type CookieConfig struct {
	Name       string `yaml:"name"`
	Key        string `yaml:"key"`
	ExpiryDays int    `yaml:"expiry_days"`
}

// Config is the credentials file layout.
type Config struct {
	Credentials struct {
		Usernames map[string]User `yaml:"usernames"`
	} `yaml:"credentials"`
	Cookie        CookieConfig `yaml:"cookie"`
	Preauthorized struct {
		Emails []string `yaml:"emails,omitempty"`
	} `yaml:"preauthorized,omitempty"`
}

const (
	defaultCookieName = "mathpad_auth"
	defaultExpiryDays = 30
)

func (c *Config) applyDefaults() {
	if c.Credentials.Usernames == nil {
		c.Credentials.Usernames = make(map[string]User)
	}
	if c.Cookie.Name == "" {
		c.Cookie.Name = defaultCookieName
	}
	if c.Cookie.ExpiryDays <= 0 {
		c.Cookie.ExpiryDays = defaultExpiryDays
	}
}

// FileStore reads and appends to the credentials file. Records are never
// modified once written.
type FileStore struct {
	path string
	mu   sync.Mutex
	cfg  Config
}

// OpenFileStore loads path. A missing file is treated as empty and is
// created on the first registration.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading credentials: %w", err)
	default:
		if err := yaml.Unmarshal(data, &fs.cfg); err != nil {
			return nil, fmt.Errorf("parsing credentials %s: %w", path, err)
		}
	}
	fs.cfg.applyDefaults()
	return fs, nil
}

// Path returns the file location.
func (f *FileStore) Path() string { return f.path }

// Cookie returns the cookie settings.
func (f *FileStore) Cookie() CookieConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Cookie
}

// Lookup returns the record for username.
func (f *FileStore) Lookup(username string) (User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.cfg.Credentials.Usernames[username]
	return u, ok
}

// Usernames returns every username, sorted.
func (f *FileStore) Usernames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.cfg.Credentials.Usernames))
	for n := range f.cfg.Credentials.Usernames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Add appends a record and rewrites the file atomically.
func (f *FileStore) Add(username string, u User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.cfg.Credentials.Usernames[username]; ok {
		return ErrUserExists
	}
	f.cfg.Credentials.Usernames[username] = u
	if err := f.writeLocked(); err != nil {
		delete(f.cfg.Credentials.Usernames, username)
		return err
	}
	return nil
}

func (f *FileStore) writeLocked() error {
	data, err := yaml.Marshal(&f.cfg)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing credentials: %w", err)
	}
	return nil
}
