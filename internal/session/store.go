package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps the token for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(context.Context) error {
	return m.Save(context.Background(), "")
}

// tokenFile is the on-disk layout of FileStore.
type tokenFile struct {
	APIToken string    `toml:"apiToken"`
	SavedAt  time.Time `toml:"savedAt,omitempty"`
}

// FileStore persists the token in a small TOML file, readable only by the
// owner. A missing file means no token.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var tf tokenFile
	if _, err := toml.DecodeFile(f.path, &tf); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return tf.APIToken, nil
}

func (f *FileStore) Save(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	// Write to a sibling file and rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(tokenFile{APIToken: token, SavedAt: time.Now().UTC()}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Delete(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// RedisStore keeps the token under "<prefix>:apiToken" so several processes
// can share one login.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	key := TokenKey
	if prefix != "" {
		key = prefix + ":" + TokenKey
	}
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", r.key, err)
	}
	return token, nil
}

func (r *RedisStore) Save(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.key, err)
	}
	return nil
}
