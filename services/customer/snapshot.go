package customer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

type SnapshotData struct {
	Timestamp time.Time         `json:"timestamp"`
	Count     int               `json:"count"`
	Customers map[string]Record `json:"customers"`
}

// Snapshot persists the directory between restarts. Load returns nil when no
// snapshot exists.
type Snapshot interface {
	Load(ctx context.Context) (*SnapshotData, error)
	Save(ctx context.Context, data *SnapshotData) error
}

type FileSnapshot struct {
	Path string
}

func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{Path: path}
}

func (s *FileSnapshot) Load(_ context.Context) (*SnapshotData, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data SnapshotData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Save writes through a temp file so a crash never leaves a truncated snapshot.
func (s *FileSnapshot) Save(_ context.Context, data *SnapshotData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".customers-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

type kvStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type RedisSnapshot struct {
	rdb kvStore
	key string
}

func NewRedisSnapshot(rdb kvStore, key string) *RedisSnapshot {
	return &RedisSnapshot{rdb: rdb, key: key}
}

func (s *RedisSnapshot) Load(ctx context.Context) (*SnapshotData, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data SnapshotData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (s *RedisSnapshot) Save(ctx context.Context, data *SnapshotData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, b, 0).Err()
}
