package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	sessionStoreVar   = "SESSION_STORE"
	sessionFileVar    = "SESSION_FILE"
	sessionSecretVar  = "SESSION_SECRET"
	persistTimeoutVar = "SESSION_PERSIST_TIMEOUT"
	redisURLVar       = "REDIS_URL"
	redisPrefixVar    = "REDIS_PREFIX"
)

// Session store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type SessionConfig interface {
	GetSessionStore() string
	GetSessionFile() string
	GetSessionSecret() string
	GetPersistTimeout() time.Duration
	GetRedisURL() string
	GetRedisPrefix() string
}

type Session struct {
	src source
}

var _ SessionConfig = Session{}

func (s Session) GetSessionStore() string {
	switch store := strings.ToLower(s.src.get(sessionStoreVar, StoreFile)); store {
	case StoreRedis, StoreMemory:
		return store
	default:
		return StoreFile
	}
}

func (s Session) GetSessionFile() string {
	folder := EnvVars(s).GetDataFolder()
	return s.src.get(sessionFileVar, filepath.Join(folder, "session.json"))
}

// GetSessionSecret returns the secret used to seal the session file. Empty
// means the file is stored as plain JSON.
func (s Session) GetSessionSecret() string {
	return s.src.get(sessionSecretVar, "")
}

// GetPersistTimeout bounds each write of the session snapshot.
func (s Session) GetPersistTimeout() time.Duration {
	return s.src.duration(persistTimeoutVar, 5*time.Second)
}

func (s Session) GetRedisURL() string {
	return s.src.get(redisURLVar, "redis://localhost:6379/0")
}

func (s Session) GetRedisPrefix() string {
	return s.src.get(redisPrefixVar, "school-portal:")
}
