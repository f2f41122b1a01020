package redis_client

import (
	"context"
	"time"

	redis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leeforge/imagevise/logging"
	"github.com/leeforge/imagevise/media/settings"
)

// SetReader is the part of a redis client KeySync needs.
type SetReader interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// KeySync copies secret keys and allowed hosts shared by a fleet from two
// redis sets into Settings. It only adds entries. Removing a key from
// redis takes effect on the next config reload or restart.
type KeySync struct {
	reader   SetReader
	settings *settings.Settings
	config   Config
	logger   logging.Logger
}

func NewKeySync(reader SetReader, s *settings.Settings, cnf Config) *KeySync {
	return &KeySync{
		reader:   reader,
		settings: s,
		config:   cnf,
		logger:   logging.Named("redis.sync"),
	}
}

// Sync performs one pass and reports how many members were read.
func (k *KeySync) Sync(ctx context.Context) (keys, hosts int, err error) {
	secretKeys, err := k.reader.SMembers(ctx, k.config.SecretKeysKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	allowedHosts, err := k.reader.SMembers(ctx, k.config.AllowedHostsKey()).Result()
	if err != nil {
		return 0, 0, err
	}

	for _, key := range secretKeys {
		k.settings.AddSecretKey(key)
	}
	for _, host := range allowedHosts {
		k.settings.AddAllowedHost(host)
	}
	return len(secretKeys), len(allowedHosts), nil
}

// Run syncs immediately and then every SyncInterval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (k *KeySync) Run(ctx context.Context) {
	k.syncAndLog(ctx)
	if k.config.SyncInterval <= 0 {
		return
	}

	ticker := time.NewTicker(k.config.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.syncAndLog(ctx)
		}
	}
}

func (k *KeySync) syncAndLog(ctx context.Context) {
	keys, hosts, err := k.Sync(ctx)
	if err != nil {
		k.logger.Warn("redis.sync_failed", zap.Error(err))
		return
	}
	k.logger.Debug("redis.synced", zap.Int("secret_keys", keys), zap.Int("allowed_hosts", hosts))
}
