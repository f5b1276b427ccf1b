package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/models"
)

// UserCacheRepository caches login lookups (identifier -> user) in Redis.
type UserCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached users
}

// NewUserCacheRepository creates a new cache repository with the given TTL.
func NewUserCacheRepository(client *redis.Client, expiration time.Duration) *UserCacheRepository {
	return &UserCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func userCacheKey(identifier string) string {
	return fmt.Sprintf("user:identifier:%s", identifier)
}

// Get returns the cached user for identifier, or nil, nil on a miss.
func (r *UserCacheRepository) Get(ctx context.Context, identifier string) (*models.UserDB, error) {
	key := userCacheKey(identifier)

	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Log.Debugw("cache miss", "key", key)
		return nil, nil
	}
	if err != nil {
		logger.Log.Warnw("cache get failed", "key", key, "error", err)
		return nil, err
	}

	var user models.UserDB
	if err := json.Unmarshal(val, &user); err != nil {
		logger.Log.Warnw("cache entry is corrupted", "key", key, "error", err)
		return nil, err
	}

	logger.Log.Debugw("cache hit", "key", key, "user_id", user.ID)
	return &user, nil
}

// Set caches user under identifier with the repository TTL.
func (r *UserCacheRepository) Set(ctx context.Context, identifier string, user *models.UserDB) error {
	key := userCacheKey(identifier)

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	err = r.client.Set(ctx, key, data, r.exp).Err()
	logger.Log.Debugw("cache set", "key", key, "user_id", user.ID, "error", err)
	return err
}

// Delete drops the entry cached under identifier.
func (r *UserCacheRepository) Delete(ctx context.Context, identifier string) error {
	key := userCacheKey(identifier)
	err := r.client.Del(ctx, key).Err()
	logger.Log.Debugw("cache delete", "key", key, "error", err)
	return err
}
