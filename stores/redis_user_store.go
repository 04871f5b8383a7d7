package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/uam"
)

// RedisUserStore keeps user context snapshots in Redis as JSON values
// (key: uamuser:{userID}). A zero TTL keeps entries forever; a positive TTL
// turns the store into a context cache in front of a slower source.
type RedisUserStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "uamuser:%s"
	ttl    time.Duration
}

func NewRedisUserStore(client *redis.Client, ttl time.Duration) *RedisUserStore {
	return &RedisUserStore{client: client, keyFmt: "uamuser:%s", ttl: ttl}
}

func (r *RedisUserStore) key(userID string) string {
	return fmt.Sprintf(r.keyFmt, userID)
}

func (r *RedisUserStore) SaveUser(ctx context.Context, user *uam.UserContext) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(user.UserID), data, r.ttl).Err()
}

func (r *RedisUserStore) GetUser(ctx context.Context, userID string) (*uam.UserContext, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return nil, err
	}
	var user uam.UserContext
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *RedisUserStore) GrantPermission(ctx context.Context, userID, permission string, grant uam.PermissionGrant) error {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.CurrentPermissions == nil {
		user.CurrentPermissions = make(map[string]uam.PermissionGrant)
	}
	user.CurrentPermissions[permission] = grant
	return r.SaveUser(ctx, user)
}
