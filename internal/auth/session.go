package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyFmt = "session:%s"

// SessionTimeout is the inactivity window refreshed on every request.
const SessionTimeout = 30 * time.Minute

func SetSession(ctx context.Context, rdb *redis.Client, userId string, token string, duration time.Duration) error {
	key := fmt.Sprintf(sessionKeyFmt, userId)
	return rdb.Set(ctx, key, token, duration).Err()
}

func GetSession(ctx context.Context, rdb *redis.Client, userId string) (string, error) {
	key := fmt.Sprintf(sessionKeyFmt, userId)
	return rdb.Get(ctx, key).Result()
}

func DeleteSession(ctx context.Context, rdb *redis.Client, userId string) error {
	key := fmt.Sprintf(sessionKeyFmt, userId)
	return rdb.Del(ctx, key).Err()
}

// ActiveSessionCount returns the number of unique users with live sessions.
func ActiveSessionCount(ctx context.Context, rdb *redis.Client) (int, error) {
	var cursor uint64
	userIds := make(map[string]struct{})
	for {
		keys, newCursor, err := rdb.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			id := strings.TrimPrefix(key, "session:")
			if id != "" && id != key {
				userIds[id] = struct{}{}
			}
		}
		if newCursor == 0 {
			break
		}
		cursor = newCursor
	}
	return len(userIds), nil
}
