package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"whitelist-intake/internal/models"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "intake:session:"

// RedisSnapshots stores session snapshots as JSON documents in Redis.
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshots returns a snapshot store. A zero ttl keeps snapshots
// until they are deleted on close.
func NewRedisSnapshots(client *redis.Client, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{client: client, ttl: ttl}
}

func snapshotKey(channel string) string {
	return snapshotKeyPrefix + channel
}

func (r *RedisSnapshots) Save(ctx context.Context, snap models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey(snap.Channel), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, channel string) error {
	if err := r.client.Del(ctx, snapshotKey(channel)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// LoadAll returns every stored snapshot. Undecodable entries are skipped.
func (r *RedisSnapshots) LoadAll(ctx context.Context) ([]models.SessionSnapshot, error) {
	var snaps []models.SessionSnapshot
	iter := r.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", iter.Val(), err)
		}
		var snap models.SessionSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return snaps, nil
}

// validateSnapshot checks that a snapshot describes a reachable session
// state for a questionnaire of count questions.
func validateSnapshot(snap models.SessionSnapshot, count int) error {
	if snap.Channel == "" {
		return errors.New("snapshot has no channel")
	}
	answers := len(snap.Answers)
	switch snap.State {
	case models.StateAwaitingBatch:
		if snap.Index < 0 || snap.Index >= count || answers != snap.Index {
			return fmt.Errorf("awaiting question %d of %d with %d answers", snap.Index+1, count, answers)
		}
	case models.StateCompleted:
		if answers != count {
			return fmt.Errorf("completed with %d of %d answers", answers, count)
		}
	case models.StateAwaitingSupplemental:
		if answers != count {
			return fmt.Errorf("supplemental round with %d of %d answers", answers, count)
		}
		sup := snap.Supplemental
		if sup == nil || sup.Cursor < 0 || sup.Cursor >= len(sup.Indices) {
			return errors.New("supplemental round has no pending question")
		}
		for _, idx := range sup.Indices {
			if idx < 1 || idx > count {
				return fmt.Errorf("supplemental question %d out of range 1..%d", idx, count)
			}
		}
	default:
		return fmt.Errorf("unknown state %q", snap.State)
	}
	return nil
}
