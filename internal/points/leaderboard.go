// Package points holds the point table and the Redis-backed global
// leaderboard cache.
package points

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Reasons double as notification/activity kinds where they overlap.
const (
	ProjectCreated = "project.created"
	PostCreated    = "post.created"
	Announcement   = "announcement"
	PostCommented  = "post.commented"
	PostLiked      = "post.liked"
	TaskCreated    = "task.created"
	TaskCompleted  = "task.completed"
)

var table = map[string]int{
	ProjectCreated: 25,
	PostCreated:    10,
	Announcement:   10,
	PostCommented:  5,
	PostLiked:      2,
	TaskCreated:    5,
	TaskCompleted:  20,
}

// For returns the points awarded for reason, or 0 when it is not scored.
func For(reason string) int {
	return table[reason]
}

const globalKey = "leaderboard:global"

// Score is a single leaderboard slot as stored in the sorted set.
type Score struct {
	UserID string
	Points int
}

// Board caches the global leaderboard in a Redis sorted set.
type Board struct {
	client *redis.Client
	key    string
}

func NewBoard(client *redis.Client) *Board {
	return &Board{client: client, key: globalKey}
}

func (b *Board) Enabled() bool {
	return b != nil && b.client != nil
}

// Set stores the user's absolute total.
func (b *Board) Set(ctx context.Context, userID string, total int) error {
	if err := b.client.ZAdd(ctx, b.key, redis.Z{Score: float64(total), Member: userID}).Err(); err != nil {
		return fmt.Errorf("leaderboard set: %w", err)
	}
	return nil
}

// Top returns the highest scores. Members tied with a positive last slot are
// all included, so the result may be longer than limit; the caller orders
// ties by username and trims.
func (b *Board) Top(ctx context.Context, limit int) ([]Score, error) {
	entries, err := b.client.ZRevRangeWithScores(ctx, b.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard range: %w", err)
	}
	if limit > 0 && len(entries) == limit && entries[limit-1].Score > 0 {
		floor := strconv.FormatFloat(entries[len(entries)-1].Score, 'f', -1, 64)
		entries, err = b.client.ZRevRangeByScoreWithScores(ctx, b.key, &redis.ZRangeBy{Max: "+inf", Min: floor}).Result()
		if err != nil {
			return nil, fmt.Errorf("leaderboard range: %w", err)
		}
	}
	out := make([]Score, 0, len(entries))
	for _, entry := range entries {
		member, ok := entry.Member.(string)
		if !ok {
			continue
		}
		out = append(out, Score{UserID: member, Points: int(entry.Score)})
	}
	return out, nil
}

func (b *Board) Size(ctx context.Context) (int64, error) {
	n, err := b.client.ZCard(ctx, b.key).Result()
	if err != nil {
		return 0, fmt.Errorf("leaderboard size: %w", err)
	}
	return n, nil
}

// Rebuild replaces the set with totals loaded from the database.
func (b *Board) Rebuild(ctx context.Context, scores []Score) error {
	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.key)
	if len(scores) > 0 {
		members := make([]redis.Z, 0, len(scores))
		for _, score := range scores {
			members = append(members, redis.Z{Score: float64(score.Points), Member: score.UserID})
		}
		pipe.ZAdd(ctx, b.key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("leaderboard rebuild: %w", err)
	}
	return nil
}
