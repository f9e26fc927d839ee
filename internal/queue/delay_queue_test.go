package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestQueue(t *testing.T, client *redis.Client) *DelayQueue {
	key := fmt.Sprintf("queue:test:%s:%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), key) })
	return NewDelayQueue(client, key)
}

func TestPopDueOnlyReturnsExpired(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	q := newTestQueue(t, client)

	if err := q.Push(ctx, Job{Type: JobActivateSession, EntityID: 1}, 0); err != nil {
		t.Fatalf("push due: %v", err)
	}
	if err := q.Push(ctx, Job{Type: JobActivateSession, EntityID: 2}, time.Hour); err != nil {
		t.Fatalf("push future: %v", err)
	}

	jobs, err := q.PopDue(ctx, 10)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("popped %d jobs, want 1", len(jobs))
	}
	if jobs[0].EntityID != 1 {
		t.Fatalf("popped entity %d, want 1", jobs[0].EntityID)
	}

	// 未到期的任务还留在队列里
	if n, _ := client.ZCard(ctx, q.key).Result(); n != 1 {
		t.Fatalf("queue size = %d, want 1", n)
	}
}

func TestPopDueRemovesPopped(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	q := newTestQueue(t, client)

	if err := q.Push(ctx, Job{Type: JobActivateGroupBuy, EntityID: 9}, 0); err != nil {
		t.Fatalf("push: %v", err)
	}

	first, err := q.PopDue(ctx, 10)
	if err != nil {
		t.Fatalf("first pop: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first pop size = %d, want 1", len(first))
	}

	// 同一条任务不会被第二次弹出
	second, err := q.PopDue(ctx, 10)
	if err != nil {
		t.Fatalf("second pop: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second pop size = %d, want 0", len(second))
	}
}

func TestPopDueHonorsLimit(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	q := newTestQueue(t, client)

	for i := int64(1); i <= 5; i++ {
		if err := q.Push(ctx, Job{Type: JobActivateSession, EntityID: i}, 0); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	jobs, err := q.PopDue(ctx, 3)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("popped %d jobs, want 3", len(jobs))
	}
	rest, err := q.PopDue(ctx, 10)
	if err != nil {
		t.Fatalf("second pop: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("remaining pop = %d, want 2", len(rest))
	}
}
