package lock

import (
	"context"
	"errors"
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

func testKey(t *testing.T) string {
	return fmt.Sprintf("lock:test:%s:%d", t.Name(), time.Now().UnixNano())
}

func TestAcquireRelease(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	mgr := NewManager(client, nil)
	key := testKey(t)
	defer client.Del(ctx, key)

	token, err := mgr.Acquire(ctx, key, 5*time.Second, 1)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if token == "" {
		t.Fatal("token must not be empty")
	}
	if err := mgr.Release(ctx, key, token); err != nil {
		t.Fatalf("release: %v", err)
	}

	// 释放后可以立即再次获取
	token2, err := mgr.Acquire(ctx, key, 5*time.Second, 1)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	if token2 == token {
		t.Fatal("tokens must differ between acquisitions")
	}
	_ = mgr.Release(ctx, key, token2)
}

func TestAcquireBusy(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	mgr := NewManager(client, nil)
	key := testKey(t)
	defer client.Del(ctx, key)

	token, err := mgr.Acquire(ctx, key, 5*time.Second, 1)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer mgr.Release(ctx, key, token)

	if _, err := mgr.Acquire(ctx, key, 5*time.Second, 2); !errors.Is(err, ErrLockBusy) {
		t.Fatalf("second acquire err = %v, want ErrLockBusy", err)
	}
}

func TestAcquireSucceedsWhenHolderExpires(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	mgr := NewManager(client, nil)
	key := testKey(t)
	defer client.Del(ctx, key)

	// 持有者的 TTL 小于重试退避的总时长，后续尝试必须拿到锁
	holder, err := mgr.Acquire(ctx, key, 60*time.Millisecond, 1)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	token, err := mgr.Acquire(ctx, key, 5*time.Second, 3)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if token == holder {
		t.Fatal("new acquisition reused the expired holder token")
	}
	if err := mgr.Release(ctx, key, token); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestReleaseTokenMismatch(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	mgr := NewManager(client, nil)
	key := testKey(t)
	defer client.Del(ctx, key)

	token, err := mgr.Acquire(ctx, key, 5*time.Second, 1)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer mgr.Release(ctx, key, token)

	// 用错误的 token 释放不能删掉别人的锁
	if err := mgr.Release(ctx, key, "stale-token"); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("release with wrong token err = %v, want ErrNotHeld", err)
	}
	if val, _ := client.Get(ctx, key).Result(); val != token {
		t.Fatalf("lock value = %q, want original token", val)
	}
}

func TestAcquireAllReleasesOnFailure(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	mgr := NewManager(client, nil)
	k1, k2 := testKey(t)+":a", testKey(t)+":b"
	defer client.Del(ctx, k1, k2)

	// 预先占住第二把锁，批量加锁必须失败并放掉第一把
	blocker, err := mgr.Acquire(ctx, k2, 5*time.Second, 1)
	if err != nil {
		t.Fatalf("block k2: %v", err)
	}
	defer mgr.Release(ctx, k2, blocker)

	if _, err := mgr.AcquireAll(ctx, []string{k1, k2}, 5*time.Second, 1); !errors.Is(err, ErrLockBusy) {
		t.Fatalf("AcquireAll err = %v, want ErrLockBusy", err)
	}
	if n, _ := client.Exists(ctx, k1).Result(); n != 0 {
		t.Fatal("first lock must be released after batch failure")
	}
}
