package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sfredis "github.com/angelmondragon/storefront/pkg/redis"
)

type fakeRedis struct {
	data     map[string]string
	ttls     map[string]time.Duration
	batches  int
	batchErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", sfredis.ErrNil
	}
	return v, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Batch(ctx context.Context, sets map[string]string, ttl time.Duration, dels []string) error {
	f.batches++
	if f.batchErr != nil {
		return f.batchErr
	}
	for k, v := range sets {
		_ = f.Set(ctx, k, v, ttl)
	}
	return f.Del(ctx, dels...)
}

func (f *fakeRedis) StorageKey(parts ...string) string {
	clean := []string{"sf", "storage"}
	for _, p := range parts {
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, ":")
}

func TestRedisStorage(t *testing.T) {
	fake := newFakeRedis()
	exerciseStorage(t, Namespaced(NewRedis(fake, time.Hour), "client-1"))
}

func TestRedisStorageKeysAndTTL(t *testing.T) {
	fake := newFakeRedis()
	s := Namespaced(NewRedis(fake, 24*time.Hour), "client-1")

	require.NoError(t, s.Set(context.Background(), KeyCart, `[]`))
	assert.Equal(t, `[]`, fake.data["sf:storage:client-1:cart"])
	assert.Equal(t, 24*time.Hour, fake.ttls["sf:storage:client-1:cart"])
}

func TestRedisStorageApplyIsOneTransaction(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := Namespaced(NewRedis(fake, time.Hour), "client-1")
	require.NoError(t, s.Set(ctx, "stale", "x"))

	require.NoError(t, Apply(ctx, s, map[string]string{KeyUserToken: "tok", KeyUserData: `{"id":1}`}, []string{"stale"}))
	assert.Equal(t, 1, fake.batches)
	assert.Equal(t, "tok", fake.data["sf:storage:client-1:userToken"])
	assert.Equal(t, `{"id":1}`, fake.data["sf:storage:client-1:userData"])
	assert.Equal(t, time.Hour, fake.ttls["sf:storage:client-1:userData"])
	assert.NotContains(t, fake.data, "sf:storage:client-1:stale")

	fake.batchErr = errors.New("EXECABORT")
	err := Apply(ctx, Namespaced(NewRedis(fake, 0), "client-2"), map[string]string{KeyUserToken: "tok", KeyUserData: "{}"}, nil)
	require.Error(t, err)
	assert.NotContains(t, fake.data, "sf:storage:client-2:userToken")
	assert.NotContains(t, fake.data, "sf:storage:client-2:userData")
}
