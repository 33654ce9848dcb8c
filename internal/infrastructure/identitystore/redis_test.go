package identitystore

import (
	"context"
	"testing"
	"time"

	"edustack-web/internal/application/session"
	"edustack-web/internal/pkg/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

func identity() *session.Identity {
	return &session.Identity{
		Token:            "tok",
		User:             session.User{ID: "u1", Email: "a@b.test"},
		Memberships:      []session.Membership{{SchoolID: "S1", Role: constants.Teacher, Active: true}},
		SelectedSchoolID: "S1",
	}
}

func TestRedisStore_LoadEmpty(t *testing.T) {
	rdb, _ := setupRedis(t)
	id, err := New(rdb, "sid", time.Hour).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestRedisStore_SaveLoadErase(t *testing.T) {
	rdb, mr := setupRedis(t)
	ctx := context.Background()
	s := New(rdb, "sid", time.Hour)

	require.NoError(t, s.Save(ctx, identity()))
	assert.True(t, mr.Exists("identity:sid"))
	assert.Equal(t, time.Hour, mr.TTL("identity:sid"))
	members, err := mr.Members("user_sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sid"}, members)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "S1", got.SelectedSchoolID)
	assert.Equal(t, constants.Teacher, got.Memberships[0].Role)

	require.NoError(t, s.Erase(ctx))
	assert.False(t, mr.Exists("identity:sid"))
	members, _ = mr.Members("user_sessions:u1")
	assert.Empty(t, members)
}

func TestRedisStore_CorruptedData(t *testing.T) {
	rdb, mr := setupRedis(t)
	require.NoError(t, mr.Set("identity:sid", "{not json"))

	_, err := New(rdb, "sid", 0).Load(context.Background())
	assert.ErrorIs(t, err, session.ErrMalformedIdentity)
}

func TestDestroyUserSessions(t *testing.T) {
	rdb, mr := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, New(rdb, "a", 0).Save(ctx, identity()))
	require.NoError(t, New(rdb, "b", 0).Save(ctx, identity()))

	removed, err := DestroyUserSessions(ctx, rdb, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, removed)
	assert.False(t, mr.Exists("identity:a"))
	assert.False(t, mr.Exists("identity:b"))
	assert.False(t, mr.Exists("user_sessions:u1"))

	removed, err = DestroyUserSessions(ctx, rdb, "")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestFactory_BindsSessionID(t *testing.T) {
	rdb, mr := setupRedis(t)
	store := Factory(rdb, 0)("xyz")
	require.NoError(t, store.Save(context.Background(), identity()))
	assert.True(t, mr.Exists("identity:xyz"))
}
