package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/singletable/entity"
	"github.com/jacentio/singletable/internal/memddb"
	"github.com/jacentio/singletable/store"
)

const testTable = "SessionStore"

func newTestRepository(t *testing.T) (*Repository, *memddb.DB) {
	t.Helper()
	db := memddb.New()
	repo := New(db, store.Config{TableName: testTable})
	require.NoError(t, repo.CreateTable(context.Background()))
	return repo, db
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func putInput(item map[string]types.AttributeValue) *dynamodb.PutItemInput {
	return &dynamodb.PutItemInput{TableName: aws.String(testTable), Item: item}
}

func TestSchema(t *testing.T) {
	s := Schema()
	require.Len(t, s.KeySchema, 1)
	assert.Equal(t, entity.AttrSessionToken, *s.KeySchema[0].AttributeName)
	require.Len(t, s.GlobalSecondaryIndexes, 1)
	assert.Equal(t, "GSI1", *s.GlobalSecondaryIndexes[0].IndexName)
	assert.Equal(t, types.ProjectionTypeKeysOnly, s.GlobalSecondaryIndexes[0].Projection.ProjectionType)
	assert.Equal(t, "TTL", s.TTLAttribute)
}

func TestCreateTable_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepository(t)

	require.NoError(t, repo.CreateTable(ctx))
	assert.Equal(t, 2, db.Calls("CreateTable"))

	spec := db.TimeToLive(testTable)
	require.NotNil(t, spec)
	assert.Equal(t, "TTL", *spec.AttributeName)
}

func TestCreateTable_TTLFailureIsNotFatal(t *testing.T) {
	db := memddb.New()
	db.FailOn("UpdateTimeToLive", 1, errors.New("ttl not supported"))
	repo := New(db, store.Config{TableName: testTable})

	require.NoError(t, repo.CreateTable(context.Background()))
	assert.Nil(t, db.TimeToLive(testTable))
}

func TestAddToken_GetToken(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.nowFunc = (&clock{now: now}).Now

	token, err := repo.AddToken(ctx, "alexdebrie", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := repo.GetToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, token, got.Token)
	assert.Equal(t, "alexdebrie", got.Username)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))
}

func TestAddToken_StoresEpochTTL(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepository(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.nowFunc = (&clock{now: now}).Now

	_, err := repo.AddToken(ctx, "alexdebrie", time.Hour)
	require.NoError(t, err)

	items := db.Items(testTable)
	require.Len(t, items, 1)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1714568400"}, items[0][entity.AttrTTL])
	assert.Contains(t, items[0], "ExpriresAt")
}

func TestAddToken_InvalidInput(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	_, err := repo.AddToken(ctx, "", time.Hour)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = repo.AddToken(ctx, "alexdebrie", -time.Second)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestAddToken_ZeroTTLIsExpired(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepository(t)

	token, err := repo.AddToken(ctx, "alexdebrie", 0)
	require.NoError(t, err)

	got, err := repo.GetToken(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, got, "a zero-ttl token must never be returned")

	assert.Len(t, db.Items(testTable), 1, "expired tokens stay until deleted")
}

func TestGetToken_ExpiresAtBoundary(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo.nowFunc = c.Now

	token, err := repo.AddToken(ctx, "alexdebrie", 1500*time.Millisecond)
	require.NoError(t, err)

	c.Advance(time.Second)
	got, err := repo.GetToken(ctx, token)
	require.NoError(t, err)
	assert.NotNil(t, got, "token is valid before its expiry")

	c.Advance(500 * time.Millisecond)
	got, err = repo.GetToken(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, got, "token is expired at its expiry instant")
}

func TestGetToken_Missing(t *testing.T) {
	repo, _ := newTestRepository(t)
	got, err := repo.GetToken(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetToken_Malformed(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepository(t)

	item := entity.SessionToken{Token: "tok", Username: "u", ExpiresAt: time.Now().Add(time.Hour)}.Item()
	delete(item, entity.AttrCreatedAt)
	_, err := db.PutItem(ctx, putInput(item))
	require.NoError(t, err)

	_, err = repo.GetToken(ctx, "tok")
	assert.ErrorIs(t, err, store.ErrMalformedRecord)
}

func TestAddToken_Collision(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	repo.newToken = func() string { return "same-token" }

	_, err := repo.AddToken(ctx, "first", time.Hour)
	require.NoError(t, err)

	_, err = repo.AddToken(ctx, "second", time.Hour)
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := repo.GetToken(ctx, "same-token")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Username, "a collision must not overwrite the existing token")
}

func TestAddToken_ConcurrentCollision(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	repo.newToken = func() string { return "contended" }

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.AddToken(ctx, fmt.Sprintf("user-%d", i), time.Hour)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrConflict)
	}
	assert.Equal(t, 1, succeeded, "exactly one writer wins")
}

func TestAddToken_UniqueTokens(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := repo.AddToken(ctx, "alexdebrie", time.Hour)
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

func TestAddToken_StoreUnavailable(t *testing.T) {
	repo, db := newTestRepository(t)
	db.FailOn("PutItem", 1, context.DeadlineExceeded)

	_, err := repo.AddToken(context.Background(), "alexdebrie", time.Hour)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestDeleteToken(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	token, err := repo.AddToken(ctx, "alexdebrie", time.Hour)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteToken(ctx, token))
	got, err := repo.GetToken(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, repo.DeleteToken(ctx, token), "deleting a missing token is a no-op")
}

func TestDeleteUserTokens(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	var mine []string
	for i := 0; i < 3; i++ {
		token, err := repo.AddToken(ctx, "alexdebrie", time.Hour)
		require.NoError(t, err)
		mine = append(mine, token)
	}
	other, err := repo.AddToken(ctx, "someoneelse", time.Hour)
	require.NoError(t, err)

	n, err := repo.DeleteUserTokens(ctx, "alexdebrie")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, token := range mine {
		got, err := repo.GetToken(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	got, err := repo.GetToken(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, got, "other users' tokens are untouched")

	n, err = repo.DeleteUserTokens(ctx, "alexdebrie")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteUserTokens_PartialFailure(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepository(t)
	for i := 0; i < 3; i++ {
		_, err := repo.AddToken(ctx, "alexdebrie", time.Hour)
		require.NoError(t, err)
	}

	db.FailOn("DeleteItem", 2, context.DeadlineExceeded)
	n, err := repo.DeleteUserTokens(ctx, "alexdebrie")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Equal(t, 1, n)
	assert.Len(t, db.Items(testTable), 2)
}

func TestListAll(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	for _, user := range []string{"a", "b"} {
		_, err := repo.AddToken(ctx, user, 0)
		require.NoError(t, err)
	}

	items, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2, "scan returns expired tokens too")
}

func TestDescribeAndDeleteTable(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	desc, err := repo.DescribeTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, testTable, *desc.TableName)

	require.NoError(t, repo.WaitUntilActive(ctx, time.Second))

	_, err = repo.DeleteTable(ctx)
	require.NoError(t, err)

	_, err = repo.DescribeTable(ctx)
	assert.ErrorIs(t, err, store.ErrTableNotFound)
}
