//go:build integration

package postgresdb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

const migrationsDir = "../../../cmd/contentapi/migrations"

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "contentapi_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/contentapi_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestPostgresDBAgainstRealDatabase(t *testing.T) {
	ctx := context.Background()

	var (
		db  *PostgresDB
		err error
	)
	require.Eventually(t, func() bool {
		db, err = New(ctx, dsn, 5*time.Second, migrationsDir, WithDBPreReset(true))
		return err == nil
	}, 30*time.Second, time.Second)
	t.Cleanup(func() { _ = db.Close() })

	alice := &models.User{ID: uuid.NewString(), Email: "alice@example.com", HashedPassword: "h", CreatedAt: time.Now().UTC()}
	require.NoError(t, db.CreateUser(ctx, alice))
	assert.ErrorIs(t, db.CreateUser(ctx, &models.User{ID: uuid.NewString(), Email: alice.Email, HashedPassword: "x", CreatedAt: time.Now()}), models.ErrDuplicateEmail)

	bob := &models.User{ID: uuid.NewString(), Email: "bob@example.com", HashedPassword: "h", CreatedAt: time.Now().UTC()}
	require.NoError(t, db.CreateUser(ctx, bob))

	older := &models.Content{ID: uuid.NewString(), Text: "older", OwnerID: alice.ID, CreatedAt: time.Now().UTC().Add(-time.Minute)}
	newer := &models.Content{ID: uuid.NewString(), Text: "newer", OwnerID: alice.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, db.CreateContent(ctx, older))
	require.NoError(t, db.CreateContent(ctx, newer))

	pending, err := db.ListUnanalyzedContents(ctx, models.ContentCursor{}, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, older.ID, pending[0].ID)

	pending, err = db.ListUnanalyzedContents(ctx, models.CursorOf(pending[0]), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, newer.ID, pending[0].ID)

	updated, err := db.UpdateContentAnalysis(ctx, older.ID, "older", models.SentimentNeutral)
	require.NoError(t, err)
	assert.True(t, updated.IsAnalyzed())

	_, err = db.UpdateContentAnalysis(ctx, older.ID, "again", models.SentimentPositive)
	assert.ErrorIs(t, err, models.ErrAlreadyAnalyzed)

	_, err = db.UpdateContentAnalysis(ctx, uuid.NewString(), "none", models.SentimentPositive)
	assert.ErrorIs(t, err, models.ErrNotFound)

	sameInstant := time.Now().UTC()
	first := &models.Content{ID: uuid.NewString(), Text: "first", OwnerID: bob.ID, CreatedAt: sameInstant}
	second := &models.Content{ID: uuid.NewString(), Text: "second", OwnerID: bob.ID, CreatedAt: sameInstant}
	require.NoError(t, db.CreateContent(ctx, first))
	require.NoError(t, db.CreateContent(ctx, second))

	bobs, err := db.ListContentsByOwner(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobs, 2)
	assert.Equal(t, second.ID, bobs[0].ID)

	list, err := db.ListContentsByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	_, found, err := db.GetContentForOwner(ctx, older.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := db.DeleteContentForOwner(ctx, older.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = db.DeleteContentForOwner(ctx, older.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	users, err := db.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), users)

	contents, err := db.CountContents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), contents)
}
