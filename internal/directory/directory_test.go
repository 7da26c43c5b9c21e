package directory

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"classbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "directory.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRegisterAndAuthenticate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user, err := db.RegisterUser(ctx, "alice", "Alice", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)

	_, err = db.RegisterUser(ctx, "alice", "Alice Again", "other", "")
	assert.ErrorIs(t, err, ErrUserExists)

	authed, err := db.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", authed.ID)

	_, err = db.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = db.Authenticate(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetUserUnknownIsNil(t *testing.T) {
	db := newTestDB(t)

	user, err := db.GetUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestPasswordIsStoredHashed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.RegisterUser(ctx, "alice", "Alice", "s3cret", "")
	require.NoError(t, err)

	user, err := db.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, "s3cret", user.PasswordHash)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestEnsureAdmin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.EnsureAdmin(ctx, "admin", "changeme"))
	// Second call is a no-op and must not reset the password.
	require.NoError(t, db.EnsureAdmin(ctx, "admin", "different"))

	user, err := db.Authenticate(ctx, "admin", "changeme")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestClassroomCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := db.CreateClassroom(ctx, models.Classroom{
		Name:      "Room 101",
		Location:  "Building A",
		Capacity:  20,
		Equipment: models.Equipment{Projector: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	got, err := db.GetClassroom(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Room 101", got.Name)
	assert.True(t, got.Equipment.Projector)
	assert.False(t, got.Equipment.Whiteboard)

	missing, err := db.GetClassroom(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	got.Capacity = 25
	require.NoError(t, db.UpdateClassroom(ctx, *got))
	updated, err := db.GetClassroom(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Capacity)

	all, err := db.GetAllClassrooms(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFilterClassrooms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rooms := []models.Classroom{
		{Name: "Small", Location: "A", Capacity: 10, Equipment: models.Equipment{Whiteboard: true}},
		{Name: "Medium", Location: "A", Capacity: 30, Equipment: models.Equipment{Projector: true}},
		{Name: "Large", Location: "B", Capacity: 100, Equipment: models.Equipment{Projector: true, Whiteboard: true}},
	}
	require.NoError(t, db.SeedClassrooms(ctx, rooms))
	// Re-seeding an already populated catalog is a no-op.
	require.NoError(t, db.SeedClassrooms(ctx, rooms))

	all, err := db.GetAllClassrooms(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	minCap := 20
	projector := true
	noWhiteboard := false

	got, err := db.FilterClassrooms(ctx, ClassroomFilter{MinCapacity: &minCap})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = db.FilterClassrooms(ctx, ClassroomFilter{Projector: &projector, Whiteboard: &noWhiteboard})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Medium", got[0].Name)

	got, err = db.FilterClassrooms(ctx, ClassroomFilter{Location: "B"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Large", got[0].Name)

	got, err = db.FilterClassrooms(ctx, ClassroomFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
