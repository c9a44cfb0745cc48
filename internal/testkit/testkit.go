// Package testkit opens isolated, migrated sqlite databases and seeds fixtures for
// repository, service and controller tests.
package testkit

import (
	"fmt"
	"strings"
	"testing"

	"clubnet_backend/internal/model"
	"clubnet_backend/pkg/database"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a fresh in-memory database private to the test. A single
// connection serializes writers, so every query inside a transaction must go
// through the transaction handle.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open("sqlite", dsn, logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// User inserts a user with a random unique username.
func User(t testing.TB, db *gorm.DB) *model.User {
	t.Helper()
	name := strings.ToLower(gofakeit.Username()) + "_" + uuid.NewString()[:8]
	u := &model.User{
		Username:    name,
		DisplayName: gofakeit.Name(),
		Email:       gofakeit.Email(),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Users inserts n users.
func Users(t testing.TB, db *gorm.DB, n int) []*model.User {
	t.Helper()
	out := make([]*model.User, n)
	for i := range out {
		out[i] = User(t, db)
	}
	return out
}

// Course inserts a course named name.
func Course(t testing.TB, db *gorm.DB, name string) *model.Course {
	t.Helper()
	c := &model.Course{Name: name, Description: gofakeit.Sentence(6)}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Befriend inserts an accepted friend request from a to b.
func Befriend(t testing.TB, db *gorm.DB, a, b uint) {
	t.Helper()
	key := model.PairKey(a, b)
	require.NoError(t, db.Create(&model.FriendRequest{
		FromUserID:    a,
		ToUserID:      b,
		Status:        model.FriendRequestAccepted,
		ActivePairKey: &key,
	}).Error)
}
