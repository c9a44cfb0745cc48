package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create thread: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: threads.participant_set_key")))
	assert.True(t, IsUniqueViolation(errors.New("Error 1062: Duplicate entry '1-2' for key 'idx_membership_user_club'")))
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "idx_threads_club_id"`)))
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("find: %w", gorm.ErrRecordNotFound)))
	assert.False(t, IsNotFound(errors.New("boom")))
}
