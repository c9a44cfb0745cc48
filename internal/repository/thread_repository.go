package repository

import (
	"context"
	"time"

	"clubnet_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ThreadRepository struct {
	DB *gorm.DB
}

func NewThreadRepository(db *gorm.DB) *ThreadRepository {
	return &ThreadRepository{DB: db}
}

func (r *ThreadRepository) WithTx(tx *gorm.DB) *ThreadRepository {
	return &ThreadRepository{DB: tx}
}

func (r *ThreadRepository) first(ctx context.Context, query string, args ...interface{}) (*model.Thread, error) {
	var thread model.Thread
	err := r.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("user_id") }).
		Where(query, args...).
		First(&thread).Error
	if err != nil {
		return nil, err
	}
	thread.FillParticipantIDs()
	return &thread, nil
}

func (r *ThreadRepository) FindByID(ctx context.Context, id uint) (*model.Thread, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ThreadRepository) FindBySetKey(ctx context.Context, key string) (*model.Thread, error) {
	return r.first(ctx, "participant_set_key = ?", key)
}

func (r *ThreadRepository) FindByClub(ctx context.Context, clubID uint) (*model.Thread, error) {
	return r.first(ctx, "club_id = ?", clubID)
}

func (r *ThreadRepository) FindByCourse(ctx context.Context, courseID uint) (*model.Thread, error) {
	return r.first(ctx, "course_id = ?", courseID)
}

// Create inserts the thread and one participant row per id in a single
// transaction. A unique violation on any link or key column is returned as is.
func (r *ThreadRepository) Create(ctx context.Context, thread *model.Thread, userIDs []uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(thread).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			thread.FillParticipantIDs()
			return nil
		}
		participants := make([]model.Participant, len(userIDs))
		for i, id := range userIDs {
			participants[i] = model.Participant{ThreadID: thread.ID, UserID: id}
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		thread.Participants = participants
		thread.FillParticipantIDs()
		return nil
	})
}

// AddParticipant inserts (threadID, userID) and ignores an existing row. It
// reports whether a row was inserted.
func (r *ThreadRepository) AddParticipant(ctx context.Context, threadID, userID uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Participant{ThreadID: threadID, UserID: userID})
	return res.RowsAffected == 1, res.Error
}

func (r *ThreadRepository) RemoveParticipant(ctx context.Context, threadID, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Delete(&model.Participant{})
	return res.RowsAffected, res.Error
}

func (r *ThreadRepository) ParticipantIDs(ctx context.Context, threadID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Participant{}).
		Where("thread_id = ?", threadID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *ThreadRepository) IsParticipant(ctx context.Context, threadID, userID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Participant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error
	return count > 0, err
}

// SetKey replaces the participant-set key; nil clears it.
func (r *ThreadRepository) SetKey(ctx context.Context, threadID uint, key *string) error {
	return r.DB.WithContext(ctx).Model(&model.Thread{}).
		Where("id = ?", threadID).
		Update("participant_set_key", key).Error
}

func (r *ThreadRepository) Touch(ctx context.Context, threadID uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.Thread{}).
		Where("id = ?", threadID).
		UpdateColumn("updated_at", at).Error
}

// ListForUser returns the threads userID participates in, most recently active first.
func (r *ThreadRepository) ListForUser(ctx context.Context, userID uint) ([]model.Thread, error) {
	var threads []model.Thread
	err := r.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("user_id") }).
		Joins("JOIN thread_participants ON thread_participants.thread_id = threads.id").
		Where("thread_participants.user_id = ?", userID).
		Order("threads.updated_at DESC, threads.id DESC").
		Find(&threads).Error
	if err != nil {
		return nil, err
	}
	for i := range threads {
		threads[i].FillParticipantIDs()
	}
	return threads, nil
}

// Delete removes the thread with its messages and participants.
func (r *ThreadRepository) Delete(ctx context.Context, threadID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("thread_id = ?", threadID).Delete(&model.Participant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Thread{}, threadID).Error
	})
}
