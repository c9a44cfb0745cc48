package service

import (
	"context"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/repository"
)

const inboxLimit = 100

// NotificationService reads and maintains the stored inbox written by StoreSink.
type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

type Inbox struct {
	Items  []model.Notification `json:"items"`
	Unread int64                `json:"unread"`
}

func (s *NotificationService) List(ctx context.Context, actor uint) (*Inbox, error) {
	items, err := s.repo.ListForUser(ctx, actor, inboxLimit)
	if err != nil {
		return nil, storageErr("list notifications", err)
	}
	unread, err := s.repo.CountUnread(ctx, actor)
	if err != nil {
		return nil, storageErr("count notifications", err)
	}
	return &Inbox{Items: items, Unread: unread}, nil
}

// MarkRead marks the given notifications read, or all of them when ids is empty.
func (s *NotificationService) MarkRead(ctx context.Context, actor uint, ids []uint) (int64, error) {
	n, err := s.repo.MarkRead(ctx, actor, ids)
	return n, storageErr("mark notifications read", err)
}

func (s *NotificationService) Clear(ctx context.Context, actor uint) (int64, error) {
	n, err := s.repo.Clear(ctx, actor)
	return n, storageErr("clear notifications", err)
}
