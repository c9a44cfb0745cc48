package service

import (
	"context"
	"strings"
	"time"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/repository"
	"clubnet_backend/internal/util"
)

// ClubResourceService manages club events and posts. Anyone may read them;
// writes need a moderator or admin.
type ClubResourceService struct {
	resources *repository.ClubResourceRepository
	clubs     *repository.ClubRepository
	gate      *AuthorizationGate
}

func NewClubResourceService(resources *repository.ClubResourceRepository, clubs *repository.ClubRepository, gate *AuthorizationGate) *ClubResourceService {
	return &ClubResourceService{resources: resources, clubs: clubs, gate: gate}
}

type EventInput struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"startsAt"`
}

func (s *ClubResourceService) authorize(ctx context.Context, actor, clubID uint) error {
	if _, err := s.clubs.FindClub(ctx, clubID); err != nil {
		return lookupErr(err, util.ErrClubNotFound, "find club")
	}
	d, err := s.gate.CanManageResources(ctx, actor, clubID)
	if err != nil {
		return storageErr("authorize club resource", err)
	}
	return d.Err()
}

func (s *ClubResourceService) CreateEvent(ctx context.Context, actor, clubID uint, in EventInput) (*model.ClubEvent, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, util.Validationf("event title must not be empty")
	}
	if err := s.authorize(ctx, actor, clubID); err != nil {
		return nil, err
	}
	e := &model.ClubEvent{
		ClubID:      clubID,
		CreatorID:   actor,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		StartsAt:    in.StartsAt,
	}
	if err := s.resources.CreateEvent(ctx, e); err != nil {
		return nil, storageErr("create event", err)
	}
	return e, nil
}

func (s *ClubResourceService) UpdateEvent(ctx context.Context, actor, clubID, eventID uint, in EventInput) (*model.ClubEvent, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, util.Validationf("event title must not be empty")
	}
	if err := s.authorize(ctx, actor, clubID); err != nil {
		return nil, err
	}
	e, err := s.resources.FindEvent(ctx, clubID, eventID)
	if err != nil {
		return nil, lookupErr(err, util.NotFoundf("event not found"), "find event")
	}
	e.Title = in.Title
	e.Description = in.Description
	e.Location = in.Location
	e.StartsAt = in.StartsAt
	if err := s.resources.UpdateEvent(ctx, e); err != nil {
		return nil, storageErr("update event", err)
	}
	return e, nil
}

func (s *ClubResourceService) DeleteEvent(ctx context.Context, actor, clubID, eventID uint) error {
	if err := s.authorize(ctx, actor, clubID); err != nil {
		return err
	}
	n, err := s.resources.DeleteEvent(ctx, clubID, eventID)
	if err != nil {
		return storageErr("delete event", err)
	}
	if n == 0 {
		return util.NotFoundf("event not found")
	}
	return nil
}

func (s *ClubResourceService) ListEvents(ctx context.Context, clubID uint) ([]model.ClubEvent, error) {
	if _, err := s.clubs.FindClub(ctx, clubID); err != nil {
		return nil, lookupErr(err, util.ErrClubNotFound, "find club")
	}
	events, err := s.resources.ListEvents(ctx, clubID)
	return events, storageErr("list events", err)
}

func (s *ClubResourceService) CreatePost(ctx context.Context, actor, clubID uint, content string) (*model.ClubPost, error) {
	if strings.TrimSpace(content) == "" {
		return nil, util.Validationf("post content must not be empty")
	}
	if err := s.authorize(ctx, actor, clubID); err != nil {
		return nil, err
	}
	p := &model.ClubPost{ClubID: clubID, AuthorID: actor, Content: content}
	if err := s.resources.CreatePost(ctx, p); err != nil {
		return nil, storageErr("create post", err)
	}
	return p, nil
}

func (s *ClubResourceService) DeletePost(ctx context.Context, actor, clubID, postID uint) error {
	if err := s.authorize(ctx, actor, clubID); err != nil {
		return err
	}
	n, err := s.resources.DeletePost(ctx, clubID, postID)
	if err != nil {
		return storageErr("delete post", err)
	}
	if n == 0 {
		return util.NotFoundf("post not found")
	}
	return nil
}

func (s *ClubResourceService) ListPosts(ctx context.Context, clubID uint) ([]model.ClubPost, error) {
	if _, err := s.clubs.FindClub(ctx, clubID); err != nil {
		return nil, lookupErr(err, util.ErrClubNotFound, "find club")
	}
	posts, err := s.resources.ListPosts(ctx, clubID)
	return posts, storageErr("list posts", err)
}
