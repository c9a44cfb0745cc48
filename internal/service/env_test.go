package service

import (
	"context"
	"sync"
	"testing"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/repository"
	"clubnet_backend/internal/testkit"

	"gorm.io/gorm"
)

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordSink) Notify(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recordSink) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	ctx       context.Context
	db        *gorm.DB
	sink      *recordSink
	gate      *AuthorizationGate
	threads   *ThreadService
	members   *MembershipService
	friends   *FriendshipService
	resources *ClubResourceService
	inbox     *NotificationService
	repos     struct {
		users         *repository.UserRepository
		threads       *repository.ThreadRepository
		messages      *repository.MessageRepository
		clubs         *repository.ClubRepository
		friends       *repository.FriendshipRepository
		notifications *repository.NotificationRepository
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testkit.NewDB(t)
	e := &env{ctx: context.Background(), db: db, sink: &recordSink{}}

	e.repos.users = repository.NewUserRepository(db)
	e.repos.threads = repository.NewThreadRepository(db)
	e.repos.messages = repository.NewMessageRepository(db)
	e.repos.clubs = repository.NewClubRepository(db)
	e.repos.friends = repository.NewFriendshipRepository(db)
	e.repos.notifications = repository.NewNotificationRepository(db)
	courses := repository.NewCourseRepository(db)
	resources := repository.NewClubResourceRepository(db)

	e.gate = NewAuthorizationGate(e.repos.friends, e.repos.clubs)
	e.threads = NewThreadService(db, e.repos.threads, e.repos.messages, e.repos.users, courses, e.repos.clubs, e.repos.friends, e.gate, e.sink)
	e.members = NewMembershipService(db, e.repos.clubs, e.repos.users, e.threads, e.gate, e.sink)
	e.friends = NewFriendshipService(e.repos.friends, e.repos.users, e.sink)
	e.resources = NewClubResourceService(resources, e.repos.clubs, e.gate)
	e.inbox = NewNotificationService(e.repos.notifications)
	return e
}

func (e *env) users(t *testing.T, n int) []*model.User {
	return testkit.Users(t, e.db, n)
}

func ids(users ...*model.User) []uint {
	out := make([]uint, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}
