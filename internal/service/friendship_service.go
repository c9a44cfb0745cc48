package service

import (
	"context"
	"time"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/repository"
	"clubnet_backend/internal/util"
	"clubnet_backend/pkg/database"
)

// FriendshipService runs the friend-request lifecycle. Two users are friends
// iff an accepted request exists between them in either direction.
type FriendshipService struct {
	friends *repository.FriendshipRepository
	users   *repository.UserRepository
	sink    NotificationSink
}

func NewFriendshipService(friends *repository.FriendshipRepository, users *repository.UserRepository, sink NotificationSink) *FriendshipService {
	if sink == nil {
		sink = NopSink{}
	}
	return &FriendshipService{friends: friends, users: users, sink: sink}
}

func (s *FriendshipService) findUser(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, lookupErr(err, util.ErrUserNotFound, "find user")
	}
	return user, nil
}

func (s *FriendshipService) SendRequest(ctx context.Context, from uint, toUsername string) (*model.FriendRequest, error) {
	sender, err := s.users.FindByID(ctx, from)
	if err != nil {
		return nil, lookupErr(err, util.ErrUserNotFound, "find user")
	}
	if sender.Username == toUsername {
		return nil, util.Validationf("you cannot send a friend request to yourself")
	}
	to, err := s.findUser(ctx, toUsername)
	if err != nil {
		return nil, err
	}

	// the unique pair key decides; this lookup only avoids a failed insert
	if _, err := s.friends.FindLive(ctx, from, to.ID); err == nil {
		return nil, util.ErrDuplicateRequest
	} else if !database.IsNotFound(err) {
		return nil, storageErr("find friend request", err)
	}

	req := &model.FriendRequest{FromUserID: from, ToUserID: to.ID}
	if err := s.friends.CreateRequest(ctx, req); err != nil {
		return nil, conflictErr(err, util.ErrDuplicateRequest, "create friend request")
	}
	Dispatch(ctx, s.sink, []Event{FriendRequestCreated(req, sender.Username)})
	return req, nil
}

// Respond accepts or rejects the pending request fromUsername sent to actor.
func (s *FriendshipService) Respond(ctx context.Context, actor uint, fromUsername string, accept bool) (*model.FriendRequest, error) {
	from, err := s.findUser(ctx, fromUsername)
	if err != nil {
		return nil, err
	}
	req, err := s.friends.FindPending(ctx, from.ID, actor)
	if err != nil {
		return nil, lookupErr(err, util.ErrRequestNotFound, "find friend request")
	}
	now := time.Now()
	ok, err := s.friends.Resolve(ctx, req.ID, accept, now)
	if err != nil {
		return nil, storageErr("respond to friend request", err)
	}
	if !ok {
		return nil, util.ErrRequestNotFound
	}
	req.RespondedAt = &now
	if accept {
		req.Status = model.FriendRequestAccepted
	} else {
		req.Status = model.FriendRequestRejected
		req.ActivePairKey = nil
	}
	return req, nil
}

// Cancel deletes actor's own pending request to toUsername.
func (s *FriendshipService) Cancel(ctx context.Context, actor uint, toUsername string) error {
	to, err := s.findUser(ctx, toUsername)
	if err != nil {
		return err
	}
	req, err := s.friends.FindPending(ctx, actor, to.ID)
	if err != nil {
		return lookupErr(err, util.ErrRequestNotFound, "find friend request")
	}
	n, err := s.friends.DeletePending(ctx, req.ID)
	if err != nil {
		return storageErr("cancel friend request", err)
	}
	if n == 0 {
		return util.ErrRequestNotFound
	}
	return nil
}

func (s *FriendshipService) RemoveFriend(ctx context.Context, actor uint, username string) error {
	other, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}
	n, err := s.friends.DeleteAccepted(ctx, actor, other.ID)
	if err != nil {
		return storageErr("remove friend", err)
	}
	if n == 0 {
		return util.NotFoundf("you are not friends with %s", other.Username)
	}
	return nil
}

func (s *FriendshipService) IsFriend(ctx context.Context, a, b uint) (bool, error) {
	if a == b {
		return false, nil
	}
	ok, err := s.friends.IsFriend(ctx, a, b)
	return ok, storageErr("check friendship", err)
}

func (s *FriendshipService) ListFriends(ctx context.Context, actor uint) ([]model.User, error) {
	ids, err := s.friends.FriendIDs(ctx, actor)
	if err != nil {
		return nil, storageErr("list friends", err)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	return users, storageErr("list friends", err)
}

func (s *FriendshipService) ListIncoming(ctx context.Context, actor uint) ([]model.FriendRequest, error) {
	reqs, err := s.friends.ListIncoming(ctx, actor)
	return reqs, storageErr("list friend requests", err)
}
