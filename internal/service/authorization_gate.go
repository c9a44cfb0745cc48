package service

import (
	"context"
	"fmt"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/util"
	"clubnet_backend/pkg/database"
	"clubnet_backend/pkg/monitoring"
)

type Action string

const (
	ActionFriendThread   Action = "friend_thread"
	ActionLinkedThread   Action = "linked_thread"
	ActionClubResources  Action = "club_resources"
	ActionInviteMember   Action = "invite_member"
	ActionChangeRole     Action = "change_role"
	ActionRemoveMember   Action = "remove_member"
	ActionDeleteClub     Action = "delete_club"
	ActionThreadReadable Action = "thread_read"
)

// Decision is the outcome of a gate check. Reason is suitable for display.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Err converts a denial into a Forbidden error carrying the reason.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return util.Forbiddenf("%s", d.Reason)
}

type FriendChecker interface {
	IsFriend(ctx context.Context, a, b uint) (bool, error)
}

// MembershipReader reports gorm.ErrRecordNotFound for non-members.
type MembershipReader interface {
	FindMembership(ctx context.Context, clubID, userID uint) (*model.Membership, error)
	CountMembers(ctx context.Context, clubID uint) (int64, error)
}

// AuthorizationGate decides whether an actor may perform an action. It only reads.
type AuthorizationGate struct {
	friends FriendChecker
	members MembershipReader
}

func NewAuthorizationGate(friends FriendChecker, members MembershipReader) *AuthorizationGate {
	return &AuthorizationGate{friends: friends, members: members}
}

// With returns a gate reading through the given sources, typically bound to a
// transaction.
func (g *AuthorizationGate) With(friends FriendChecker, members MembershipReader) *AuthorizationGate {
	return &AuthorizationGate{friends: friends, members: members}
}

func record(action Action, d Decision) Decision {
	result := "allow"
	if !d.Allowed {
		result = "deny"
	}
	monitoring.AuthzDecisions.WithLabelValues(string(action), result).Inc()
	return d
}

// role returns the actor's role in the club, or "" when not a member.
func (g *AuthorizationGate) role(ctx context.Context, clubID, userID uint) (model.ClubRole, error) {
	m, err := g.members.FindMembership(ctx, clubID, userID)
	if database.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load membership: %w", err)
	}
	return m.Role, nil
}

// CanCreateFriendThread requires actor to be an accepted friend of every other user.
func (g *AuthorizationGate) CanCreateFriendThread(ctx context.Context, actor uint, participants []uint) (Decision, error) {
	d, err := g.friendOfAll(ctx, actor, participants)
	if err != nil {
		return Decision{}, err
	}
	return record(ActionFriendThread, d), nil
}

func (g *AuthorizationGate) friendOfAll(ctx context.Context, actor uint, participants []uint) (Decision, error) {
	for _, other := range participants {
		if other == actor {
			continue
		}
		ok, err := g.friends.IsFriend(ctx, actor, other)
		if err != nil {
			return Decision{}, fmt.Errorf("check friendship: %w", err)
		}
		if !ok {
			return deny("you must be friends with every participant of this conversation"), nil
		}
	}
	return allow(), nil
}

// CanSend checks a message against the thread's current participants. Linked
// threads only require participation; other threads also require friendship
// with everyone else in them.
func (g *AuthorizationGate) CanSend(ctx context.Context, actor uint, thread *model.Thread) (Decision, error) {
	action := ActionFriendThread
	if thread.IsLinked() {
		action = ActionLinkedThread
	}
	if !containsID(thread.ParticipantIDs, actor) {
		return record(action, deny("you are not a participant of this conversation")), nil
	}
	if thread.IsLinked() {
		return record(action, allow()), nil
	}
	d, err := g.friendOfAll(ctx, actor, thread.ParticipantIDs)
	if err != nil {
		return Decision{}, err
	}
	return record(action, d), nil
}

// CanRead allows participants to read history and pin messages.
func (g *AuthorizationGate) CanRead(actor uint, thread *model.Thread) Decision {
	if !containsID(thread.ParticipantIDs, actor) {
		return record(ActionThreadReadable, deny("you are not a participant of this conversation"))
	}
	return record(ActionThreadReadable, allow())
}

func (g *AuthorizationGate) moderator(ctx context.Context, action Action, actor, clubID uint, what string) (Decision, error) {
	role, err := g.role(ctx, clubID, actor)
	if err != nil {
		return Decision{}, err
	}
	if role == "" {
		return record(action, deny("you are not a member of this club")), nil
	}
	if !role.CanModerate() {
		return record(action, deny("only moderators and admins can %s", what)), nil
	}
	return record(action, allow()), nil
}

func (g *AuthorizationGate) CanManageResources(ctx context.Context, actor, clubID uint) (Decision, error) {
	return g.moderator(ctx, ActionClubResources, actor, clubID, "manage club events and posts")
}

func (g *AuthorizationGate) CanInvite(ctx context.Context, actor, clubID uint) (Decision, error) {
	return g.moderator(ctx, ActionInviteMember, actor, clubID, "invite members")
}

func (g *AuthorizationGate) CanChangeRole(ctx context.Context, actor, clubID uint) (Decision, error) {
	role, err := g.role(ctx, clubID, actor)
	if err != nil {
		return Decision{}, err
	}
	switch role {
	case "":
		return record(ActionChangeRole, deny("you are not a member of this club")), nil
	case model.RoleAdmin:
		return record(ActionChangeRole, allow()), nil
	}
	return record(ActionChangeRole, deny("only admins can change member roles")), nil
}

// CanRemoveMember applies the removal rule. A target that is not in the club is
// reported as util.ErrNotMember once the actor is known to be allowed to remove.
func (g *AuthorizationGate) CanRemoveMember(ctx context.Context, actor, clubID, target uint) (Decision, error) {
	if actor == target {
		return record(ActionRemoveMember, deny("you cannot remove yourself, leave the club instead")), nil
	}
	role, err := g.role(ctx, clubID, actor)
	if err != nil {
		return Decision{}, err
	}
	if role == "" {
		return record(ActionRemoveMember, deny("you are not a member of this club")), nil
	}
	if !role.CanModerate() {
		return record(ActionRemoveMember, deny("members cannot remove anyone")), nil
	}
	targetRole, err := g.role(ctx, clubID, target)
	if err != nil {
		return Decision{}, err
	}
	if targetRole == "" {
		return Decision{}, util.ErrNotMember
	}
	if targetRole == model.RoleAdmin && role != model.RoleAdmin {
		return record(ActionRemoveMember, deny("only admins can remove an admin")), nil
	}
	return record(ActionRemoveMember, allow()), nil
}

func (g *AuthorizationGate) CanDeleteClub(ctx context.Context, actor, clubID uint) (Decision, error) {
	role, err := g.role(ctx, clubID, actor)
	if err != nil {
		return Decision{}, err
	}
	if role == "" {
		return record(ActionDeleteClub, deny("you are not a member of this club")), nil
	}
	if role == model.RoleAdmin {
		return record(ActionDeleteClub, allow()), nil
	}
	count, err := g.members.CountMembers(ctx, clubID)
	if err != nil {
		return Decision{}, fmt.Errorf("count members: %w", err)
	}
	if count == 1 {
		return record(ActionDeleteClub, allow()), nil
	}
	return record(ActionDeleteClub, deny("only an admin or the sole remaining member can delete this club")), nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
