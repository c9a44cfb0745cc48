package service

import (
	"context"
	"strings"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/repository"
	"clubnet_backend/internal/util"
	"clubnet_backend/pkg/database"
	"clubnet_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MembershipService owns club lifecycle, member roles and invites.
type MembershipService struct {
	db      *gorm.DB
	clubs   *repository.ClubRepository
	users   *repository.UserRepository
	threads *ThreadService
	gate    *AuthorizationGate
	sink    NotificationSink
}

func NewMembershipService(
	db *gorm.DB,
	clubs *repository.ClubRepository,
	users *repository.UserRepository,
	threads *ThreadService,
	gate *AuthorizationGate,
	sink NotificationSink,
) *MembershipService {
	if sink == nil {
		sink = NopSink{}
	}
	return &MembershipService{db: db, clubs: clubs, users: users, threads: threads, gate: gate, sink: sink}
}

// txScope is the set of repositories and services bound to one transaction.
type txScope struct {
	clubs   *repository.ClubRepository
	users   *repository.UserRepository
	threads *ThreadService
	gate    *AuthorizationGate
}

func (s *MembershipService) inTx(ctx context.Context, fn func(tx *txScope) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		threads := s.threads.WithTx(tx)
		return fn(&txScope{
			clubs:   s.clubs.WithTx(tx),
			users:   s.users.WithTx(tx),
			threads: threads,
			gate:    threads.gate,
		})
	})
}

func (s *MembershipService) findClub(ctx context.Context, clubID uint) (*model.Club, error) {
	club, err := s.clubs.FindClub(ctx, clubID)
	if err != nil {
		return nil, lookupErr(err, util.ErrClubNotFound, "find club")
	}
	return club, nil
}

func (s *MembershipService) findUser(ctx context.Context, username string) (*model.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, lookupErr(err, util.ErrUserNotFound, "find user")
	}
	return user, nil
}

// warnIfNoAdmins flags clubs left without an admin. Nothing prevents this state.
func warnIfNoAdmins(ctx context.Context, clubs *repository.ClubRepository, clubID uint) {
	admins, err := clubs.CountRole(ctx, clubID, model.RoleAdmin)
	if err != nil || admins > 0 {
		return
	}
	if members, err := clubs.CountMembers(ctx, clubID); err == nil && members > 0 {
		logger.Log.Warn("Club has no admin left", zap.Uint("clubId", clubID), zap.Int64("members", members))
	}
}

// CreateClub creates the club, makes actor its admin and opens the club thread.
func (s *MembershipService) CreateClub(ctx context.Context, actor uint, name, description string, isPrivate bool) (*model.Club, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.Validationf("club name must not be empty")
	}
	club := &model.Club{Name: name, Description: description, OwnerID: actor, IsPrivate: isPrivate}
	err := s.inTx(ctx, func(tx *txScope) error {
		if err := tx.clubs.CreateClub(ctx, club); err != nil {
			return conflictErr(err, util.Conflictf("a club named %q already exists", name), "create club")
		}
		m := &model.Membership{ClubID: club.ID, UserID: actor, Role: model.RoleAdmin}
		if err := tx.clubs.CreateMembership(ctx, m); err != nil {
			return storageErr("create membership", err)
		}
		_, err := tx.threads.GetOrCreateLinkedThread(ctx, ClubLink(club.ID), club.Name, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	club.MemberCount = 1
	logger.Log.Info("Club created", zap.Uint("clubId", club.ID), zap.Uint("owner", actor))
	return club, nil
}

// JoinClub adds actor as a member. Private clubs need a pending invite.
func (s *MembershipService) JoinClub(ctx context.Context, actor, clubID uint) (*model.Membership, error) {
	club, err := s.findClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	var m *model.Membership
	err = s.inTx(ctx, func(tx *txScope) error {
		joined, err := s.join(ctx, tx, club, actor, !club.IsPrivate)
		m = joined
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MembershipService) join(ctx context.Context, tx *txScope, club *model.Club, userID uint, open bool) (*model.Membership, error) {
	if _, err := tx.clubs.FindMembership(ctx, club.ID, userID); err == nil {
		return nil, util.Conflictf("you are already a member of this club")
	} else if !database.IsNotFound(err) {
		return nil, storageErr("find membership", err)
	}
	if !open {
		invited, err := tx.clubs.HasPendingInvite(ctx, club.ID, userID)
		if err != nil {
			return nil, storageErr("find invite", err)
		}
		if !invited {
			return nil, util.Forbiddenf("this club is private, an invite is required to join")
		}
	}

	m := &model.Membership{ClubID: club.ID, UserID: userID, Role: model.RoleMember}
	if err := tx.clubs.CreateMembership(ctx, m); err != nil {
		return nil, conflictErr(err, util.Conflictf("you are already a member of this club"), "create membership")
	}
	if err := tx.clubs.ClosePendingInvites(ctx, club.ID, userID); err != nil {
		return nil, storageErr("close invites", err)
	}
	if _, err := tx.threads.GetOrCreateLinkedThread(ctx, ClubLink(club.ID), club.Name, userID); err != nil {
		return nil, err
	}
	return m, nil
}

// LeaveClub is always allowed for a member.
func (s *MembershipService) LeaveClub(ctx context.Context, actor, clubID uint) error {
	if _, err := s.findClub(ctx, clubID); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *txScope) error {
		n, err := tx.clubs.DeleteMembership(ctx, clubID, actor)
		if err != nil {
			return storageErr("delete membership", err)
		}
		if n == 0 {
			return util.ErrNotMember
		}
		if err := s.leaveLinked(ctx, tx, clubID, actor, RemoveLeave); err != nil {
			return err
		}
		warnIfNoAdmins(ctx, tx.clubs, clubID)
		return nil
	})
}

func (s *MembershipService) leaveLinked(ctx context.Context, tx *txScope, clubID, userID uint, mode RemoveMode) error {
	thread, err := tx.threads.LinkedThread(ctx, ClubLink(clubID))
	if util.IsKind(err, util.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.threads.RemoveParticipant(ctx, thread.ID, userID, mode)
}

// SetRole lets an admin set any member's role directly.
func (s *MembershipService) SetRole(ctx context.Context, actor, clubID uint, targetUsername, rawRole string) (*model.Membership, error) {
	role, ok := model.ParseClubRole(rawRole)
	if !ok {
		return nil, util.ErrInvalidRole
	}
	if _, err := s.findClub(ctx, clubID); err != nil {
		return nil, err
	}
	var m *model.Membership
	err := s.inTx(ctx, func(tx *txScope) error {
		d, err := tx.gate.CanChangeRole(ctx, actor, clubID)
		if err != nil {
			return storageErr("authorize role change", err)
		}
		if err := d.Err(); err != nil {
			return err
		}
		target, err := tx.users.FindByUsername(ctx, targetUsername)
		if err != nil {
			return lookupErr(err, util.ErrUserNotFound, "find user")
		}
		m, err = tx.clubs.FindMembership(ctx, clubID, target.ID)
		if err != nil {
			return lookupErr(err, util.ErrNotMember, "find membership")
		}
		if err := tx.clubs.UpdateRole(ctx, clubID, target.ID, role); err != nil {
			return storageErr("update role", err)
		}
		m.Role = role
		warnIfNoAdmins(ctx, tx.clubs, clubID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveMember removes another member and their place in the club thread.
func (s *MembershipService) RemoveMember(ctx context.Context, actor, clubID uint, targetUsername string) error {
	if _, err := s.findClub(ctx, clubID); err != nil {
		return err
	}
	target, err := s.findUser(ctx, targetUsername)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, func(tx *txScope) error {
		d, err := tx.gate.CanRemoveMember(ctx, actor, clubID, target.ID)
		if err != nil {
			return storageErr("authorize removal", err)
		}
		if err := d.Err(); err != nil {
			return err
		}
		if _, err := tx.clubs.DeleteMembership(ctx, clubID, target.ID); err != nil {
			return storageErr("delete membership", err)
		}
		if err := s.leaveLinked(ctx, tx, clubID, target.ID, RemoveByAdmin); err != nil {
			return err
		}
		warnIfNoAdmins(ctx, tx.clubs, clubID)
		return nil
	})
	if err == nil {
		logger.Log.Info("Member removed", zap.Uint("clubId", clubID), zap.Uint("userId", target.ID), zap.Uint("by", actor))
	}
	return err
}

// DeleteClub destroys the club thread and everything the club owns.
func (s *MembershipService) DeleteClub(ctx context.Context, actor, clubID uint) error {
	if _, err := s.findClub(ctx, clubID); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *txScope) error {
		d, err := tx.gate.CanDeleteClub(ctx, actor, clubID)
		if err != nil {
			return storageErr("authorize club deletion", err)
		}
		if err := d.Err(); err != nil {
			return err
		}
		thread, err := tx.threads.LinkedThread(ctx, ClubLink(clubID))
		switch {
		case err == nil:
			if err := tx.threads.DestroyThread(ctx, thread.ID); err != nil {
				return err
			}
		case !util.IsKind(err, util.KindNotFound):
			return err
		}
		return storageErr("delete club", tx.clubs.DeleteClub(ctx, clubID))
	})
	if err == nil {
		logger.Log.Info("Club deleted", zap.Uint("clubId", clubID), zap.Uint("by", actor))
	}
	return err
}

// InviteMember records a pending invite and notifies the invitee.
func (s *MembershipService) InviteMember(ctx context.Context, actor, clubID uint, inviteeUsername string) (*model.ClubInvite, error) {
	club, err := s.findClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	invitee, err := s.findUser(ctx, inviteeUsername)
	if err != nil {
		return nil, err
	}
	inv := &model.ClubInvite{ClubID: clubID, InviterID: actor, InviteeID: invitee.ID}
	err = s.inTx(ctx, func(tx *txScope) error {
		d, err := tx.gate.CanInvite(ctx, actor, clubID)
		if err != nil {
			return storageErr("authorize invite", err)
		}
		if err := d.Err(); err != nil {
			return err
		}
		if _, err := tx.clubs.FindMembership(ctx, clubID, invitee.ID); err == nil {
			return util.Conflictf("%s is already a member of this club", invitee.Username)
		} else if !database.IsNotFound(err) {
			return storageErr("find membership", err)
		}
		if err := tx.clubs.CreateInvite(ctx, inv); err != nil {
			return conflictErr(err, util.Conflictf("an invite for %s is already pending", invitee.Username), "create invite")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	Dispatch(ctx, s.sink, []Event{InviteCreated(inv, club.Name)})
	return inv, nil
}

// RespondInvite lets the invitee accept or reject a pending invite once.
func (s *MembershipService) RespondInvite(ctx context.Context, actor, inviteID uint, accept bool) (*model.ClubInvite, error) {
	var inv *model.ClubInvite
	err := s.inTx(ctx, func(tx *txScope) error {
		var err error
		inv, err = tx.clubs.FindPendingInvite(ctx, inviteID, actor)
		if err != nil {
			return lookupErr(err, util.ErrInviteNotFound, "find invite")
		}
		status := model.InviteRejected
		if accept {
			status = model.InviteAccepted
		}
		ok, err := tx.clubs.CloseInvite(ctx, inv.ID, status)
		if err != nil {
			return storageErr("close invite", err)
		}
		if !ok {
			return util.ErrInviteNotFound
		}
		inv.Status = status
		inv.ActiveKey = nil
		if !accept {
			return nil
		}
		club, err := tx.clubs.FindClub(ctx, inv.ClubID)
		if err != nil {
			return lookupErr(err, util.ErrClubNotFound, "find club")
		}
		_, err = s.join(ctx, tx, club, actor, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ClubDetail is a club together with its member list.
type ClubDetail struct {
	Club    *model.Club        `json:"club"`
	Members []model.Membership `json:"members"`
}

// ClubDetail is open to any authenticated user, private clubs included.
func (s *MembershipService) ClubDetail(ctx context.Context, clubID uint) (*ClubDetail, error) {
	club, err := s.findClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	members, err := s.clubs.ListMembers(ctx, clubID)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	club.MemberCount = int64(len(members))
	return &ClubDetail{Club: club, Members: members}, nil
}

func (s *MembershipService) ListMembers(ctx context.Context, clubID uint) ([]model.Membership, error) {
	if _, err := s.findClub(ctx, clubID); err != nil {
		return nil, err
	}
	members, err := s.clubs.ListMembers(ctx, clubID)
	return members, storageErr("list members", err)
}

func (s *MembershipService) ListClubs(ctx context.Context) ([]model.Club, error) {
	clubs, err := s.clubs.ListClubs(ctx)
	return clubs, storageErr("list clubs", err)
}

func (s *MembershipService) ListMyClubs(ctx context.Context, actor uint) ([]model.Club, error) {
	clubs, err := s.clubs.ListClubsForUser(ctx, actor)
	return clubs, storageErr("list clubs", err)
}

func (s *MembershipService) ListMyInvites(ctx context.Context, actor uint) ([]model.ClubInvite, error) {
	invites, err := s.clubs.ListPendingInvites(ctx, actor)
	return invites, storageErr("list invites", err)
}
