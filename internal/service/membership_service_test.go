package service

import (
	"testing"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) role(t *testing.T, clubID, userID uint) model.ClubRole {
	t.Helper()
	m, err := e.repos.clubs.FindMembership(e.ctx, clubID, userID)
	require.NoError(t, err)
	return m.Role
}

func (e *env) clubThread(t *testing.T, clubID uint) *model.Thread {
	t.Helper()
	thread, err := e.threads.LinkedThread(e.ctx, ClubLink(clubID))
	require.NoError(t, err)
	return thread
}

// A creates Chess and is its admin with a club thread of one. B joins as a
// member, A promotes B, and B can then remove a newer member C but not A.
func TestChessScenario(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	a, b, c := u[0], u[1], u[2]

	club, err := e.members.CreateClub(e.ctx, a.ID, "Chess", "64 squares", false)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, e.role(t, club.ID, a.ID))
	thread := e.clubThread(t, club.ID)
	assert.True(t, thread.IsGroup)
	assert.Equal(t, "Chess", thread.Name)
	assert.Equal(t, ids(a), thread.ParticipantIDs)

	_, err = e.members.JoinClub(e.ctx, b.ID, club.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, e.role(t, club.ID, b.ID))
	assert.ElementsMatch(t, ids(a, b), e.clubThread(t, club.ID).ParticipantIDs)

	_, err = e.members.SetRole(e.ctx, a.ID, club.ID, b.Username, "moderator")
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, e.role(t, club.ID, b.ID))

	_, err = e.members.JoinClub(e.ctx, c.ID, club.ID)
	require.NoError(t, err)

	require.NoError(t, e.members.RemoveMember(e.ctx, b.ID, club.ID, c.Username))
	_, err = e.repos.clubs.FindMembership(e.ctx, club.ID, c.ID)
	assert.Error(t, err)
	assert.ElementsMatch(t, ids(a, b), e.clubThread(t, club.ID).ParticipantIDs)

	err = e.members.RemoveMember(e.ctx, b.ID, club.ID, a.Username)
	assert.True(t, util.IsKind(err, util.KindForbidden))
	assert.Equal(t, model.RoleAdmin, e.role(t, club.ID, a.ID))
}

func TestCreateClubDuplicateName(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	_, err := e.members.CreateClub(e.ctx, u[0].ID, "Go", "", false)
	require.NoError(t, err)

	_, err = e.members.CreateClub(e.ctx, u[1].ID, "Go", "", false)
	assert.True(t, util.IsKind(err, util.KindConflict))

	_, err = e.members.CreateClub(e.ctx, u[1].ID, "  ", "", false)
	assert.True(t, util.IsKind(err, util.KindValidation))
}

func TestSetRoleRules(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 4)
	admin, mod, member, outsider := u[0], u[1], u[2], u[3]
	club, err := e.members.CreateClub(e.ctx, admin.ID, "Chess", "", false)
	require.NoError(t, err)
	for _, m := range []*model.User{mod, member} {
		_, err := e.members.JoinClub(e.ctx, m.ID, club.ID)
		require.NoError(t, err)
	}
	_, err = e.members.SetRole(e.ctx, admin.ID, club.ID, mod.Username, "moderator")
	require.NoError(t, err)

	_, err = e.members.SetRole(e.ctx, mod.ID, club.ID, member.Username, "admin")
	assert.True(t, util.IsKind(err, util.KindForbidden), "moderators cannot change roles")

	_, err = e.members.SetRole(e.ctx, mod.ID, club.ID, member.Username, "owner")
	assert.ErrorIs(t, err, util.ErrInvalidRole, "role is validated before authorization")

	_, err = e.members.SetRole(e.ctx, admin.ID, club.ID, outsider.Username, "member")
	assert.ErrorIs(t, err, util.ErrNotMember)

	_, err = e.members.SetRole(e.ctx, admin.ID, 999, member.Username, "member")
	assert.ErrorIs(t, err, util.ErrClubNotFound)

	// any role may be set directly
	_, err = e.members.SetRole(e.ctx, admin.ID, club.ID, member.Username, "admin")
	require.NoError(t, err)
	_, err = e.members.SetRole(e.ctx, admin.ID, club.ID, member.Username, "member")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, e.role(t, club.ID, member.ID))
}

func TestRemoveMemberRules(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 4)
	admin, mod, m1, m2 := u[0], u[1], u[2], u[3]
	club, err := e.members.CreateClub(e.ctx, admin.ID, "Chess", "", false)
	require.NoError(t, err)
	for _, m := range []*model.User{mod, m1, m2} {
		_, err := e.members.JoinClub(e.ctx, m.ID, club.ID)
		require.NoError(t, err)
	}
	_, err = e.members.SetRole(e.ctx, admin.ID, club.ID, mod.Username, "moderator")
	require.NoError(t, err)

	err = e.members.RemoveMember(e.ctx, m1.ID, club.ID, m2.Username)
	assert.True(t, util.IsKind(err, util.KindForbidden), "members remove nobody")

	err = e.members.RemoveMember(e.ctx, mod.ID, club.ID, mod.Username)
	assert.True(t, util.IsKind(err, util.KindForbidden), "self removal goes through leave")

	err = e.members.RemoveMember(e.ctx, mod.ID, club.ID, "ghost")
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	require.NoError(t, e.members.RemoveMember(e.ctx, mod.ID, club.ID, m1.Username))
	err = e.members.RemoveMember(e.ctx, mod.ID, club.ID, m1.Username)
	assert.ErrorIs(t, err, util.ErrNotMember)

	require.NoError(t, e.members.RemoveMember(e.ctx, admin.ID, club.ID, mod.Username))
	assert.ElementsMatch(t, ids(admin, m2), e.clubThread(t, club.ID).ParticipantIDs)
}

func TestLeaveClub(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	club, err := e.members.CreateClub(e.ctx, u[0].ID, "Chess", "", false)
	require.NoError(t, err)

	assert.ErrorIs(t, e.members.LeaveClub(e.ctx, u[1].ID, club.ID), util.ErrNotMember)

	_, err = e.members.JoinClub(e.ctx, u[1].ID, club.ID)
	require.NoError(t, err)
	_, err = e.members.JoinClub(e.ctx, u[1].ID, club.ID)
	assert.True(t, util.IsKind(err, util.KindConflict))

	require.NoError(t, e.members.LeaveClub(e.ctx, u[1].ID, club.ID))
	assert.Equal(t, ids(u[0]), e.clubThread(t, club.ID).ParticipantIDs)

	// the last admin may leave; the club is then left without one
	_, err = e.members.JoinClub(e.ctx, u[1].ID, club.ID)
	require.NoError(t, err)
	require.NoError(t, e.members.LeaveClub(e.ctx, u[0].ID, club.ID))
	admins, err := e.repos.clubs.CountRole(e.ctx, club.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, admins)
}

func TestSoleRemainingMemberDeletesClub(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	club, err := e.members.CreateClub(e.ctx, u[0].ID, "Chess", "", false)
	require.NoError(t, err)
	_, err = e.members.JoinClub(e.ctx, u[1].ID, club.ID)
	require.NoError(t, err)
	_, err = e.members.JoinClub(e.ctx, u[2].ID, club.ID)
	require.NoError(t, err)
	thread := e.clubThread(t, club.ID)
	_, err = e.threads.SendMessage(e.ctx, u[1].ID, thread.ID, "gg")
	require.NoError(t, err)

	err = e.members.DeleteClub(e.ctx, u[1].ID, club.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	require.NoError(t, e.members.LeaveClub(e.ctx, u[0].ID, club.ID))
	require.NoError(t, e.members.LeaveClub(e.ctx, u[2].ID, club.ID))
	require.NoError(t, e.members.DeleteClub(e.ctx, u[1].ID, club.ID))

	_, err = e.repos.clubs.FindClub(e.ctx, club.ID)
	assert.Error(t, err)
	_, err = e.threads.LinkedThread(e.ctx, ClubLink(club.ID))
	assert.ErrorIs(t, err, util.ErrThreadNotFound)
	var n int64
	require.NoError(t, e.db.Model(&model.Message{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.ErrorIs(t, e.members.DeleteClub(e.ctx, u[1].ID, club.ID), util.ErrClubNotFound)
}

func TestPrivateClubInvites(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	owner, guest, member := u[0], u[1], u[2]
	club, err := e.members.CreateClub(e.ctx, owner.ID, "Secret", "", true)
	require.NoError(t, err)

	_, err = e.members.JoinClub(e.ctx, guest.ID, club.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	inv, err := e.members.InviteMember(e.ctx, owner.ID, club.ID, guest.Username)
	require.NoError(t, err)
	_, err = e.members.InviteMember(e.ctx, owner.ID, club.ID, guest.Username)
	assert.True(t, util.IsKind(err, util.KindConflict), "one pending invite per invitee")
	_, err = e.members.InviteMember(e.ctx, owner.ID, club.ID, owner.Username)
	assert.True(t, util.IsKind(err, util.KindConflict))

	invited := e.sink.ofType(EventInviteCreated)
	require.Len(t, invited, 1)
	assert.Equal(t, guest.ID, invited[0].RecipientID)
	assert.Equal(t, club.ID, invited[0].ClubID)

	mine, err := e.members.ListMyInvites(e.ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Secret", mine[0].Club.Name)

	_, err = e.members.RespondInvite(e.ctx, member.ID, inv.ID, true)
	assert.ErrorIs(t, err, util.ErrInviteNotFound, "only the invitee responds")

	accepted, err := e.members.RespondInvite(e.ctx, guest.ID, inv.ID, true)
	require.NoError(t, err)
	assert.Equal(t, model.InviteAccepted, accepted.Status)
	assert.Equal(t, model.RoleMember, e.role(t, club.ID, guest.ID))
	assert.ElementsMatch(t, ids(owner, guest), e.clubThread(t, club.ID).ParticipantIDs)

	_, err = e.members.RespondInvite(e.ctx, guest.ID, inv.ID, false)
	assert.ErrorIs(t, err, util.ErrInviteNotFound)

	_, err = e.members.InviteMember(e.ctx, guest.ID, club.ID, member.Username)
	assert.True(t, util.IsKind(err, util.KindForbidden), "members cannot invite")
}

func TestRejectedInviteKeepsClubClosed(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	club, err := e.members.CreateClub(e.ctx, u[0].ID, "Secret", "", true)
	require.NoError(t, err)
	inv, err := e.members.InviteMember(e.ctx, u[0].ID, club.ID, u[1].Username)
	require.NoError(t, err)

	_, err = e.members.RespondInvite(e.ctx, u[1].ID, inv.ID, false)
	require.NoError(t, err)
	_, err = e.members.JoinClub(e.ctx, u[1].ID, club.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	_, err = e.members.InviteMember(e.ctx, u[0].ID, club.ID, u[1].Username)
	assert.NoError(t, err, "a rejected invite frees the slot")
}

func TestClubListings(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	chess, err := e.members.CreateClub(e.ctx, u[0].ID, "Chess", "", false)
	require.NoError(t, err)
	_, err = e.members.CreateClub(e.ctx, u[1].ID, "Go", "", false)
	require.NoError(t, err)
	_, err = e.members.JoinClub(e.ctx, u[1].ID, chess.ID)
	require.NoError(t, err)

	all, err := e.members.ListClubs(e.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := e.members.ListMyClubs(e.ctx, u[0].ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(2), mine[0].MemberCount)

	members, err := e.members.ListMembers(e.ctx, chess.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, u[0].Username, members[0].User.Username)

	_, err = e.members.ListMembers(e.ctx, 999)
	assert.ErrorIs(t, err, util.ErrClubNotFound)
}

func TestClubDetail(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	club, err := e.members.CreateClub(e.ctx, u[0].ID, "Photo", "darkroom", true)
	require.NoError(t, err)
	inv, err := e.members.InviteMember(e.ctx, u[0].ID, club.ID, u[1].Username)
	require.NoError(t, err)
	_, err = e.members.RespondInvite(e.ctx, u[1].ID, inv.ID, true)
	require.NoError(t, err)

	detail, err := e.members.ClubDetail(e.ctx, club.ID)
	require.NoError(t, err)
	assert.Equal(t, "Photo", detail.Club.Name)
	assert.True(t, detail.Club.IsPrivate)
	assert.Equal(t, int64(2), detail.Club.MemberCount)
	require.Len(t, detail.Members, 2)
	assert.Equal(t, u[0].Username, detail.Members[0].User.Username)

	_, err = e.members.ClubDetail(e.ctx, 999)
	assert.ErrorIs(t, err, util.ErrClubNotFound)
}
