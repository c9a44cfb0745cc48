package service

import (
	"context"
	"errors"
	"testing"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeFacts struct {
	friends map[[2]uint]bool
	roles   map[uint]model.ClubRole
	err     error
}

func (f *fakeFacts) IsFriend(_ context.Context, a, b uint) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.friends[[2]uint{a, b}] || f.friends[[2]uint{b, a}], nil
}

func (f *fakeFacts) FindMembership(_ context.Context, clubID, userID uint) (*model.Membership, error) {
	if f.err != nil {
		return nil, f.err
	}
	role, ok := f.roles[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.Membership{ClubID: clubID, UserID: userID, Role: role}, nil
}

func (f *fakeFacts) CountMembers(context.Context, uint) (int64, error) {
	return int64(len(f.roles)), f.err
}

const (
	alice uint = iota + 1
	bob
	carol
	dave
)

func newGate(f *fakeFacts) *AuthorizationGate {
	return NewAuthorizationGate(f, f)
}

func TestCanSendFriendThread(t *testing.T) {
	facts := &fakeFacts{friends: map[[2]uint]bool{{alice, bob}: true}}
	gate := newGate(facts)
	ctx := context.Background()

	private := &model.Thread{ParticipantIDs: []uint{alice, bob}}
	d, err := gate.CanSend(ctx, alice, private)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Err())

	group := &model.Thread{IsGroup: true, ParticipantIDs: []uint{alice, bob, carol}}
	d, err = gate.CanSend(ctx, alice, group)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, util.IsKind(d.Err(), util.KindForbidden))
	assert.Equal(t, d.Reason, d.Err().Error())

	d, err = gate.CanSend(ctx, dave, private)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "non-participants never send")
}

func TestCanSendLinkedThreadIgnoresFriendship(t *testing.T) {
	gate := newGate(&fakeFacts{})
	clubID := uint(9)
	thread := &model.Thread{IsGroup: true, ClubID: &clubID, ParticipantIDs: []uint{alice, bob, carol}}

	d, err := gate.CanSend(context.Background(), bob, thread)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = gate.CanSend(context.Background(), dave, thread)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestRoleRules(t *testing.T) {
	facts := &fakeFacts{roles: map[uint]model.ClubRole{
		alice: model.RoleAdmin,
		bob:   model.RoleModerator,
		carol: model.RoleMember,
	}}
	gate := newGate(facts)
	ctx := context.Background()

	tests := []struct {
		name  string
		check func() (Decision, error)
		allow bool
	}{
		{"admin changes roles", func() (Decision, error) { return gate.CanChangeRole(ctx, alice, 1) }, true},
		{"moderator cannot change roles", func() (Decision, error) { return gate.CanChangeRole(ctx, bob, 1) }, false},
		{"outsider cannot change roles", func() (Decision, error) { return gate.CanChangeRole(ctx, dave, 1) }, false},
		{"moderator manages resources", func() (Decision, error) { return gate.CanManageResources(ctx, bob, 1) }, true},
		{"member cannot manage resources", func() (Decision, error) { return gate.CanManageResources(ctx, carol, 1) }, false},
		{"moderator invites", func() (Decision, error) { return gate.CanInvite(ctx, bob, 1) }, true},
		{"member cannot invite", func() (Decision, error) { return gate.CanInvite(ctx, carol, 1) }, false},
		{"moderator removes member", func() (Decision, error) { return gate.CanRemoveMember(ctx, bob, 1, carol) }, true},
		{"moderator cannot remove admin", func() (Decision, error) { return gate.CanRemoveMember(ctx, bob, 1, alice) }, false},
		{"admin removes moderator", func() (Decision, error) { return gate.CanRemoveMember(ctx, alice, 1, bob) }, true},
		{"member removes nobody", func() (Decision, error) { return gate.CanRemoveMember(ctx, carol, 1, bob) }, false},
		{"no self removal", func() (Decision, error) { return gate.CanRemoveMember(ctx, alice, 1, alice) }, false},
		{"admin deletes club", func() (Decision, error) { return gate.CanDeleteClub(ctx, alice, 1) }, true},
		{"member cannot delete shared club", func() (Decision, error) { return gate.CanDeleteClub(ctx, carol, 1) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := tt.check()
			require.NoError(t, err)
			assert.Equal(t, tt.allow, d.Allowed, d.Reason)
			if !tt.allow {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestRemoveNonMemberTarget(t *testing.T) {
	gate := newGate(&fakeFacts{roles: map[uint]model.ClubRole{alice: model.RoleAdmin}})
	_, err := gate.CanRemoveMember(context.Background(), alice, 1, dave)
	assert.ErrorIs(t, err, util.ErrNotMember)
}

func TestSoleMemberMayDelete(t *testing.T) {
	gate := newGate(&fakeFacts{roles: map[uint]model.ClubRole{carol: model.RoleMember}})
	d, err := gate.CanDeleteClub(context.Background(), carol, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGatePropagatesFactErrors(t *testing.T) {
	boom := errors.New("db down")
	gate := newGate(&fakeFacts{err: boom})
	_, err := gate.CanChangeRole(context.Background(), alice, 1)
	assert.ErrorIs(t, err, boom)
	_, err = gate.CanCreateFriendThread(context.Background(), alice, []uint{alice, bob})
	assert.ErrorIs(t, err, boom)
}
