package service

import (
	"sync"
	"testing"
	"time"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/testkit"
	"clubnet_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countThreads(t *testing.T, e *env) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Thread{}).Count(&n).Error)
	return n
}

func TestResolveOrCreatePrivateIsIdempotent(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)

	first, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1]))
	require.NoError(t, err)
	assert.False(t, first.IsGroup)

	second, err := e.threads.ResolveOrCreate(e.ctx, ids(u[1], u[0], u[1]))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), countThreads(t, e))
}

func TestResolveOrCreateConcurrentCallsShareOneThread(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)

	const callers = 8
	got := make([]uint, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set := ids(u[0], u[1])
			if i%2 == 1 {
				set = ids(u[1], u[0])
			}
			th, err := e.threads.ResolveOrCreate(e.ctx, set)
			errs[i] = err
			if err == nil {
				got[i] = th.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, got[0], got[i])
	}
	assert.Equal(t, int64(1), countThreads(t, e))
}

func TestResolveOrCreateGroupMatchesExactSetOnly(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 4)

	abc, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1], u[2]))
	require.NoError(t, err)
	assert.True(t, abc.IsGroup)
	assert.Len(t, abc.ParticipantIDs, 3)

	acb, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[2], u[1]))
	require.NoError(t, err)
	assert.Equal(t, abc.ID, acb.ID)

	ab, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1]))
	require.NoError(t, err)
	assert.NotEqual(t, abc.ID, ab.ID, "a subset never matches")

	abcd, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1], u[2], u[3]))
	require.NoError(t, err)
	assert.NotEqual(t, abc.ID, abcd.ID, "a superset never matches")
}

func TestResolveOrCreateNeedsTwoDistinctUsers(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 1)

	_, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[0]))
	assert.ErrorIs(t, err, util.ErrTooFewParticipant)
	assert.True(t, util.IsKind(err, util.KindValidation))
}

func TestLinkedThreadIsSingleton(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	course := testkit.Course(t, e.db, "Algorithms")

	first, err := e.threads.JoinClassThread(e.ctx, u[0].ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Algorithms", first.Name)
	assert.True(t, first.IsGroup)
	assert.Nil(t, first.ParticipantSetKey)

	second, err := e.threads.JoinClassThread(e.ctx, u[1].ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, ids(u[0], u[1]), second.ParticipantIDs)

	again, err := e.threads.JoinClassThread(e.ctx, u[1].ID, course.ID)
	require.NoError(t, err)
	assert.Len(t, again.ParticipantIDs, 2)
	assert.Equal(t, int64(1), countThreads(t, e))
}

func TestLinkedThreadConcurrentFirstAccess(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 6)
	course := testkit.Course(t, e.db, "Compilers")

	var wg sync.WaitGroup
	errs := make([]error, len(u))
	for i := range u {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.threads.JoinClassThread(e.ctx, u[i].ID, course.ID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), countThreads(t, e))
	thread, err := e.threads.LinkedThread(e.ctx, CourseLink(course.ID))
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(u...), thread.ParticipantIDs)
}

func TestJoinUnknownClass(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 1)
	_, err := e.threads.JoinClassThread(e.ctx, u[0].ID, 999)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}

func TestRemoveParticipantModes(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	course := testkit.Course(t, e.db, "Databases")
	thread, err := e.threads.JoinClassThread(e.ctx, u[0].ID, course.ID)
	require.NoError(t, err)

	assert.NoError(t, e.threads.RemoveParticipant(e.ctx, thread.ID, u[1].ID, RemoveLeave))

	err = e.threads.RemoveParticipant(e.ctx, thread.ID, u[1].ID, RemoveByAdmin)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	require.NoError(t, e.threads.RemoveParticipant(e.ctx, thread.ID, u[0].ID, RemoveByAdmin))
	left, err := e.repos.threads.ParticipantIDs(e.ctx, thread.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	err = e.threads.RemoveParticipant(e.ctx, 4242, u[0].ID, RemoveLeave)
	assert.ErrorIs(t, err, util.ErrThreadNotFound)
}

func TestRemoveParticipantRekeysGroup(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 4)

	abcd, err := e.threads.ResolveOrCreate(e.ctx, ids(u...))
	require.NoError(t, err)
	require.NoError(t, e.threads.RemoveParticipant(e.ctx, abcd.ID, u[3].ID, RemoveLeave))

	abc, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1], u[2]))
	require.NoError(t, err)
	assert.Equal(t, abcd.ID, abc.ID, "the shrunk group is now the canonical thread of its set")
}

func TestRemoveParticipantClearsCollidingKey(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 4)

	abc, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1], u[2]))
	require.NoError(t, err)
	abcd, err := e.threads.ResolveOrCreate(e.ctx, ids(u...))
	require.NoError(t, err)

	require.NoError(t, e.threads.RemoveParticipant(e.ctx, abcd.ID, u[3].ID, RemoveLeave))

	again, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1], u[2]))
	require.NoError(t, err)
	assert.Equal(t, abc.ID, again.ID)

	shrunk, err := e.repos.threads.FindByID(e.ctx, abcd.ID)
	require.NoError(t, err)
	assert.Nil(t, shrunk.ParticipantSetKey)
}

func TestGroupShrunkToTwoIsNotThePrivateThread(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)

	group, err := e.threads.ResolveOrCreate(e.ctx, ids(u...))
	require.NoError(t, err)
	require.NoError(t, e.threads.RemoveParticipant(e.ctx, group.ID, u[2].ID, RemoveLeave))

	private, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1]))
	require.NoError(t, err)
	assert.NotEqual(t, group.ID, private.ID)
	assert.False(t, private.IsGroup)
}

func TestDestroyThread(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	testkit.Befriend(t, e.db, u[0].ID, u[1].ID)
	thread, err := e.threads.ResolveOrCreate(e.ctx, ids(u...))
	require.NoError(t, err)
	_, err = e.threads.SendMessage(e.ctx, u[0].ID, thread.ID, "hello")
	require.NoError(t, err)

	require.NoError(t, e.threads.DestroyThread(e.ctx, thread.ID))
	assert.ErrorIs(t, e.threads.DestroyThread(e.ctx, thread.ID), util.ErrThreadNotFound)

	var n int64
	require.NoError(t, e.db.Model(&model.Message{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestStartThreadRequiresFriendship(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)

	_, err := e.threads.StartThread(e.ctx, u[0].ID, []string{u[1].Username})
	assert.True(t, util.IsKind(err, util.KindForbidden))

	_, err = e.threads.StartThread(e.ctx, u[0].ID, []string{"nobody-here"})
	assert.True(t, util.IsKind(err, util.KindNotFound))

	_, err = e.threads.StartThread(e.ctx, u[0].ID, []string{u[0].Username})
	assert.ErrorIs(t, err, util.ErrTooFewParticipant)

	testkit.Befriend(t, e.db, u[0].ID, u[1].ID)
	thread, err := e.threads.StartThread(e.ctx, u[0].ID, []string{u[1].Username, u[1].Username})
	require.NoError(t, err)
	assert.Equal(t, ids(u[0], u[1]), thread.ParticipantIDs)

	_, err = e.threads.StartThread(e.ctx, u[0].ID, []string{u[1].Username, u[2].Username})
	assert.True(t, util.IsKind(err, util.KindForbidden), "friend of every other participant is required")
}

func TestSendIsGatedAtWriteTime(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	thread, err := e.threads.ResolveOrCreate(e.ctx, ids(u...))
	require.NoError(t, err)

	_, err = e.threads.SendMessage(e.ctx, u[0].ID, thread.ID, "hi")
	assert.True(t, util.IsKind(err, util.KindForbidden))

	testkit.Befriend(t, e.db, u[1].ID, u[0].ID)
	msg, err := e.threads.SendMessage(e.ctx, u[0].ID, thread.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Body)

	require.NoError(t, e.friends.RemoveFriend(e.ctx, u[0].ID, u[1].Username))
	_, err = e.threads.SendMessage(e.ctx, u[0].ID, thread.ID, "still there?")
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestSendMessageValidationAndEvents(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	course := testkit.Course(t, e.db, "Networks")
	for _, user := range u {
		_, err := e.threads.JoinClassThread(e.ctx, user.ID, course.ID)
		require.NoError(t, err)
	}
	thread, err := e.threads.LinkedThread(e.ctx, CourseLink(course.ID))
	require.NoError(t, err)

	_, err = e.threads.SendMessage(e.ctx, u[0].ID, thread.ID, "   ")
	assert.ErrorIs(t, err, util.ErrEmptyMessage)

	_, err = e.threads.SendMessage(e.ctx, u[0].ID, 5555, "hi")
	assert.ErrorIs(t, err, util.ErrThreadNotFound)

	msg, err := e.threads.SendMessage(e.ctx, u[0].ID, thread.ID, "hello class")
	require.NoError(t, err)

	sent := e.sink.ofType(EventMessageSent)
	require.Len(t, sent, 2)
	recipients := []uint{sent[0].RecipientID, sent[1].RecipientID}
	assert.ElementsMatch(t, ids(u[1], u[2]), recipients)
	assert.Equal(t, msg.ID, sent[0].MessageID)
	assert.Equal(t, thread.ID, sent[0].ThreadID)
}

func TestTogglePinAndHistory(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	testkit.Befriend(t, e.db, u[0].ID, u[1].ID)
	thread, err := e.threads.StartThread(e.ctx, u[0].ID, []string{u[1].Username})
	require.NoError(t, err)

	var last *model.Message
	for _, body := range []string{"one", "two", "three"} {
		last, err = e.threads.SendMessage(e.ctx, u[0].ID, thread.ID, body)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	pinned, err := e.threads.TogglePin(e.ctx, u[1].ID, last.ID)
	require.NoError(t, err)
	assert.True(t, pinned.IsPinned)
	unpinned, err := e.threads.TogglePin(e.ctx, u[0].ID, last.ID)
	require.NoError(t, err)
	assert.False(t, unpinned.IsPinned)

	_, err = e.threads.TogglePin(e.ctx, u[2].ID, last.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))
	_, err = e.threads.TogglePin(e.ctx, u[0].ID, 9999)
	assert.ErrorIs(t, err, util.ErrMessageNotFound)

	history, err := e.threads.ListMessages(e.ctx, u[1].ID, thread.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "three", history[0].Body)

	_, err = e.threads.ListMessages(e.ctx, u[2].ID, thread.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	n, err := e.threads.MarkThreadRead(e.ctx, u[1].ID, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	threads, err := e.threads.ListThreads(e.ctx, u[1].ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, thread.ID, threads[0].ID)
}

// A requests B, a second request conflicts, B accepts, and the private thread
// A starts with B resolves to the same thread every time.
func TestFriendRequestThenPrivateThreadScenario(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 2)
	a, b := u[0], u[1]

	req, err := e.friends.SendRequest(e.ctx, a.ID, b.Username)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestPending, req.Status)

	_, err = e.friends.SendRequest(e.ctx, a.ID, b.Username)
	assert.True(t, util.IsKind(err, util.KindConflict))

	_, err = e.friends.Respond(e.ctx, b.ID, a.Username, true)
	require.NoError(t, err)
	for _, pair := range [][2]uint{{a.ID, b.ID}, {b.ID, a.ID}} {
		ok, err := e.friends.IsFriend(e.ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	x, err := e.threads.StartThread(e.ctx, a.ID, []string{b.Username})
	require.NoError(t, err)
	again, err := e.threads.StartThread(e.ctx, a.ID, []string{b.Username})
	require.NoError(t, err)
	assert.Equal(t, x.ID, again.ID)
	assert.False(t, x.IsGroup)
}

func TestGetThreadIsGatedByRead(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 3)
	thread, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1]))
	require.NoError(t, err)

	got, err := e.threads.GetThread(e.ctx, u[1].ID, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, ids(u[0], u[1]), got.ParticipantIDs)

	_, err = e.threads.GetThread(e.ctx, u[2].ID, thread.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))
	_, err = e.threads.GetThread(e.ctx, u[0].ID, 4242)
	assert.ErrorIs(t, err, util.ErrThreadNotFound)
}

func TestLeaveThreadRekeysGroup(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 4)
	abcd, err := e.threads.ResolveOrCreate(e.ctx, ids(u...))
	require.NoError(t, err)

	require.NoError(t, e.threads.LeaveThread(e.ctx, u[3].ID, abcd.ID))
	err = e.threads.LeaveThread(e.ctx, u[3].ID, abcd.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden), "a former participant can no longer read the thread")

	abc, err := e.threads.ResolveOrCreate(e.ctx, ids(u[0], u[1], u[2]))
	require.NoError(t, err)
	assert.Equal(t, abcd.ID, abc.ID)
}

func TestLeaveLinkedThreadIsRefused(t *testing.T) {
	e := newEnv(t)
	u := e.users(t, 1)
	course := testkit.Course(t, e.db, "Networks")
	thread, err := e.threads.JoinClassThread(e.ctx, u[0].ID, course.ID)
	require.NoError(t, err)

	err = e.threads.LeaveThread(e.ctx, u[0].ID, thread.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))
	left, err := e.repos.threads.ParticipantIDs(e.ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{u[0].ID}, left)
}
