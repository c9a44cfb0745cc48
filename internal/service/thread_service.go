package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/repository"
	"clubnet_backend/internal/util"
	"clubnet_backend/pkg/database"
	"clubnet_backend/pkg/logger"
	"clubnet_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LinkKey binds a thread to exactly one club or one course.
type LinkKey struct {
	ClubID   uint
	CourseID uint
}

func ClubLink(id uint) LinkKey   { return LinkKey{ClubID: id} }
func CourseLink(id uint) LinkKey { return LinkKey{CourseID: id} }

func (k LinkKey) kind() string {
	if k.ClubID != 0 {
		return "club"
	}
	return "course"
}

type RemoveMode int

const (
	// RemoveLeave treats an absent participant as already gone.
	RemoveLeave RemoveMode = iota
	// RemoveByAdmin reports an absent participant as NotFound.
	RemoveByAdmin
)

// ThreadService resolves participant sets and links to canonical threads and
// carries the message operations on them.
type ThreadService struct {
	db       *gorm.DB
	threads  *repository.ThreadRepository
	messages *repository.MessageRepository
	users    *repository.UserRepository
	courses  *repository.CourseRepository
	clubs    *repository.ClubRepository
	friends  *repository.FriendshipRepository
	gate     *AuthorizationGate
	sink     NotificationSink
}

func NewThreadService(
	db *gorm.DB,
	threads *repository.ThreadRepository,
	messages *repository.MessageRepository,
	users *repository.UserRepository,
	courses *repository.CourseRepository,
	clubs *repository.ClubRepository,
	friends *repository.FriendshipRepository,
	gate *AuthorizationGate,
	sink NotificationSink,
) *ThreadService {
	if sink == nil {
		sink = NopSink{}
	}
	return &ThreadService{
		db:       db,
		threads:  threads,
		messages: messages,
		users:    users,
		courses:  courses,
		clubs:    clubs,
		friends:  friends,
		gate:     gate,
		sink:     sink,
	}
}

// WithTx binds the registry to tx so it can take part in a caller's transaction.
func (s *ThreadService) WithTx(tx *gorm.DB) *ThreadService {
	c := *s
	c.db = tx
	c.threads = s.threads.WithTx(tx)
	c.messages = s.messages.WithTx(tx)
	c.users = s.users.WithTx(tx)
	c.courses = s.courses.WithTx(tx)
	c.clubs = s.clubs.WithTx(tx)
	c.friends = s.friends.WithTx(tx)
	c.gate = s.gate.With(c.friends, c.clubs)
	return &c
}

func resolved(kind, outcome string) {
	monitoring.ThreadResolutions.WithLabelValues(kind, outcome).Inc()
}

// ResolveOrCreate returns the one thread whose participant set is exactly
// requested, creating it if needed. Two people make a private thread; three or
// more a group.
func (s *ThreadService) ResolveOrCreate(ctx context.Context, requested []uint) (*model.Thread, error) {
	ids := model.UniqueUserIDs(requested)
	if len(ids) < 2 {
		return nil, util.ErrTooFewParticipant
	}
	key := model.ParticipantSetKey(ids)

	thread, err := s.threads.FindBySetKey(ctx, key)
	if err == nil {
		resolved("set", "found")
		return thread, nil
	}
	if !database.IsNotFound(err) {
		return nil, storageErr("find thread", err)
	}

	thread = &model.Thread{IsGroup: len(ids) > 2, ParticipantSetKey: &key}
	err = s.threads.Create(ctx, thread, ids)
	if database.IsUniqueViolation(err) {
		// a concurrent caller created the same set first
		existing, ferr := s.threads.FindBySetKey(ctx, key)
		if ferr != nil {
			return nil, storageErr("refetch thread", ferr)
		}
		resolved("set", "race_recovered")
		logger.Log.Info("Thread creation race recovered", zap.Uint("threadId", existing.ID), zap.Int("participants", len(ids)))
		return existing, nil
	}
	if err != nil {
		return nil, storageErr("create thread", err)
	}
	resolved("set", "created")
	return thread, nil
}

func (s *ThreadService) findLinked(ctx context.Context, link LinkKey) (*model.Thread, error) {
	if link.ClubID != 0 {
		return s.threads.FindByClub(ctx, link.ClubID)
	}
	return s.threads.FindByCourse(ctx, link.CourseID)
}

// LinkedThread returns the thread bound to link, or util.ErrThreadNotFound.
func (s *ThreadService) LinkedThread(ctx context.Context, link LinkKey) (*model.Thread, error) {
	thread, err := s.findLinked(ctx, link)
	if err != nil {
		return nil, lookupErr(err, util.ErrThreadNotFound, "find linked thread")
	}
	return thread, nil
}

// GetOrCreateLinkedThread returns the singleton thread of link and makes caller a
// participant of it.
func (s *ThreadService) GetOrCreateLinkedThread(ctx context.Context, link LinkKey, initialName string, caller uint) (*model.Thread, error) {
	if (link.ClubID == 0) == (link.CourseID == 0) {
		return nil, util.Validationf("a linked thread needs exactly one club or class")
	}

	thread, err := s.findLinked(ctx, link)
	if err == nil {
		resolved(link.kind(), "found")
	} else if !database.IsNotFound(err) {
		return nil, storageErr("find linked thread", err)
	} else {
		thread = &model.Thread{Name: initialName, IsGroup: true}
		if link.ClubID != 0 {
			id := link.ClubID
			thread.ClubID = &id
		} else {
			id := link.CourseID
			thread.CourseID = &id
		}
		err = s.threads.Create(ctx, thread, []uint{caller})
		switch {
		case err == nil:
			resolved(link.kind(), "created")
			return thread, nil
		case database.IsUniqueViolation(err):
			if thread, err = s.findLinked(ctx, link); err != nil {
				return nil, storageErr("refetch linked thread", err)
			}
			resolved(link.kind(), "race_recovered")
			logger.Log.Info("Linked thread creation race recovered", zap.Stringer("link", link), zap.Uint("threadId", thread.ID))
		default:
			return nil, storageErr("create linked thread", err)
		}
	}

	added, err := s.threads.AddParticipant(ctx, thread.ID, caller)
	if err != nil {
		return nil, storageErr("add participant", err)
	}
	if added {
		thread.ParticipantIDs = append(thread.ParticipantIDs, caller)
		sort.Slice(thread.ParticipantIDs, func(i, j int) bool { return thread.ParticipantIDs[i] < thread.ParticipantIDs[j] })
	}
	return thread, nil
}

// RemoveParticipant deletes userID from the thread. A thread that is not linked is
// re-keyed to its remaining set, or loses its key if that set is already taken or
// no longer matches the thread's kind.
func (s *ThreadService) RemoveParticipant(ctx context.Context, threadID, userID uint, mode RemoveMode) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		threads := s.threads.WithTx(tx)
		thread, err := threads.FindByID(ctx, threadID)
		if err != nil {
			return lookupErr(err, util.ErrThreadNotFound, "find thread")
		}
		n, err := threads.RemoveParticipant(ctx, threadID, userID)
		if err != nil {
			return storageErr("remove participant", err)
		}
		if n == 0 {
			if mode == RemoveByAdmin {
				return util.NotFoundf("user is not a participant of this conversation")
			}
			return nil
		}
		if thread.IsLinked() {
			return nil
		}
		return s.rekey(ctx, tx, thread)
	})
}

func (s *ThreadService) rekey(ctx context.Context, tx *gorm.DB, thread *model.Thread) error {
	threads := s.threads.WithTx(tx)
	remaining, err := threads.ParticipantIDs(ctx, thread.ID)
	if err != nil {
		return storageErr("load participants", err)
	}
	if len(remaining) < 2 || (len(remaining) > 2) != thread.IsGroup {
		return storageErr("clear thread key", threads.SetKey(ctx, thread.ID, nil))
	}
	key := model.ParticipantSetKey(remaining)
	err = tx.Transaction(func(sp *gorm.DB) error {
		return threads.WithTx(sp).SetKey(ctx, thread.ID, &key)
	})
	if database.IsUniqueViolation(err) {
		// the remaining set already has its own canonical thread
		return storageErr("clear thread key", threads.SetKey(ctx, thread.ID, nil))
	}
	if err != nil {
		return storageErr("update thread key", err)
	}
	return nil
}

// DestroyThread deletes the thread with its participants and messages.
func (s *ThreadService) DestroyThread(ctx context.Context, threadID uint) error {
	if _, err := s.threads.FindByID(ctx, threadID); err != nil {
		return lookupErr(err, util.ErrThreadNotFound, "find thread")
	}
	if err := s.threads.Delete(ctx, threadID); err != nil {
		return storageErr("delete thread", err)
	}
	return nil
}

// StartThread resolves usernames plus the actor to a thread the actor may use.
func (s *ThreadService) StartThread(ctx context.Context, actor uint, usernames []string) (*model.Thread, error) {
	names := make([]string, 0, len(usernames))
	seen := make(map[string]bool, len(usernames))
	for _, n := range usernames {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}

	users, err := s.users.FindByUsernames(ctx, names)
	if err != nil {
		return nil, storageErr("find users", err)
	}
	if len(users) != len(names) {
		found := make(map[string]bool, len(users))
		for _, u := range users {
			found[u.Username] = true
		}
		for _, n := range names {
			if !found[n] {
				return nil, util.NotFoundf("user %q not found", n)
			}
		}
	}

	ids := []uint{actor}
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	ids = model.UniqueUserIDs(ids)
	if len(ids) < 2 {
		return nil, util.ErrTooFewParticipant
	}

	d, err := s.gate.CanCreateFriendThread(ctx, actor, ids)
	if err != nil {
		return nil, storageErr("authorize thread", err)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return s.ResolveOrCreate(ctx, ids)
}

func (s *ThreadService) JoinClassThread(ctx context.Context, actor, courseID uint) (*model.Thread, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, lookupErr(err, util.ErrCourseNotFound, "find class")
	}
	return s.GetOrCreateLinkedThread(ctx, CourseLink(course.ID), course.Name, actor)
}

func (s *ThreadService) ClubThread(ctx context.Context, actor, clubID uint) (*model.Thread, error) {
	club, err := s.clubs.FindClub(ctx, clubID)
	if err != nil {
		return nil, lookupErr(err, util.ErrClubNotFound, "find club")
	}
	if _, err := s.clubs.FindMembership(ctx, clubID, actor); err != nil {
		return nil, lookupErr(err, util.Forbiddenf("you are not a member of this club"), "find membership")
	}
	return s.GetOrCreateLinkedThread(ctx, ClubLink(club.ID), club.Name, actor)
}

// SendMessage appends body to the thread if the actor may post there now.
func (s *ThreadService) SendMessage(ctx context.Context, actor, threadID uint, body string) (*model.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, util.ErrEmptyMessage
	}

	var msg *model.Message
	var events []Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txs := s.WithTx(tx)
		thread, err := txs.threads.FindByID(ctx, threadID)
		if err != nil {
			return lookupErr(err, util.ErrThreadNotFound, "find thread")
		}
		d, err := txs.gate.CanSend(ctx, actor, thread)
		if err != nil {
			return storageErr("authorize message", err)
		}
		if err := d.Err(); err != nil {
			return err
		}

		msg = &model.Message{ThreadID: thread.ID, SenderID: actor, Body: body}
		if err := txs.messages.Create(ctx, msg); err != nil {
			return storageErr("create message", err)
		}
		if err := txs.threads.Touch(ctx, thread.ID, msg.CreatedAt); err != nil {
			return storageErr("touch thread", err)
		}
		for _, p := range thread.ParticipantIDs {
			if p != actor {
				events = append(events, MessageSent(msg, p))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	Dispatch(ctx, s.sink, events)
	return msg, nil
}

func (s *ThreadService) readable(ctx context.Context, actor, threadID uint) (*model.Thread, error) {
	thread, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		return nil, lookupErr(err, util.ErrThreadNotFound, "find thread")
	}
	if err := s.gate.CanRead(actor, thread).Err(); err != nil {
		return nil, err
	}
	return thread, nil
}

// GetThread returns a thread with its participants to a user who may read it.
func (s *ThreadService) GetThread(ctx context.Context, actor, threadID uint) (*model.Thread, error) {
	return s.readable(ctx, actor, threadID)
}

// LeaveThread removes the actor from a direct or group thread. Club and class
// threads follow membership, so leaving them goes through the club or course.
func (s *ThreadService) LeaveThread(ctx context.Context, actor, threadID uint) error {
	thread, err := s.readable(ctx, actor, threadID)
	if err != nil {
		return err
	}
	if thread.IsLinked() {
		return util.Forbiddenf("leave the club or class instead")
	}
	return s.RemoveParticipant(ctx, threadID, actor, RemoveLeave)
}

// TogglePin flips the pinned flag of a message in a thread the actor belongs to.
func (s *ThreadService) TogglePin(ctx context.Context, actor, messageID uint) (*model.Message, error) {
	var msg *model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txs := s.WithTx(tx)
		m, err := txs.messages.FindByID(ctx, messageID)
		if err != nil {
			return lookupErr(err, util.ErrMessageNotFound, "find message")
		}
		if _, err := txs.readable(ctx, actor, m.ThreadID); err != nil {
			return err
		}
		m.IsPinned = !m.IsPinned
		if err := txs.messages.SetPinned(ctx, m.ID, m.IsPinned); err != nil {
			return storageErr("pin message", err)
		}
		msg = m
		return nil
	})
	return msg, err
}

func (s *ThreadService) ListThreads(ctx context.Context, actor uint) ([]model.Thread, error) {
	threads, err := s.threads.ListForUser(ctx, actor)
	if err != nil {
		return nil, storageErr("list threads", err)
	}
	return threads, nil
}

// ListMessages returns the newest util.MaxHistory messages, newest first.
func (s *ThreadService) ListMessages(ctx context.Context, actor, threadID uint) ([]model.Message, error) {
	if _, err := s.readable(ctx, actor, threadID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListRecent(ctx, threadID, util.MaxHistory)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	return msgs, nil
}

func (s *ThreadService) MarkThreadRead(ctx context.Context, actor, threadID uint) (int64, error) {
	if _, err := s.readable(ctx, actor, threadID); err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, threadID, actor)
	if err != nil {
		return 0, storageErr("mark read", err)
	}
	return n, nil
}

func (k LinkKey) String() string {
	if k.ClubID != 0 {
		return fmt.Sprintf("club:%d", k.ClubID)
	}
	return fmt.Sprintf("course:%d", k.CourseID)
}
