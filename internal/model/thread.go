package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Thread is a conversation. Ad-hoc threads are identified by ParticipantSetKey;
// linked threads by ClubID or CourseID. The three columns are unique.
type Thread struct {
	ID                uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name              string        `gorm:"size:100" json:"name"`
	IsGroup           bool          `gorm:"default:false" json:"isGroup"`
	ClubID            *uint         `gorm:"uniqueIndex" json:"clubId,omitempty"`
	CourseID          *uint         `gorm:"uniqueIndex" json:"courseId,omitempty"`
	ParticipantSetKey *string       `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	Participants      []Participant `gorm:"foreignKey:ThreadID" json:"participants,omitempty"`
	ParticipantIDs    []uint        `gorm:"-" json:"participantIds"`
}

func (Thread) TableName() string {
	return "threads"
}

// IsLinked reports whether the thread is bound to a club or a course.
func (t *Thread) IsLinked() bool {
	return t.ClubID != nil || t.CourseID != nil
}

// FillParticipantIDs flattens Participants into ParticipantIDs.
func (t *Thread) FillParticipantIDs() {
	t.ParticipantIDs = make([]uint, 0, len(t.Participants))
	for _, p := range t.Participants {
		t.ParticipantIDs = append(t.ParticipantIDs, p.UserID)
	}
}

type Participant struct {
	ThreadID uint      `gorm:"primaryKey;autoIncrement:false" json:"threadId"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

func (Participant) TableName() string {
	return "thread_participants"
}

type Message struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID  uint      `gorm:"index:idx_thread_created;not null" json:"threadId"`
	SenderID  uint      `gorm:"index;not null" json:"senderId"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index:idx_thread_created" json:"createdAt"`
	IsRead    bool      `gorm:"default:false" json:"isRead"`
	IsPinned  bool      `gorm:"default:false" json:"isPinned"`
}

func (Message) TableName() string {
	return "messages"
}

// UniqueUserIDs returns ids de-duplicated and sorted ascending.
func UniqueUserIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParticipantSetKey is the canonical identity of a participant set: the hex
// SHA-256 of the sorted, de-duplicated ids joined by ",".
func ParticipantSetKey(ids []uint) string {
	sorted := UniqueUserIDs(ids)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}
