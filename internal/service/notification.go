package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clubnet_backend/internal/model"
	"clubnet_backend/internal/repository"
	"clubnet_backend/pkg/logger"
	"clubnet_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	EventFriendRequestCreated EventType = "friend_request_created"
	EventInviteCreated        EventType = "invite_created"
	EventMessageSent          EventType = "message_sent"
)

// Event is a notification-worthy fact produced by a committed operation. Every
// event has exactly one recipient.
type Event struct {
	Type        EventType `json:"type"`
	RecipientID uint      `json:"recipientId"`
	ActorID     uint      `json:"actorId"`
	ClubID      uint      `json:"clubId,omitempty"`
	ThreadID    uint      `json:"threadId,omitempty"`
	MessageID   uint      `json:"messageId,omitempty"`
	RelatedID   uint      `json:"relatedId,omitempty"`
	Text        string    `json:"text"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func FriendRequestCreated(req *model.FriendRequest, fromUsername string) Event {
	return Event{
		Type:        EventFriendRequestCreated,
		RecipientID: req.ToUserID,
		ActorID:     req.FromUserID,
		RelatedID:   req.ID,
		Text:        fmt.Sprintf("%s sent you a friend request", fromUsername),
		OccurredAt:  time.Now(),
	}
}

func InviteCreated(inv *model.ClubInvite, clubName string) Event {
	return Event{
		Type:        EventInviteCreated,
		RecipientID: inv.InviteeID,
		ActorID:     inv.InviterID,
		ClubID:      inv.ClubID,
		RelatedID:   inv.ID,
		Text:        fmt.Sprintf("You were invited to join %s", clubName),
		OccurredAt:  time.Now(),
	}
}

func MessageSent(msg *model.Message, recipientID uint) Event {
	return Event{
		Type:        EventMessageSent,
		RecipientID: recipientID,
		ActorID:     msg.SenderID,
		ThreadID:    msg.ThreadID,
		MessageID:   msg.ID,
		RelatedID:   msg.ThreadID,
		Text:        "You have a new message",
		OccurredAt:  msg.CreatedAt,
	}
}

// NotificationSink receives events after the transaction that produced them has
// committed. Delivery is the sink's concern.
type NotificationSink interface {
	Notify(ctx context.Context, events []Event) error
}

// Dispatch hands events to sink. Sink failures never fail the operation that
// produced the events; they are logged and counted.
func Dispatch(ctx context.Context, sink NotificationSink, events []Event) {
	if sink == nil || len(events) == 0 {
		return
	}
	if err := sink.Notify(ctx, events); err != nil {
		logger.Log.Warn("Notification sink failed", zap.Error(err), zap.Int("events", len(events)))
	}
}

// countDispatch records the first delivered events as ok and the rest of the
// batch, from the failing event on, as error.
func countDispatch(sink string, events []Event, delivered int) {
	for i, e := range events {
		result := "ok"
		if i >= delivered {
			result = "error"
		}
		monitoring.NotificationsDispatched.WithLabelValues(sink, string(e.Type), result).Inc()
	}
}

type NopSink struct{}

func (NopSink) Notify(context.Context, []Event) error { return nil }

// MultiSink fans events out to every sink and joins their errors.
type MultiSink []NotificationSink

func (m MultiSink) Notify(ctx context.Context, events []Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreSink writes events into the notifications inbox table.
type StoreSink struct {
	Repo *repository.NotificationRepository
}

func NewStoreSink(repo *repository.NotificationRepository) *StoreSink {
	return &StoreSink{Repo: repo}
}

func notificationType(t EventType) model.NotificationType {
	switch t {
	case EventFriendRequestCreated:
		return model.NotificationFriendRequest
	case EventInviteCreated:
		return model.NotificationClubInvite
	default:
		return model.NotificationMessage
	}
}

func (s *StoreSink) Notify(ctx context.Context, events []Event) error {
	var err error
	delivered := 0
	for _, e := range events {
		n := &model.Notification{
			UserID:  e.RecipientID,
			Type:    notificationType(e.Type),
			Message: e.Text,
		}
		if e.RelatedID != 0 {
			related := e.RelatedID
			n.RelatedID = &related
		}
		if err = s.Repo.Create(ctx, n); err != nil {
			err = fmt.Errorf("store notification for user %d: %w", e.RecipientID, err)
			break
		}
		delivered++
	}
	countDispatch("store", events, delivered)
	return err
}

// Publisher is the part of *redis.Client the Redis sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes each event as JSON on a pub/sub channel.
type RedisSink struct {
	Client  Publisher
	Channel string
}

func NewRedisSink(client Publisher, channel string) *RedisSink {
	return &RedisSink{Client: client, Channel: channel}
}

func (s *RedisSink) Notify(ctx context.Context, events []Event) error {
	var err error
	delivered := 0
	for _, e := range events {
		payload, mErr := json.Marshal(e)
		if mErr != nil {
			err = mErr
			break
		}
		if err = s.Client.Publish(ctx, s.Channel, payload).Err(); err != nil {
			err = fmt.Errorf("publish to %s: %w", s.Channel, err)
			break
		}
		delivered++
	}
	countDispatch("redis", events, delivered)
	return err
}

// AMQPPublisher is satisfied by *messaging.Publisher.
type AMQPPublisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

// AMQPSink publishes events to a topic exchange keyed user.<recipient>.<type>.
type AMQPSink struct {
	Publisher AMQPPublisher
}

func NewAMQPSink(p AMQPPublisher) *AMQPSink {
	return &AMQPSink{Publisher: p}
}

func RoutingKey(e Event) string {
	return fmt.Sprintf("user.%d.%s", e.RecipientID, e.Type)
}

func (s *AMQPSink) Notify(ctx context.Context, events []Event) error {
	var err error
	delivered := 0
	for _, e := range events {
		body, mErr := json.Marshal(e)
		if mErr != nil {
			err = mErr
			break
		}
		if err = s.Publisher.Publish(ctx, RoutingKey(e), uuid.NewString(), body); err != nil {
			err = fmt.Errorf("amqp publish %s: %w", RoutingKey(e), err)
			break
		}
		delivered++
	}
	countDispatch("amqp", events, delivered)
	return err
}
