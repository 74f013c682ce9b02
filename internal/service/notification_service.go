package service

import (
	"context"
	"encoding/json"
	"time"

	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	RedisNotificationChannelPrefix = "notifications:"

	notifyTimeout = 5 * time.Second
)

// NotificationMessage is what a notification looks like to callers.
type NotificationMessage struct {
	OwnerID   uuid.UUID
	OwnerRole string
	Type      string
	BookingID uuid.UUID
	Message   string
	Meta      map[string]interface{}
}

// Notifier delivers a message to a user at most once per (owner, type, booking).
// Delivery is best effort and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, msg NotificationMessage)
}

type notificationService struct {
	transactor       database.Transactor
	redisClient      *redis.Client
	log              *logrus.Logger
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(
	transactor database.Transactor,
	redisClient *redis.Client,
	log *logrus.Logger,
	notificationRepo repository.NotificationRepository,
) Notifier {
	return &notificationService{
		transactor:       transactor,
		redisClient:      redisClient,
		log:              log,
		notificationRepo: notificationRepo,
	}
}

func (s *notificationService) Notify(ctx context.Context, msg NotificationMessage) {
	// detached so a cancelled request does not drop the notification
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	meta := entity.JSON{}
	for k, v := range msg.Meta {
		meta[k] = v
	}
	meta["booking_id"] = msg.BookingID.String()

	notification := &entity.Notification{
		OwnerID:   msg.OwnerID,
		OwnerRole: msg.OwnerRole,
		Type:      msg.Type,
		BookingID: msg.BookingID,
		Message:   msg.Message,
		Meta:      meta,
	}

	created, err := s.notificationRepo.CreateIfAbsent(s.transactor.DB(ctx), notification)
	if err != nil {
		s.log.Warnf("Failed to store notification %s for %s: %+v", msg.Type, msg.OwnerID, err)
		return
	}
	if !created {
		s.log.Debugf("Notification %s for booking %s already sent to %s", msg.Type, msg.BookingID, msg.OwnerID)
		return
	}

	if s.redisClient == nil {
		return
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		s.log.Warnf("Failed to encode notification: %+v", err)
		return
	}
	channel := RedisNotificationChannelPrefix + msg.OwnerID.String()
	if err := s.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		s.log.Warnf("Failed to publish notification on %s: %+v", channel, err)
	}
}
