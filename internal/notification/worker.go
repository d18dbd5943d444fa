package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"childcare-scheduling-backend/internal/model"
)

// Notifier delivers one event to one recipient.
type Notifier interface {
	Notify(ctx context.Context, event EventType, recipientID int64, payload map[string]any) error
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// PushNotifier delivers events as web push messages to every subscription of
// the recipient.
type PushNotifier struct {
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewPushNotifier creates a Notifier that sends web push through webpushOptions.
func NewPushNotifier(db *gorm.DB, webpushOptions *webpush.Options) *PushNotifier {
	return &PushNotifier{
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

type pushMessage struct {
	Type    EventType      `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notify implements Notifier.
func (n *PushNotifier) Notify(ctx context.Context, event EventType, recipientID int64, payload map[string]any) error {
	var subscriptions []model.PushSubscription
	if err := n.db.WithContext(ctx).Where("user_id = ?", recipientID).Find(&subscriptions).Error; err != nil {
		return fmt.Errorf("failed to fetch subscriptions for user %d: %w", recipientID, err)
	}
	if len(subscriptions) == 0 {
		return nil
	}

	body, err := json.Marshal(pushMessage{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s notification: %w", event, err)
	}

	log.Printf("Sending %d %s notifications to user %d", len(subscriptions), event, recipientID)
	for _, sub := range subscriptions {
		n.send(ctx, sub, body)
	}
	return nil
}

// send sends a single web push notification and drops expired subscriptions.
func (n *PushNotifier) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := n.sender.Send(payload, wpSub, n.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := n.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

// WorkerPool fans committed events out to a Notifier on a fixed number of
// goroutines. It implements Publisher.
type WorkerPool struct {
	size     int
	jobs     chan Event
	notifier Notifier
}

// NewWorkerPool creates a new worker pool with a queue of queueSize events.
func NewWorkerPool(size, queueSize int, notifier Notifier) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Event, queueSize),
		notifier: notifier,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			if err := wp.notifier.Notify(ctx, ev.Type, ev.RecipientID, ev.Payload); err != nil {
				log.Printf("Worker %d failed to deliver %s to user %d: %v", id, ev.Type, ev.RecipientID, err)
			}
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Publish queues ev for delivery. A full queue drops the event rather than
// stalling the request that produced it.
func (wp *WorkerPool) Publish(ev Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("Notification queue full; dropping %s for user %d", ev.Type, ev.RecipientID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}
