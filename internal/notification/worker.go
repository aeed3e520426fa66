package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"spotwise-backend/internal/model"
	"spotwise-backend/internal/stats"
)

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

// Alert announces that the lot has a free spot again.
type Alert struct {
	SpotID     string `json:"spotId"`
	SpotNumber string `json:"spotNumber"`
	Available  int    `json:"available"`
}

type alertPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Alert
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
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
		case alert := <-wp.jobs:
			log.Printf("Worker %d processing alert for spot %s", id, alert.SpotNumber)
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert without blocking. The alert is dropped when the
// queue is full.
func (wp *WorkerPool) Dispatch(alert Alert) bool {
	select {
	case wp.jobs <- alert:
		return true
	default:
		log.Printf("Notification queue full, dropping alert for spot %s", alert.SpotNumber)
		return false
	}
}

// OnRegistryChange is a registry listener that dispatches an alert when the
// lot goes from no available spot to at least one.
func (wp *WorkerPool) OnRegistryChange(prev, next []model.Spot) {
	if stats.Compute(prev).Available > 0 {
		return
	}
	after := stats.Compute(next)
	if after.Available == 0 {
		return
	}
	for _, s := range next {
		if s.Available() {
			wp.Dispatch(Alert{SpotID: s.ID, SpotNumber: s.SpotNumber, Available: after.Available})
			return
		}
	}
}

func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(alertPayload{
		Title: "Spotwise",
		Body:  fmt.Sprintf("Spot %s is now available", alert.SpotNumber),
		Alert: alert,
	})
	if err != nil {
		log.Printf("Error encoding alert: %v", err)
		return
	}

	log.Printf("Sending %d notifications for spot %s", len(subscriptions), alert.SpotNumber)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, body)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
