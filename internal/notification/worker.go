package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"housekeeping-backend/internal/model"
)

// queueDepth bounds how many notifications may wait for a worker.
const queueDepth = 64

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

// Subscriptions is where staff devices are looked up and expired ones removed.
type Subscriptions interface {
	SubscriptionsFor(ctx context.Context, staffName string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Job is one message for every device of a staff member.
type Job struct {
	StaffName string `json:"-"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Tag       string `json:"tag,omitempty"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	subs    Subscriptions
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs Subscriptions, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, queueDepth),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Worker %d notifying %s", id, job.StaffName)
			wp.sendNotificationsForStaff(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job. It never blocks the caller: when the queue is full
// the job is dropped.
func (wp *WorkerPool) Dispatch(job Job) {
	select {
	case wp.jobs <- job:
	default:
		log.Printf("Warning: notification queue full, dropping message for %s", job.StaffName)
	}
}

// NotifyAssignment tells a staff member a room has been assigned to them.
func (wp *WorkerPool) NotifyAssignment(staffName string, task model.HousekeepingTask, facilityName string) {
	wp.Dispatch(Job{
		StaffName: staffName,
		Title:     fmt.Sprintf("Room %s assigned", task.RoomCode),
		Body:      fmt.Sprintf("%s, room %s: %s (%s priority)", facilityName, task.RoomCode, task.TaskType, task.Priority),
		Tag:       task.ID,
	})
}

// sendNotificationsForStaff fetches subscriptions and sends the job to each.
func (wp *WorkerPool) sendNotificationsForStaff(ctx context.Context, job Job) {
	subscriptions, err := wp.subs.SubscriptionsFor(ctx, job.StaffName)
	if err != nil {
		log.Printf("Error fetching subscriptions for %s: %v", job.StaffName, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		log.Printf("Error encoding notification for %s: %v", job.StaffName, err)
		return
	}

	log.Printf("Sending %d notifications to %s", len(subscriptions), job.StaffName)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
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

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
