package worker

import (
	"context"
	"log"

	"course-commerce/internal/broker"
	"course-commerce/internal/notify"
	"course-commerce/internal/service"
)

// EnrollmentWorker turns paid orders into enrollments and unwinds them
// on refund
type EnrollmentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewEnrollmentWorker creates an enrollment worker
func NewEnrollmentWorker(consumer *broker.Consumer, enrollments *service.EnrollmentService) *EnrollmentWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(enrollments.HandleOrderPaid)
	eventHandler.OnOrderRefunded(enrollments.HandleOrderRefunded)

	return &EnrollmentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *EnrollmentWorker) Start(ctx context.Context) error {
	log.Println("Starting enrollment worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EnrollmentWorker) Stop() error {
	log.Println("Stopping enrollment worker...")
	return w.consumer.Close()
}

// NotificationWorker emails users when enrollments are created
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewNotificationWorker creates a notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier *notify.Notifier) *NotificationWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnEnrollmentCreated(notifier.HandleEnrollmentCreated)

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}
