package returns

import "context"

// NotificationEvent is a customer-facing moment of the lifecycle
type NotificationEvent string

const (
	NotifyPickupScheduled  NotificationEvent = "pickup_scheduled"
	NotifyPackageReceived  NotificationEvent = "package_received"
	NotifyInspectionPassed NotificationEvent = "inspection_passed"
	NotifyInspectionFailed NotificationEvent = "inspection_failed"
)

var notificationByEventType = map[string]NotificationEvent{
	EventTypePickupScheduled:  NotifyPickupScheduled,
	EventTypePackageReceived:  NotifyPackageReceived,
	EventTypeInspectionPassed: NotifyInspectionPassed,
	EventTypeInspectionFailed: NotifyInspectionFailed,
}

// NotificationFor maps a domain event type to the customer notification it triggers
func NotificationFor(eventType string) (NotificationEvent, bool) {
	n, ok := notificationByEventType[eventType]
	return n, ok
}

// NotificationEventTypes lists the domain event types that notify the customer
func NotificationEventTypes() []string {
	return []string{
		EventTypePickupScheduled,
		EventTypePackageReceived,
		EventTypeInspectionPassed,
		EventTypeInspectionFailed,
	}
}

// Notifier delivers a customer notification. Delivery is best effort from the
// lifecycle's point of view; failures never undo a transition.
type Notifier interface {
	Notify(ctx context.Context, event NotificationEvent, payload *ReturnLifecycleEvent, customer *CustomerContact) error
}
