package notification

import (
	"fmt"

	"github.com/marketplace/returns/internal/domain/returns"
)

// Message is the rendered customer notification
type Message struct {
	Subject string
	Body    string
}

// Render builds the customer-facing text of a lifecycle notification
func Render(event returns.NotificationEvent, payload *returns.ReturnLifecycleEvent, customer *returns.CustomerContact) Message {
	greeting := "Hello"
	if customer != nil && customer.Name != "" {
		greeting = "Hello " + customer.Name
	}

	switch event {
	case returns.NotifyPickupScheduled:
		when := "soon"
		if payload.PickupDate != nil {
			when = "on " + payload.PickupDate.Format("2 Jan 2006")
		}
		body := fmt.Sprintf("%s,\n\nA pickup for your return %s is scheduled %s.", greeting, payload.ReturnNumber, when)
		if payload.AwbNumber != "" {
			body += fmt.Sprintf(" Tracking number: %s.", payload.AwbNumber)
		} else {
			body += " The seller will contact you to arrange the collection."
		}
		return Message{Subject: "Pickup scheduled for return " + payload.ReturnNumber, Body: body}
	case returns.NotifyPackageReceived:
		return Message{
			Subject: "We received your return " + payload.ReturnNumber,
			Body:    fmt.Sprintf("%s,\n\nThe seller has received your return %s and will inspect it shortly.", greeting, payload.ReturnNumber),
		}
	case returns.NotifyInspectionPassed:
		return Message{
			Subject: "Return " + payload.ReturnNumber + " approved for refund",
			Body: fmt.Sprintf("%s,\n\nYour return %s passed inspection. A refund of %s will be initiated.",
				greeting, payload.ReturnNumber, payload.RefundAmount.StringFixed(2)),
		}
	case returns.NotifyInspectionFailed:
		body := fmt.Sprintf("%s,\n\nYour return %s did not pass inspection.", greeting, payload.ReturnNumber)
		if payload.InspectionNotes != "" {
			body += " Seller notes: " + payload.InspectionNotes
		}
		return Message{Subject: "Update on return " + payload.ReturnNumber, Body: body}
	}
	return Message{
		Subject: "Update on return " + payload.ReturnNumber,
		Body:    fmt.Sprintf("%s,\n\nYour return %s is now %s.", greeting, payload.ReturnNumber, payload.ToStatus),
	}
}
