package order

import "strings"

// Status is the lifecycle state of an order as reported by the server.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAccepted       Status = "accepted"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
)

// AllStatuses lists every known status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusPreparing,
	StatusOutForDelivery,
	StatusDelivered,
	StatusRejected,
	StatusCancelled,
}

// IsTerminal reports whether no further transitions follow s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label is the human-readable form, e.g. "out for delivery".
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// ParseStatus normalizes user input ("Out-For-Delivery", "out for delivery")
// into a Status. ok is false for unknown values.
func ParseStatus(v string) (Status, bool) {
	norm := strings.ToLower(strings.TrimSpace(v))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	s := Status(norm)
	return s, s.IsValid()
}
