package mailer

// TemplateData carries the reservation fields rendered into guest emails
type TemplateData struct {
	GuestName  string  `json:"guest_name"`
	CabanaName string  `json:"cabana_name"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	TotalPrice float64 `json:"total_price,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// EmailGateway defines the interface for sending reservation emails.
// All sends are fire-and-forget from the caller's perspective: a failed send
// must never affect a committed reservation transition.
type EmailGateway interface {
	// SendApproved notifies the requester their reservation was approved
	SendApproved(toAddress string, data TemplateData) error

	// SendRejected notifies the requester their reservation was rejected
	SendRejected(toAddress string, data TemplateData) error

	// SendCancelled notifies the requester their reservation was cancelled
	SendCancelled(toAddress string, data TemplateData) error

	// GetName returns the name of the gateway implementation
	GetName() string
}
