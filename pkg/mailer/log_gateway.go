package mailer

import (
	"github.com/sirupsen/logrus"
)

// LogGateway is the development-mode gateway: it logs instead of sending
type LogGateway struct {
	logger *logrus.Logger
}

// NewLogGateway creates a gateway that only logs outgoing emails
func NewLogGateway(logger *logrus.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

// SendApproved logs the approved-reservation email
func (g *LogGateway) SendApproved(toAddress string, data TemplateData) error {
	g.log("reservation_approved", toAddress, data)
	return nil
}

// SendRejected logs the rejected-reservation email
func (g *LogGateway) SendRejected(toAddress string, data TemplateData) error {
	g.log("reservation_rejected", toAddress, data)
	return nil
}

// SendCancelled logs the cancelled-reservation email
func (g *LogGateway) SendCancelled(toAddress string, data TemplateData) error {
	g.log("reservation_cancelled", toAddress, data)
	return nil
}

// GetName returns the name of the gateway implementation
func (g *LogGateway) GetName() string {
	return "log"
}

func (g *LogGateway) log(template, toAddress string, data TemplateData) {
	g.logger.WithFields(logrus.Fields{
		"template": template,
		"to":       toAddress,
		"cabana":   data.CabanaName,
		"guest":    data.GuestName,
	}).Info("Email send skipped (dev mode)")
}
