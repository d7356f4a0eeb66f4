package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway sends reservation emails through a transactional mail HTTP API
type HTTPGateway struct {
	apiURL      string
	apiKey      string
	fromAddress string
	client      *http.Client
}

// Config holds configuration for the HTTP mail gateway
type Config struct {
	APIURL      string
	APIKey      string
	FromAddress string
}

// NewHTTPGateway creates a new HTTP mail gateway client
func NewHTTPGateway(config Config) *HTTPGateway {
	return &HTTPGateway{
		apiURL:      config.APIURL,
		apiKey:      config.APIKey,
		fromAddress: config.FromAddress,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// sendRequest is the wire format of the mail API
type sendRequest struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Subject  string       `json:"subject"`
	Template string       `json:"template"`
	Data     TemplateData `json:"data"`
}

type sendResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
	ErrCode string `json:"err_code,omitempty"`
}

// SendApproved notifies the requester their reservation was approved
func (g *HTTPGateway) SendApproved(toAddress string, data TemplateData) error {
	subject := fmt.Sprintf("Your reservation for %s is confirmed", data.CabanaName)
	return g.send(toAddress, subject, "reservation_approved", data)
}

// SendRejected notifies the requester their reservation was rejected
func (g *HTTPGateway) SendRejected(toAddress string, data TemplateData) error {
	subject := fmt.Sprintf("Your reservation for %s was declined", data.CabanaName)
	return g.send(toAddress, subject, "reservation_rejected", data)
}

// SendCancelled notifies the requester their reservation was cancelled
func (g *HTTPGateway) SendCancelled(toAddress string, data TemplateData) error {
	subject := fmt.Sprintf("Your reservation for %s was cancelled", data.CabanaName)
	return g.send(toAddress, subject, "reservation_cancelled", data)
}

// GetName returns the name of the gateway implementation
func (g *HTTPGateway) GetName() string {
	return "http"
}

func (g *HTTPGateway) send(toAddress, subject, template string, data TemplateData) error {
	if toAddress == "" {
		return fmt.Errorf("recipient address is empty")
	}

	payload := sendRequest{
		From:     g.fromAddress,
		To:       toAddress,
		Subject:  subject,
		Template: template,
		Data:     data,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.apiURL+"/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call mail API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read mail API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mail API returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp sendResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("failed to parse mail API response: %w", err)
	}
	if apiResp.Status != "" && apiResp.Status != "success" {
		return fmt.Errorf("mail API error %s: %s", apiResp.ErrCode, apiResp.Comment)
	}

	return nil
}
