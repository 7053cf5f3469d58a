// Package sms sends text messages through the Twilio Messages API.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var ErrNotConfigured = errors.New("twilio credentials not configured")

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

type Config struct {
	BaseURL             string
	AccountSID          string
	AuthToken           string
	MessagingServiceSID string
	PhonePrefix         string
}

// Client sends each message once; there is no retry.
type Client struct {
	httpClient *resty.Client
	cfg        Config
}

func NewClient(cfg Config) *Client {
	if cfg.PhonePrefix == "" {
		cfg.PhonePrefix = "+91"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(15*time.Second).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	return &Client{httpClient: client, cfg: cfg}
}

// NormalizePhone prefixes the country code unless the number already carries it.
func NormalizePhone(phone, prefix string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, prefix) {
		return phone
	}
	return prefix + phone
}

// Send delivers body to phone and returns the provider's message SID.
func (c *Client) Send(ctx context.Context, phone, body string) (string, error) {
	if c.cfg.AccountSID == "" || c.cfg.AuthToken == "" || c.cfg.MessagingServiceSID == "" {
		return "", ErrNotConfigured
	}

	to := NormalizePhone(phone, c.cfg.PhonePrefix)

	var result messageResponse
	var failure apiError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("sid", c.cfg.AccountSID).
		SetFormData(map[string]string{
			"To":                  to,
			"MessagingServiceSid": c.cfg.MessagingServiceSID,
			"Body":                body,
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/Accounts/{sid}/Messages.json")
	if err != nil {
		return "", fmt.Errorf("failed to call Twilio API: %w", err)
	}
	if resp.IsError() {
		log.Error().
			Int("status_code", resp.StatusCode()).
			Int("twilio_code", failure.Code).
			Msg("Twilio API returned error")
		msg := failure.Message
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("Twilio API error: %s (code: %d)", msg, failure.Code)
	}

	log.Info().Str("to", to).Str("sid", result.SID).Msg("sms sent")
	return result.SID, nil
}
