package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is a QR code created through this form, kept so the page can
// copy the short URL, download the image and list recent codes.
type Result struct {
	ID        uuid.UUID  `json:"id"`
	SessionID string     `json:"session_id"`
	Code      string     `json:"code"`
	ShortURL  string     `json:"short_url"`
	Kind      string     `json:"kind"`
	Title     *string    `json:"title,omitempty"`
	Guest     bool       `json:"guest"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxScans  *int       `json:"max_scans,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreationResult is the creation service's response document
type CreationResult struct {
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	ShortURL  string `json:"short_url,omitempty"`
	Guest     bool   `json:"guest,omitempty"`
	Error     string `json:"error,omitempty"`
	NeedLogin bool   `json:"need_login,omitempty"`
}

// SubmitResponse represents the response for a created QR code
type SubmitResponse struct {
	Code      string `json:"code"`
	ShortURL  string `json:"short_url"`
	Guest     bool   `json:"guest"`
	QRDataURL string `json:"qr_data_url,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	Message   string `json:"message"`
}

// ResultResponse represents a stored result
type ResultResponse struct {
	Code      string `json:"code"`
	ShortURL  string `json:"short_url"`
	Kind      string `json:"kind"`
	Title     string `json:"title,omitempty"`
	Guest     bool   `json:"guest"`
	ExpiresAt string `json:"expires_at,omitempty"`
	MaxScans  *int   `json:"max_scans,omitempty"`
	CreatedAt string `json:"created_at"`
	ImageURL  string `json:"image_url"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	NeedLogin bool   `json:"need_login,omitempty"`
}
