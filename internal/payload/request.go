package payload

import (
	"encoding/json"

	"github.com/zhejian/url-shortener/qrform/internal/auth"
)

// CreationRequest is a validated request for the creation service.
// Exactly one of TargetURL (KindURL) or Content (every other kind) is set.
type CreationRequest struct {
	Kind      Kind
	Title     *string
	ExpiresAt *int64 // epoch seconds
	MaxScans  *int
	TargetURL string
	Content   Content
}

// Content is the structured payload of a non-URL kind.
type Content interface {
	Kind() Kind
}

// WhatsApp opens a chat with Phone, optionally pre-filled with Message.
type WhatsApp struct {
	Phone   string `json:"phone"`
	Message string `json:"msg"`
}

func (WhatsApp) Kind() Kind { return KindWhatsApp }

// WiFi holds network credentials shown by the viewer.
type WiFi struct {
	SSID     string   `json:"ssid"`
	Password string   `json:"pass"`
	Security Security `json:"sec"`
}

func (WiFi) Kind() Kind { return KindWiFi }

// Text is free text shown by the viewer. It may be empty.
type Text string

func (Text) Kind() Kind { return KindText }

// VCard is a contact card. Only Name is expected, none are enforced.
type VCard struct {
	Name         string `json:"name"`
	Telephone    string `json:"tel"`
	Email        string `json:"email"`
	Organization string `json:"org"`
}

func (VCard) Kind() Kind { return KindVCard }

// HasMetadata reports whether any of title, expiry or scan limit is set.
func (r *CreationRequest) HasMetadata() bool {
	return r.Title != nil || r.ExpiresAt != nil || r.MaxScans != nil
}

// Allowed checks the guest invariant on an already built request: a guest
// may only send a bare URL. It is enforced again here, independently of the
// builder, before anything leaves the process.
func (r *CreationRequest) Allowed(a auth.Context) error {
	if a.Authenticated {
		return nil
	}
	if r.Kind != KindURL {
		return denied("kind")
	}
	switch {
	case r.Title != nil:
		return denied("title")
	case r.ExpiresAt != nil:
		return denied("expires_in")
	case r.MaxScans != nil:
		return denied("max_scans")
	}
	return nil
}

// wireRequest is the JSON document the creation service accepts.
type wireRequest struct {
	Kind      Kind    `json:"kind"`
	Title     *string `json:"title"`
	ExpiresAt *int64  `json:"expires_at"`
	MaxScans  *int    `json:"max_scans"`
	TargetURL string  `json:"target_url,omitempty"`
	Payload   Content `json:"payload,omitempty"`
}

// MarshalJSON encodes r in the creation service's wire format: url kinds
// carry "target_url", every other kind carries "payload".
func (r CreationRequest) MarshalJSON() ([]byte, error) {
	w := wireRequest{
		Kind:      r.Kind,
		Title:     r.Title,
		ExpiresAt: r.ExpiresAt,
		MaxScans:  r.MaxScans,
	}
	if r.Kind == KindURL {
		w.TargetURL = r.TargetURL
	} else {
		w.Payload = r.Content
	}
	return json.Marshal(w)
}
