package payload

import (
	"strings"
	"time"

	"github.com/zhejian/url-shortener/qrform/internal/auth"
)

// Builder turns form state into a validated CreationRequest. It has no
// side effects; the clock is injected so results are reproducible.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a builder reading time from now, or time.Now if nil.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// BuildRequest builds with the wall clock.
func BuildRequest(form FormState, a auth.Context) (*CreationRequest, error) {
	return NewBuilder(nil).Build(form, a)
}

// Build validates form for the given caller and returns the request, or
// one of *PermissionDeniedError, *MissingFieldError, *UnsupportedKindError.
// No partial request is ever returned.
func (b *Builder) Build(form FormState, a auth.Context) (*CreationRequest, error) {
	raw := strings.ToLower(strings.TrimSpace(form.Kind))
	if !a.Authenticated && raw != "" && raw != string(KindURL) {
		return nil, denied("kind")
	}

	kind, err := ParseKind(raw)
	if err != nil {
		return nil, err
	}

	req := &CreationRequest{Kind: kind}
	if a.Authenticated {
		b.applyMetadata(req, form)
	}

	switch kind {
	case KindURL:
		req.TargetURL = NormalizeURL(form.URL)
		if req.TargetURL == "" {
			return nil, &MissingFieldError{Field: "url"}
		}
	case KindWhatsApp:
		req.Content = WhatsApp{
			Phone:   strings.TrimSpace(form.Phone),
			Message: strings.TrimSpace(form.Message),
		}
	case KindWiFi:
		req.Content = WiFi{
			SSID:     strings.TrimSpace(form.SSID),
			Password: strings.TrimSpace(form.Password),
			Security: ParseSecurity(form.Security),
		}
	case KindText:
		req.Content = Text(strings.TrimSpace(form.Text))
	case KindVCard:
		req.Content = VCard{
			Name:         strings.TrimSpace(form.Name),
			Telephone:    strings.TrimSpace(form.Telephone),
			Email:        strings.TrimSpace(form.Email),
			Organization: strings.TrimSpace(form.Organization),
		}
	default:
		// unreachable while ParseKind and this switch agree
		return nil, &UnsupportedKindError{Kind: string(kind)}
	}

	if !a.Authenticated {
		if err := guestInputAllowed(form); err != nil {
			return nil, err
		}
	}
	if err := req.Allowed(a); err != nil {
		return nil, err
	}
	return req, nil
}

func (b *Builder) applyMetadata(req *CreationRequest, form FormState) {
	if t := strings.TrimSpace(form.Title); t != "" {
		req.Title = &t
	}
	if minutes, ok := form.ExpiresInMinutes.Positive(); ok {
		at := b.now().Unix() + int64(minutes)*60
		req.ExpiresAt = &at
	}
	if n, ok := form.MaxScans.Positive(); ok {
		req.MaxScans = &n
	}
}

// guestInputAllowed rejects a guest form that filled in any metadata field,
// even though the builder would have ignored it.
func guestInputAllowed(form FormState) error {
	switch {
	case strings.TrimSpace(form.Title) != "":
		return denied("title")
	case !form.ExpiresInMinutes.Empty():
		return denied("expires_in")
	case !form.MaxScans.Empty():
		return denied("max_scans")
	}
	return nil
}
