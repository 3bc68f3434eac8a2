package payload

import "strings"

// Kind is the content type encoded into a QR code.
type Kind string

const (
	KindURL      Kind = "url"
	KindWhatsApp Kind = "whatsapp"
	KindWiFi     Kind = "wifi"
	KindText     Kind = "text"
	KindVCard    Kind = "vcard"
)

var kinds = []Kind{KindURL, KindWhatsApp, KindWiFi, KindText, KindVCard}

// Kinds returns every supported kind in display order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind maps raw form input onto the closed set of kinds.
// An empty value selects KindURL, the form default.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindURL, nil
	}
	k := Kind(s)
	if !k.Valid() {
		return "", &UnsupportedKindError{Kind: s}
	}
	return k, nil
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindURL, KindWhatsApp, KindWiFi, KindText, KindVCard:
		return true
	}
	return false
}

// Viewer reports whether codes of this kind open the viewer page
// instead of redirecting to a target URL.
func (k Kind) Viewer() bool {
	switch k {
	case KindWiFi, KindText, KindVCard:
		return true
	}
	return false
}

// Security is the WiFi authentication mode.
type Security string

const (
	SecurityWPA    Security = "WPA"
	SecurityWEP    Security = "WEP"
	SecurityNoPass Security = "nopass"
)

// ParseSecurity returns the matching mode, defaulting to WPA for empty
// or unrecognised input.
func ParseSecurity(s string) Security {
	s = strings.TrimSpace(s)
	for _, sec := range []Security{SecurityWPA, SecurityWEP, SecurityNoPass} {
		if strings.EqualFold(s, string(sec)) {
			return sec
		}
	}
	return SecurityWPA
}
