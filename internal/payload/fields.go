package payload

import "github.com/zhejian/url-shortener/qrform/internal/auth"

// Field describes one input of the form for a given kind.
type Field struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Multiline   bool     `json:"multiline,omitempty"`
	Options     []string `json:"options,omitempty"`
}

var kindFields = map[Kind][]Field{
	KindURL: {
		{Name: "url", Label: "URL", Placeholder: "https://..."},
	},
	KindWhatsApp: {
		{Name: "phone", Label: "WhatsApp", Placeholder: "Phone number with country code"},
		{Name: "message", Label: "Message", Placeholder: "Message (optional)"},
	},
	KindWiFi: {
		{Name: "ssid", Label: "WiFi", Placeholder: "SSID / network name"},
		{Name: "password", Label: "Password", Placeholder: "Password"},
		{Name: "security", Label: "Security", Options: []string{
			string(SecurityWPA), string(SecurityWEP), string(SecurityNoPass),
		}},
	},
	KindText: {
		{Name: "text", Label: "Text", Placeholder: "Write something...", Multiline: true},
	},
	KindVCard: {
		{Name: "name", Label: "Contact (vCard)", Placeholder: "Full name"},
		{Name: "telephone", Label: "Telephone", Placeholder: "Telephone (optional)"},
		{Name: "email", Label: "Email", Placeholder: "Email (optional)"},
		{Name: "organization", Label: "Organization", Placeholder: "Company (optional)"},
	},
}

// FieldsFor returns the inputs shown for kind, or nil for an unknown kind.
func FieldsFor(k Kind) []Field {
	fs, ok := kindFields[k]
	if !ok {
		return nil
	}
	out := make([]Field, len(fs))
	copy(out, fs)
	return out
}

// AllowedKinds returns the kinds a caller may select. Guests get url only.
func AllowedKinds(a auth.Context) []Kind {
	if !a.Authenticated {
		return []Kind{KindURL}
	}
	return Kinds()
}

// MetadataLocked reports whether title, expiry and scan limit inputs are
// disabled for the caller.
func MetadataLocked(a auth.Context) bool {
	return !a.Authenticated
}
