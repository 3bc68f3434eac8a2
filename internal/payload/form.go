package payload

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FormState is the raw state of the creation form as the page submits it.
// Every field is the text the user typed; nothing here is validated.
type FormState struct {
	Kind             string    `json:"kind"`
	Title            string    `json:"title"`
	ExpiresInMinutes FormValue `json:"expires_in"`
	MaxScans         FormValue `json:"max_scans"`

	// url
	URL string `json:"url"`

	// whatsapp
	Phone   string `json:"phone"`
	Message string `json:"message"`

	// wifi
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Security string `json:"security"`

	// text
	Text string `json:"text"`

	// vcard
	Name         string `json:"name"`
	Telephone    string `json:"telephone"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
}

// FormValue is a free-text input that pages sometimes send as a JSON
// number. It accepts strings, numbers and null.
type FormValue string

func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = FormValue(n.String())
	return nil
}

// Empty reports whether the input is blank.
func (v FormValue) Empty() bool {
	return strings.TrimSpace(string(v)) == ""
}

// Positive parses v as a base-10 integer. Blank, malformed, out of
// 32-bit range, zero and negative input all report ok=false: these are
// treated as "unset", never as errors.
//
// Unlike a browser's parseInt, the whole trimmed input must be an integer:
// "12abc" and "1.5" are unset rather than 12 and 1, and values above
// 2147483647 are unset rather than accepted.
func (v FormValue) Positive() (n int, ok bool) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil || i <= 0 {
		return 0, false
	}
	return int(i), true
}
