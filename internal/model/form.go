package model

// FieldSchema describes one input of the creation form
type FieldSchema struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Multiline   bool     `json:"multiline,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// FormSchema tells the page which kinds and inputs to render for the caller
type FormSchema struct {
	Authenticated  bool          `json:"authenticated"`
	Kind           string        `json:"kind"`
	Kinds          []string      `json:"kinds"`
	Fields         []FieldSchema `json:"fields"`
	MetadataLocked bool          `json:"metadata_locked"`
	Hint           string        `json:"hint"`
	Notice         string        `json:"notice,omitempty"`
}
