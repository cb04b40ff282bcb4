package drive

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// CursorVersion is the current cursor format version.
const CursorVersion = 1

// ErrInvalidCursor indicates the cursor could not be decoded.
var ErrInvalidCursor = errors.New("drive: invalid cursor format")

// Cursor tracks Drive sync progress. A fresh cursor walks the whole corpus
// with the Files API first, then hands over to the Changes API token
// captured before the walk, so changes made during the walk are replayed.
type Cursor struct {
	// Version is the cursor format version for future compatibility.
	Version int `json:"v"`

	// PageToken is the Changes API token: the start page token captured
	// before the initial walk, advanced batch by batch afterwards.
	PageToken string `json:"page_token"`

	// ListToken is the Files API page token of an initial walk still in
	// progress. Empty once the walk is done.
	ListToken string `json:"list_token,omitempty"`

	// Listing marks an initial walk in progress.
	Listing bool `json:"listing,omitempty"`
}

// NewCursor creates a new empty cursor.
func NewCursor() *Cursor {
	return &Cursor{
		Version: CursorVersion,
	}
}

// Encode serialises the cursor to a base64 string for storage.
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserialises a cursor from a base64 string.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return NewCursor(), nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}

	if cursor.Version > CursorVersion {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// IsEmpty returns true if the cursor has no sync state.
func (c *Cursor) IsEmpty() bool {
	return c.PageToken == "" && !c.Listing
}
