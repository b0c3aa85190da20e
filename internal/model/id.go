package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ExternalID is an identifier assigned by the order-management API.
// The zero value means "not available". Integer ids are written as JSON
// numbers, anything else as a JSON string.
type ExternalID string

func (id ExternalID) IsZero() bool { return id == "" }

func (id ExternalID) String() string { return string(id) }

func (id ExternalID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ExternalID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ExternalID(strings.TrimSpace(str))
		return nil
	}
	*id = ExternalID(s)
	return nil
}
