package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StrSlice stores a list of strings as a JSON text column.
type StrSlice []string

func (s StrSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal string slice: %w", err)
	}
	return string(b), nil
}

func (s *StrSlice) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported string slice column type %T", src)
	}
	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}
