package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// JSON stores a raw JSON document in a TEXT column.
type JSON []byte

// ObjectOrNil returns raw as JSON when it holds a JSON object and nil otherwise.
// Arrays, scalars and null are dropped.
func ObjectOrNil(raw json.RawMessage) JSON {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var probe map[string]any
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil
	}
	return JSON(append([]byte(nil), trimmed...))
}

// Map decodes the document into a map. A nil document yields a nil map.
func (j JSON) Map() (map[string]any, error) {
	if len(j) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(j, &out); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	return out, nil
}

// Scan implements sql.Scanner. SQLite may hand back either []byte or string.
func (j *JSON) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSON value: %v", value)
	}

	result := json.RawMessage{}
	err := json.Unmarshal(raw, &result)
	*j = JSON(result)
	return err
}

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// PerformWrite executes a write transaction with retry logic for SQLite busy errors.
func PerformWrite(logger *slog.Logger, dbConn *gorm.DB, f func(tx *gorm.DB) error) error {
	return sqlite.PerformWrite(logger, dbConn, f)
}
