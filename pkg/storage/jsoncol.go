package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/negentropy-ai/engine/pkg/models"
)

// jsonCol adapts models.JSONMap to database/sql's Scanner/Valuer so it can be
// bound directly as a jsonb query parameter/result column.
type jsonCol struct {
	m *models.JSONMap
}

func jsonColumn(m *models.JSONMap) *jsonCol { return &jsonCol{m: m} }

func (c *jsonCol) Scan(src any) error {
	if src == nil {
		*c.m = models.JSONMap{}
		return nil
	}
	var b []byte
	switch t := src.(type) {
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return fmt.Errorf("unsupported jsonb scan source %T", src)
	}
	if len(b) == 0 {
		*c.m = models.JSONMap{}
		return nil
	}
	var out models.JSONMap
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("unmarshal jsonb column: %w", err)
	}
	*c.m = out
	return nil
}

func (c *jsonCol) Value() (driver.Value, error) {
	if c.m == nil || *c.m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(*c.m)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb column: %w", err)
	}
	return b, nil
}

// jsonValue marshals m for use directly as a query argument (write path).
func jsonValue(m models.JSONMap) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb value: %w", err)
	}
	return b, nil
}
