package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONStrings stores a string slice as a JSON array in a TEXT column. The
// record store keeps id sets (notebook ids, folder ids, tag ids) denormalized
// on the row, mirroring the document shape the snapshots use.
type JSONStrings []string

func (j JSONStrings) Value() (driver.Value, error) {
	if j == nil {
		j = JSONStrings{}
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (j *JSONStrings) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = JSONStrings{}
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONStrings", src)
	}
}
