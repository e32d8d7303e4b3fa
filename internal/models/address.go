package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Address is a postal address snapshot stored with an order as a JSON column
type Address struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// MissingFields returns the JSON names of empty fields
func (a Address) MissingFields() []string {
	fields := []struct {
		name  string
		value string
	}{
		{"name", a.Name},
		{"email", a.Email},
		{"phone", a.Phone},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Value implements driver.Valuer
func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		*a = Address{}
		return nil
	default:
		return fmt.Errorf("address: unsupported scan type %T", src)
	}
}
