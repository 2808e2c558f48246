package transport

import "encoding/json"

// OptionalText distinguishes "field absent" from "field set to null". Both a
// JSON null and an empty string clear the value.
type OptionalText struct {
	Value *string
	Set   bool
}

func (o OptionalText) IsZero() bool {
	return !o.Set
}

func (o *OptionalText) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == "" {
		o.Value = nil
		return nil
	}

	o.Value = &raw
	return nil
}

type OptionalInt struct {
	Value *int64
	Set   bool
}

func (o OptionalInt) IsZero() bool {
	return !o.Set
}

func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var raw int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	o.Value = &raw
	return nil
}
