package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
)

// encodedValue is the wire form of one session field
type encodedValue struct {
	Type  models.ValueKind `json:"type"`
	Value json.RawMessage  `json:"value"`
}

// EncodeSessionData serializes session data into a JSON object
func EncodeSessionData(data models.SessionData) ([]byte, error) {
	out := make(map[string]encodedValue, len(data))
	for field, v := range data {
		var raw []byte
		var err error
		switch v.Kind {
		case models.KindString:
			raw, err = json.Marshal(v.Text)
		case models.KindNumber:
			raw, err = json.Marshal(v.Number)
		case models.KindDate:
			raw, err = json.Marshal(v.Date.UTC().Format(time.RFC3339))
		default:
			return nil, fmt.Errorf("field %s: unknown value kind %q", field, v.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		out[field] = encodedValue{Type: v.Kind, Value: raw}
	}
	return json.Marshal(out)
}

// DecodeSessionData parses the JSON produced by EncodeSessionData
func DecodeSessionData(raw []byte) (models.SessionData, error) {
	data := models.SessionData{}
	if len(raw) == 0 || string(raw) == "null" {
		return data, nil
	}

	var in map[string]encodedValue
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}

	for field, ev := range in {
		switch ev.Type {
		case models.KindString:
			var s string
			if err := json.Unmarshal(ev.Value, &s); err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			data[field] = models.StringValue(s)
		case models.KindNumber:
			var n float64
			if err := json.Unmarshal(ev.Value, &n); err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			data[field] = models.NumberValue(n)
		case models.KindDate:
			var s string
			if err := json.Unmarshal(ev.Value, &s); err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			data[field] = models.DateValue(t)
		default:
			return nil, fmt.Errorf("field %s: unknown value type %q", field, ev.Type)
		}
	}
	return data, nil
}
