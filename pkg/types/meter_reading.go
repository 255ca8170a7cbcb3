package types

import (
	"encoding/json"
	"log"
)

// MeterReading is one verified telegram, values keyed by configured sensor name.
type MeterReading struct {
	Timestamp string             `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

func (r *MeterReading) ToJsonBytes() []byte {
	jsonBytes, err := json.Marshal(r)
	if err != nil {
		log.Printf("Failed to marshal meter reading: %v", err)
		return nil
	}
	return jsonBytes
}

// Returns nil when the payload is not a meter reading.
func MeterReadingFromJsonBytes(data []byte) *MeterReading {
	var reading MeterReading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil
	}
	if reading.Timestamp == "" {
		return nil
	}
	return &reading
}
