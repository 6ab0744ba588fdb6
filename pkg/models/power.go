package models

import (
	"encoding/json"
	"math"
)

// Power is a bin power in dB. A bin whose magnitude was zero reads -Inf,
// which JSON cannot carry: it is written as null and read back as -Inf.
type Power float64

// MarshalJSON writes non-finite powers as null
func (p Power) MarshalJSON() ([]byte, error) {
	f := float64(p)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON reads null as -Inf
func (p *Power) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Power(math.Inf(-1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*p = Power(f)
	return nil
}

// Powers converts a power column for serialization
func Powers(values []float64) []Power {
	if values == nil {
		return nil
	}
	out := make([]Power, len(values))
	for i, v := range values {
		out[i] = Power(v)
	}
	return out
}

// Observable reports whether a reading can enter the aggregate. NaN carries
// no ordering and +Inf cannot come from a finite magnitude, so both are
// dropped. -Inf is a real reading of an empty bin and is kept.
func Observable(power float64) bool {
	return !math.IsNaN(power) && !math.IsInf(power, 1)
}
