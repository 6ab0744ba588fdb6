package models

// FreqRange is one contiguous sweep segment. Powers are equally spaced
// bins over [StartHz, EndHz); the producer does not guarantee StartHz <= EndHz.
type FreqRange struct {
	StartHz int64     `json:"start_hz"`
	EndHz   int64     `json:"end_hz"`
	Powers  []float64 `json:"powers"`
}

// BinRecord holds the running power statistics of one frequency bin
type BinRecord struct {
	Last      float64 `json:"last" doc:"Most recent power in dB"`
	Min       float64 `json:"min" doc:"Lowest power observed in dB"`
	Max       float64 `json:"max" doc:"Highest power observed in dB"`
	Timestamp float64 `json:"timestamp" doc:"Unix time of the last observation in seconds"`
}

// Observe folds a power reading into the bin. Min and max only widen. Last
// and Timestamp follow the newest observation; a reading older than the one
// already held does not replace it. Readings that fail Observable are
// ignored.
func (b *BinRecord) Observe(power, timestamp float64) {
	if !Observable(power) {
		return
	}
	if power < b.Min {
		b.Min = power
	}
	if power > b.Max {
		b.Max = power
	}
	if timestamp >= b.Timestamp {
		b.Last = power
		b.Timestamp = timestamp
	}
}

// NewBinRecord creates the record for the first observation of a frequency
func NewBinRecord(power, timestamp float64) BinRecord {
	return BinRecord{Last: power, Min: power, Max: power, Timestamp: timestamp}
}
