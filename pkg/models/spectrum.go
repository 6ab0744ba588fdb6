package models

import (
	"time"

	"github.com/google/uuid"
)

// SweepRecord is one decoded wire message: two sweep segments sampled at
// the same instant.
type SweepRecord struct {
	EpochSeconds int64
	EpochMicros  int64
	BinWidth     float64 // optional, zero when the publisher omits it
	FFTSize      int32   // optional, zero when the publisher omits it
	Ranges       [2]FreqRange
}

// Timestamp returns the record time in fractional Unix seconds
func (r SweepRecord) Timestamp() float64 {
	return float64(r.EpochSeconds) + float64(r.EpochMicros)/1e6
}

// Snapshot is a point-in-time copy of the aggregate, sorted by frequency.
// All slices have the same length.
type Snapshot struct {
	Frequencies []int64
	Last        []float64
	Min         []float64
	Max         []float64
	Timestamps  []float64
}

// Len returns the number of bins in the snapshot
func (s Snapshot) Len() int {
	return len(s.Frequencies)
}

// Bin returns the record stored at index i
func (s Snapshot) Bin(i int) BinRecord {
	return BinRecord{
		Last:      s.Last[i],
		Min:       s.Min[i],
		Max:       s.Max[i],
		Timestamp: s.Timestamps[i],
	}
}

// Append adds a bin at the end. Callers keep frequencies ascending.
func (s *Snapshot) Append(freq int64, b BinRecord) {
	s.Frequencies = append(s.Frequencies, freq)
	s.Last = append(s.Last, b.Last)
	s.Min = append(s.Min, b.Min)
	s.Max = append(s.Max, b.Max)
	s.Timestamps = append(s.Timestamps, b.Timestamp)
}

// Peak is a single ranked frequency
type Peak struct {
	FrequencyHz int64 `json:"frequency_hz" doc:"Bin frequency in Hz"`
	Power       Power `json:"power" doc:"Ranked power in dB, null for an empty bin"`
}

// Checkpoint describes one persisted copy of the aggregate
type Checkpoint struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	BinCount  int       `json:"bin_count"`
	ObjectKey *string   `json:"object_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
