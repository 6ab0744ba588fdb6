package spectrum

import (
	"slices"
	"sync"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// Aggregator folds sweep records into a per-frequency last/min/max table.
//
// Keys are never evicted. The key set is bounded by the tuning range of the
// sweeping hardware divided by its bin width, see CapacityHint.
type Aggregator struct {
	mu   sync.RWMutex
	bins map[int64]models.BinRecord
	keys []int64 // sorted ascending, same set as bins
}

// NewAggregator creates an empty aggregator. capacityHint presizes the bin
// map and may be zero.
func NewAggregator(capacityHint int) *Aggregator {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Aggregator{
		bins: make(map[int64]models.BinRecord, capacityHint),
		keys: make([]int64, 0, capacityHint),
	}
}

// CapacityHint returns the expected number of distinct bins for hardware
// tuning over [lowHz, highHz] with the given bin width. Sub-Hz widths
// collapse onto whole-Hz keys, so the hint never exceeds the span in Hz.
func CapacityHint(lowHz, highHz int64, binWidthHz float64) int {
	if binWidthHz <= 0 || highHz <= lowHz {
		return 0
	}
	span := highHz - lowHz
	if binWidthHz < 1 {
		return int(span)
	}
	return int(float64(span) / binWidthHz)
}

// BinFrequencies returns the integer bin keys for a range with n powers.
// Bins are linearly spaced over the half-open range after normalizing the
// direction, truncated toward zero to whole Hz.
func BinFrequencies(startHz, endHz int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	if startHz > endHz {
		startHz, endHz = endHz, startHz
	}
	step := float64(endHz-startHz) / float64(n)
	freqs := make([]int64, n)
	for i := range freqs {
		freqs[i] = int64(float64(startHz) + float64(i)*step)
	}
	return freqs
}

// Ingest folds both ranges of a record. The record is applied under a single
// write lock, so readers see either none or all of it.
func (a *Aggregator) Ingest(rec models.SweepRecord) {
	ts := rec.Timestamp()

	a.mu.Lock()
	defer a.mu.Unlock()

	added := false
	for _, r := range rec.Ranges {
		freqs := BinFrequencies(r.StartHz, r.EndHz, len(r.Powers))
		for i, hz := range freqs {
			if a.observe(hz, r.Powers[i], ts) {
				added = true
			}
		}
	}
	if added {
		slices.Sort(a.keys)
	}
}

// observe updates one bin and reports whether the key is new. A NaN or +Inf
// reading is skipped and never creates a key. Callers hold mu.
func (a *Aggregator) observe(hz int64, power, ts float64) bool {
	if !models.Observable(power) {
		return false
	}
	bin, ok := a.bins[hz]
	if !ok {
		a.bins[hz] = models.NewBinRecord(power, ts)
		a.keys = append(a.keys, hz)
		return true
	}
	bin.Observe(power, ts)
	a.bins[hz] = bin
	return false
}

// Restore merges previously stored bins. Existing bins keep their widest
// min/max; last and timestamp come from whichever observation is newer.
func (a *Aggregator) Restore(snap models.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	added := false
	for i, hz := range snap.Frequencies {
		stored := snap.Bin(i)
		bin, ok := a.bins[hz]
		if !ok {
			a.bins[hz] = stored
			a.keys = append(a.keys, hz)
			added = true
			continue
		}
		bin.Min = min(bin.Min, stored.Min)
		bin.Max = max(bin.Max, stored.Max)
		if stored.Timestamp > bin.Timestamp {
			bin.Last = stored.Last
			bin.Timestamp = stored.Timestamp
		}
		a.bins[hz] = bin
	}
	if added {
		slices.Sort(a.keys)
	}
}

// Snapshot copies the aggregate out in ascending frequency order. ok is
// false when nothing has been ingested yet.
func (a *Aggregator) Snapshot() (snap models.Snapshot, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := len(a.keys)
	if n == 0 {
		return models.Snapshot{}, false
	}

	snap = models.Snapshot{
		Frequencies: slices.Clone(a.keys),
		Last:        make([]float64, n),
		Min:         make([]float64, n),
		Max:         make([]float64, n),
		Timestamps:  make([]float64, n),
	}
	for i, hz := range a.keys {
		bin := a.bins[hz]
		snap.Last[i] = bin.Last
		snap.Min[i] = bin.Min
		snap.Max[i] = bin.Max
		snap.Timestamps[i] = bin.Timestamp
	}
	return snap, true
}

// Len returns the number of distinct frequency bins
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// Bounds returns the lowest and highest bin frequency. ok is false when the
// aggregate is empty.
func (a *Aggregator) Bounds() (lowest, highest int64, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.keys) == 0 {
		return 0, 0, false
	}
	return a.keys[0], a.keys[len(a.keys)-1], true
}
