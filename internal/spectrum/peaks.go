package spectrum

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// Metric selects the power column used for ranking
type Metric string

const (
	MetricLast Metric = "last"
	MetricMax  Metric = "max"
)

// ParseMetric validates a metric name. An empty name selects MetricLast.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricLast:
		return MetricLast, nil
	case MetricMax:
		return MetricMax, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// TopN returns the n strongest bins of a snapshot by the given metric,
// strongest first. Equal powers are ordered by ascending frequency.
func TopN(snap models.Snapshot, n int, metric Metric) []models.Peak {
	if n <= 0 || snap.Len() == 0 {
		return []models.Peak{}
	}

	powers := snap.Last
	if metric == MetricMax {
		powers = snap.Max
	}

	peaks := make([]models.Peak, snap.Len())
	for i, hz := range snap.Frequencies {
		peaks[i] = models.Peak{FrequencyHz: hz, Power: models.Power(powers[i])}
	}
	slices.SortFunc(peaks, func(a, b models.Peak) int {
		if c := cmp.Compare(b.Power, a.Power); c != 0 {
			return c
		}
		return cmp.Compare(a.FrequencyHz, b.FrequencyHz)
	})

	if n < len(peaks) {
		peaks = peaks[:n]
	}
	return peaks
}

// Window returns the part of a snapshot with lowHz <= frequency <= highHz.
// A zero bound is open. The result shares backing arrays with snap.
func Window(snap models.Snapshot, lowHz, highHz int64) models.Snapshot {
	lo := 0
	if lowHz > 0 {
		lo = sort.Search(snap.Len(), func(i int) bool { return snap.Frequencies[i] >= lowHz })
	}
	hi := snap.Len()
	if highHz > 0 {
		hi = sort.Search(snap.Len(), func(i int) bool { return snap.Frequencies[i] > highHz })
	}
	if hi < lo {
		hi = lo
	}
	return models.Snapshot{
		Frequencies: snap.Frequencies[lo:hi],
		Last:        snap.Last[lo:hi],
		Min:         snap.Min[lo:hi],
		Max:         snap.Max[lo:hi],
		Timestamps:  snap.Timestamps[lo:hi],
	}
}
