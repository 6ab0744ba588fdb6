package sweep

import (
	"math/rand/v2"
	"time"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// Carrier is a synthetic narrowband signal
type Carrier struct {
	FrequencyHz int64
	PowerDB     float64
}

// GeneratorConfig describes a synthetic sweeping receiver. Zero values
// select a HackRF-like default: 20 MHz sample rate and a 20 point FFT.
type GeneratorConfig struct {
	LowHz         int64
	HighHz        int64
	SampleRateHz  int64
	FFTSize       int
	NoiseFloorDB  float64
	NoiseSpreadDB float64
	Carriers      []Carrier
}

// Generator produces sweep records the way a sweeping receiver publishes
// them: each record covers the first and third quarter of one tuning step.
type Generator struct {
	cfg  GeneratorConfig
	rng  *rand.Rand
	tune int64
}

// NewGenerator creates a generator. Equal seeds give equal sequences.
func NewGenerator(cfg GeneratorConfig, seed uint64) *Generator {
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 20_000_000
	}
	if cfg.FFTSize < 4 {
		cfg.FFTSize = 20
	}
	if cfg.HighHz <= cfg.LowHz {
		cfg.HighHz = cfg.LowHz + cfg.SampleRateHz
	}
	if cfg.NoiseFloorDB == 0 {
		cfg.NoiseFloorDB = -90
	}
	if cfg.NoiseSpreadDB == 0 {
		cfg.NoiseSpreadDB = 6
	}
	return &Generator{
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		tune: cfg.LowHz,
	}
}

// BinWidth returns the width of one FFT bin in Hz
func (g *Generator) BinWidth() float64 {
	return float64(g.cfg.SampleRateHz) / float64(g.cfg.FFTSize)
}

// Next returns the record for the current tuning step and advances to the
// next one, wrapping at the top of the range.
func (g *Generator) Next(now time.Time) models.SweepRecord {
	quarter := g.cfg.SampleRateHz / 4
	start := g.tune
	start2 := start + g.cfg.SampleRateHz/2

	rec := models.SweepRecord{
		EpochSeconds: now.Unix(),
		EpochMicros:  int64(now.Nanosecond() / 1000),
		BinWidth:     g.BinWidth(),
		FFTSize:      int32(g.cfg.FFTSize),
		Ranges: [2]models.FreqRange{
			{StartHz: start, EndHz: start + quarter, Powers: g.powers(start, start+quarter)},
			{StartHz: start2, EndHz: start2 + quarter, Powers: g.powers(start2, start2+quarter)},
		},
	}

	g.tune += g.cfg.SampleRateHz
	if g.tune >= g.cfg.HighHz {
		g.tune = g.cfg.LowHz
	}
	return rec
}

func (g *Generator) powers(start, end int64) []float64 {
	n := g.cfg.FFTSize / 4
	freqs := binEdges(start, end, n)
	out := make([]float64, n)
	for i := range out {
		out[i] = g.cfg.NoiseFloorDB + g.rng.Float64()*g.cfg.NoiseSpreadDB
		for _, c := range g.cfg.Carriers {
			if c.FrequencyHz >= freqs[i] && c.FrequencyHz < freqs[i+1] {
				out[i] = max(out[i], c.PowerDB-g.rng.Float64())
			}
		}
	}
	return out
}

// binEdges returns n+1 edges splitting [start, end) the same way the
// aggregator assigns bin keys.
func binEdges(start, end int64, n int) []int64 {
	step := float64(end-start) / float64(n)
	edges := make([]int64, n+1)
	for i := range edges {
		edges[i] = int64(float64(start) + float64(i)*step)
	}
	return edges
}
