package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/sweepwatch/internal/msgrate"
	"github.com/RMahshie/sweepwatch/internal/spectrum"
	"github.com/RMahshie/sweepwatch/pkg/models"
)

const defaultPeakLimit = 15

// SpectrumReader is the read side of the aggregate
type SpectrumReader interface {
	Snapshot() (models.Snapshot, bool)
	Bounds() (lowest, highest int64, ok bool)
	Len() int
}

// RateReader reports the ingest rate
type RateReader interface {
	Rate(window time.Duration) float64
}

// FrameCounter reports channel and decoder totals
type FrameCounter interface {
	Totals() (frames, decodeErrors uint64)
}

// SpectrumHandler serves the aggregate and rate queries
type SpectrumHandler struct {
	spectrum SpectrumReader
	rate     RateReader
	counters FrameCounter
	source   string
	window   time.Duration
}

// NewSpectrumHandler creates a new spectrum handler. rateWindow is the
// averaging window for status and for rate queries that omit one; zero
// selects msgrate.DefaultWindow.
func NewSpectrumHandler(reader SpectrumReader, rate RateReader, counters FrameCounter, source string, rateWindow time.Duration) *SpectrumHandler {
	if rateWindow <= 0 {
		rateWindow = msgrate.DefaultWindow
	}
	return &SpectrumHandler{
		spectrum: reader,
		rate:     rate,
		counters: counters,
		source:   source,
		window:   rateWindow,
	}
}

// GetSpectrum returns the aggregate, optionally limited to a frequency window
func (h *SpectrumHandler) GetSpectrum(ctx context.Context, req *models.GetSpectrumRequest) (*models.GetSpectrumResponse, error) {
	if req.HighHz > 0 && req.LowHz > req.HighHz {
		return nil, huma.Error400BadRequest("low_hz must not exceed high_hz")
	}

	resp := &models.GetSpectrumResponse{}

	snap, ok := h.spectrum.Snapshot()
	if !ok {
		// An empty aggregate is a normal state before the first sweep
		return resp, nil
	}

	snap = spectrum.Window(snap, req.LowHz, req.HighHz)
	resp.Body = models.SpectrumBody{
		HasData:     true,
		BinCount:    snap.Len(),
		Frequencies: snap.Frequencies,
		Last:        models.Powers(snap.Last),
		Min:         models.Powers(snap.Min),
		Max:         models.Powers(snap.Max),
		Timestamps:  snap.Timestamps,
	}
	return resp, nil
}

// GetPeaks returns the strongest bins by the requested metric
func (h *SpectrumHandler) GetPeaks(ctx context.Context, req *models.GetPeaksRequest) (*models.GetPeaksResponse, error) {
	metric, err := spectrum.ParseMetric(req.Metric)
	if err != nil {
		return nil, huma.Error400BadRequest("Unknown metric", err)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPeakLimit
	}

	resp := &models.GetPeaksResponse{}
	resp.Body.Metric = string(metric)
	resp.Body.Peaks = []models.Peak{}

	if snap, ok := h.spectrum.Snapshot(); ok {
		resp.Body.Peaks = spectrum.TopN(snap, limit, metric)
	}
	return resp, nil
}

// GetRate returns the message rate over the requested window
func (h *SpectrumHandler) GetRate(ctx context.Context, req *models.GetRateRequest) (*models.GetRateResponse, error) {
	window := time.Duration(req.Window * float64(time.Second))
	if window <= 0 {
		window = h.window
	}

	resp := &models.GetRateResponse{}
	resp.Body.WindowSeconds = window.Seconds()
	resp.Body.MessagesPerSecond = h.rate.Rate(window)
	return resp, nil
}

// GetStatus summarizes the pipeline
func (h *SpectrumHandler) GetStatus(ctx context.Context, _ *struct{}) (*models.GetStatusResponse, error) {
	resp := &models.GetStatusResponse{}
	resp.Body.Source = h.source
	resp.Body.BinCount = h.spectrum.Len()
	if lo, hi, ok := h.spectrum.Bounds(); ok {
		resp.Body.LowestHz = &lo
		resp.Body.HighestHz = &hi
	}
	resp.Body.WindowSeconds = h.window.Seconds()
	resp.Body.MessagesPerSecond = h.rate.Rate(h.window)
	resp.Body.FramesReceived, resp.Body.DecodeErrors = h.counters.Totals()

	log.Debug().Int("bin_count", resp.Body.BinCount).Uint64("frames", resp.Body.FramesReceived).Msg("Status requested")
	return resp, nil
}
