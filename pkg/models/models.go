package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// GetSpectrumRequest selects an optional frequency window of the aggregate
type GetSpectrumRequest struct {
	LowHz  int64 `query:"low_hz" minimum:"0" doc:"Lowest frequency to include in Hz (0 for no bound)"`
	HighHz int64 `query:"high_hz" minimum:"0" doc:"Highest frequency to include in Hz (0 for no bound)"`
}

// SpectrumBody is the snapshot payload, parallel arrays sorted by frequency
type SpectrumBody struct {
	HasData     bool      `json:"has_data" doc:"False until the first sweep has been ingested"`
	BinCount    int       `json:"bin_count" doc:"Number of bins returned"`
	Frequencies []int64   `json:"frequencies_hz,omitempty" doc:"Bin frequencies in Hz, ascending"`
	Last        []Power   `json:"last,omitempty" doc:"Most recent power per bin in dB, null for an empty bin"`
	Min         []Power   `json:"min,omitempty" doc:"Minimum power per bin in dB, null for an empty bin"`
	Max         []Power   `json:"max,omitempty" doc:"Maximum power per bin in dB, null for an empty bin"`
	Timestamps  []float64 `json:"timestamps,omitempty" doc:"Last observation per bin in Unix seconds"`
}

// GetSpectrumResponse represents the current aggregate
type GetSpectrumResponse struct {
	Body SpectrumBody
}

// GetPeaksRequest selects the ranking metric and how many peaks to return
type GetPeaksRequest struct {
	Metric string `query:"metric" enum:"last,max" default:"last" doc:"Power column to rank by"`
	Limit  int    `query:"limit" minimum:"1" maximum:"1000" default:"15" doc:"Number of peaks to return"`
}

// GetPeaksResponse represents the strongest bins of the aggregate
type GetPeaksResponse struct {
	Body struct {
		Metric string `json:"metric" doc:"Power column used for ranking"`
		Peaks  []Peak `json:"peaks" doc:"Peaks ordered by descending power"`
	}
}

// GetRateRequest selects the averaging window
type GetRateRequest struct {
	Window float64 `query:"window" minimum:"0.1" maximum:"300" doc:"Averaging window in seconds, the configured RATE_WINDOW when omitted"`
}

// GetRateResponse represents the recent message rate
type GetRateResponse struct {
	Body struct {
		WindowSeconds     float64 `json:"window_seconds" doc:"Window the rate was averaged over"`
		MessagesPerSecond float64 `json:"messages_per_second" doc:"Ingested sweep records per second"`
	}
}

// GetStatusResponse summarizes the ingestion pipeline
type GetStatusResponse struct {
	Body struct {
		Source            string  `json:"source" doc:"Publisher endpoint"`
		BinCount          int     `json:"bin_count" doc:"Number of frequency bins in the aggregate"`
		LowestHz          *int64  `json:"lowest_hz,omitempty" doc:"Lowest observed frequency in Hz"`
		HighestHz         *int64  `json:"highest_hz,omitempty" doc:"Highest observed frequency in Hz"`
		MessagesPerSecond float64 `json:"messages_per_second" doc:"Ingest rate over the configured window"`
		WindowSeconds     float64 `json:"window_seconds" doc:"Window the rate was averaged over"`
		FramesReceived    uint64  `json:"frames_received" doc:"Frames read from the channel"`
		DecodeErrors      uint64  `json:"decode_errors" doc:"Frames dropped as malformed"`
	}
}
