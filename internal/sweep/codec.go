// Package sweep converts between msgpack wire frames and sweep records.
//
// A frame is a single msgpack map published per FFT sample. It carries two
// adjacent sweep segments, start/end/pwr and start2/end2/pwr2, stamped
// with sec/usec. Publishers may add binwidth and fftsize.
package sweep

import (
	"errors"
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// ErrDecode matches every error returned by Decode
var ErrDecode = errors.New("sweep: malformed frame")

// DecodeError describes why a frame was rejected
type DecodeError struct {
	Field string // empty when the frame as a whole is unreadable
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("sweep: malformed frame: %v", e.Err)
	}
	return fmt.Sprintf("sweep: malformed frame: field %q: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

var errMissing = errors.New("missing")

// handle is shared by all encoders and decoders; it is read-only after init.
var handle codec.MsgpackHandle

func init() {
	handle.WriteExt = true
	handle.RawToString = true
}

// wireRecord mirrors the publisher's map. Required fields are pointers so a
// missing key can be told apart from a zero value.
type wireRecord struct {
	Sec      *int64     `codec:"sec"`
	Usec     *int64     `codec:"usec"`
	BinWidth *float64   `codec:"binwidth"`
	FFTSize  *int32     `codec:"fftsize"`
	Start    *int64     `codec:"start"`
	End      *int64     `codec:"end"`
	Pwr      *[]float64 `codec:"pwr"`
	Start2   *int64     `codec:"start2"`
	End2     *int64     `codec:"end2"`
	Pwr2     *[]float64 `codec:"pwr2"`
}

// Decode parses one frame. It does not normalize ranges.
func Decode(frame []byte) (models.SweepRecord, error) {
	if len(frame) == 0 {
		return models.SweepRecord{}, &DecodeError{Err: errors.New("empty frame")}
	}
	if !isMap(frame[0]) {
		return models.SweepRecord{}, &DecodeError{Err: fmt.Errorf("top-level value is not a map (0x%02x)", frame[0])}
	}

	var w wireRecord
	if err := codec.NewDecoderBytes(frame, &handle).Decode(&w); err != nil {
		return models.SweepRecord{}, &DecodeError{Err: err}
	}

	required := []struct {
		name    string
		present bool
	}{
		{"sec", w.Sec != nil},
		{"usec", w.Usec != nil},
		{"start", w.Start != nil},
		{"end", w.End != nil},
		{"pwr", w.Pwr != nil},
		{"start2", w.Start2 != nil},
		{"end2", w.End2 != nil},
		{"pwr2", w.Pwr2 != nil},
	}
	for _, f := range required {
		if !f.present {
			return models.SweepRecord{}, &DecodeError{Field: f.name, Err: errMissing}
		}
	}

	rec := models.SweepRecord{
		EpochSeconds: *w.Sec,
		EpochMicros:  *w.Usec,
		Ranges: [2]models.FreqRange{
			{StartHz: *w.Start, EndHz: *w.End, Powers: *w.Pwr},
			{StartHz: *w.Start2, EndHz: *w.End2, Powers: *w.Pwr2},
		},
	}
	if w.BinWidth != nil {
		rec.BinWidth = *w.BinWidth
	}
	if w.FFTSize != nil {
		rec.FFTSize = *w.FFTSize
	}
	return rec, nil
}

// isMap reports whether b starts a msgpack fixmap, map16 or map32
func isMap(b byte) bool {
	return b&0xf0 == 0x80 || b == 0xde || b == 0xdf
}

// outRecord is the publisher layout: unsigned integers and float32 powers.
type outRecord struct {
	Sec      uint64    `codec:"sec"`
	Usec     uint64    `codec:"usec"`
	BinWidth float64   `codec:"binwidth,omitempty"`
	FFTSize  int32     `codec:"fftsize,omitempty"`
	Start    uint64    `codec:"start"`
	End      uint64    `codec:"end"`
	Pwr      []float32 `codec:"pwr"`
	Start2   uint64    `codec:"start2"`
	End2     uint64    `codec:"end2"`
	Pwr2     []float32 `codec:"pwr2"`
}

// Encode builds a frame in the same layout the sweeper publishes.
func Encode(rec models.SweepRecord) ([]byte, error) {
	out := outRecord{
		Sec:      uint64(rec.EpochSeconds),
		Usec:     uint64(rec.EpochMicros),
		BinWidth: rec.BinWidth,
		FFTSize:  rec.FFTSize,
		Start:    uint64(rec.Ranges[0].StartHz),
		End:      uint64(rec.Ranges[0].EndHz),
		Pwr:      toFloat32(rec.Ranges[0].Powers),
		Start2:   uint64(rec.Ranges[1].StartHz),
		End2:     uint64(rec.Ranges[1].EndHz),
		Pwr2:     toFloat32(rec.Ranges[1].Powers),
	}

	var buf []byte
	if err := codec.NewEncoderBytes(&buf, &handle).Encode(&out); err != nil {
		return nil, fmt.Errorf("failed to encode sweep record: %w", err)
	}
	return buf, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
