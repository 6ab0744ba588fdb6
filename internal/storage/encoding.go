package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/RMahshie/sweepwatch/pkg/models"
)

// Format selects the object encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Compression selects the object compression
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// Document is the exported form of one checkpoint
type Document struct {
	CheckpointID uuid.UUID   `json:"checkpoint_id" cbor:"1,keyasint"`
	Source       string      `json:"source" cbor:"2,keyasint"`
	CreatedAt    time.Time   `json:"created_at" cbor:"3,keyasint"`
	Bins         []ExportBin `json:"bins" cbor:"4,keyasint"`
}

// ExportBin is one frequency bin in a Document. JSON writes an empty bin's
// -Inf power as null, CBOR carries it as a float.
type ExportBin struct {
	FrequencyHz int64        `json:"frequency_hz" cbor:"1,keyasint"`
	Last        models.Power `json:"last" cbor:"2,keyasint"`
	Min         models.Power `json:"min" cbor:"3,keyasint"`
	Max         models.Power `json:"max" cbor:"4,keyasint"`
	Timestamp   float64      `json:"timestamp" cbor:"5,keyasint"`
}

var (
	encMode cbor.EncMode

	// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// NewDocument builds the export document for a checkpoint
func NewDocument(cp *models.Checkpoint, snap models.Snapshot) Document {
	doc := Document{
		CheckpointID: cp.ID,
		Source:       cp.Source,
		CreatedAt:    cp.CreatedAt,
		Bins:         make([]ExportBin, snap.Len()),
	}
	for i, freq := range snap.Frequencies {
		doc.Bins[i] = ExportBin{
			FrequencyHz: freq,
			Last:        models.Power(snap.Last[i]),
			Min:         models.Power(snap.Min[i]),
			Max:         models.Power(snap.Max[i]),
			Timestamp:   snap.Timestamps[i],
		}
	}
	return doc
}

// Snapshot converts the document back into aggregate form
func (d Document) Snapshot() models.Snapshot {
	var snap models.Snapshot
	for _, b := range d.Bins {
		snap.Append(b.FrequencyHz, models.BinRecord{
			Last:      float64(b.Last),
			Min:       float64(b.Min),
			Max:       float64(b.Max),
			Timestamp: b.Timestamp,
		})
	}
	return snap
}

// Codec turns documents into object bytes
type Codec struct {
	Format      Format
	Compression Compression
}

// ParseCodec validates the configured format and compression names
func ParseCodec(format, compression string) (Codec, error) {
	c := Codec{Format: Format(format), Compression: Compression(compression)}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	if c.Format != FormatJSON && c.Format != FormatCBOR {
		return Codec{}, fmt.Errorf("unsupported export format %q", format)
	}
	if c.Compression != CompressionNone && c.Compression != CompressionZstd {
		return Codec{}, fmt.Errorf("unsupported export compression %q", compression)
	}
	return c, nil
}

// Extension returns the object key suffix, e.g. ".cbor.zst"
func (c Codec) Extension() string {
	ext := "." + string(c.Format)
	if c.Compression == CompressionZstd {
		ext += ".zst"
	}
	return ext
}

// ContentType returns the MIME type of encoded objects
func (c Codec) ContentType() string {
	if c.Compression == CompressionZstd {
		return "application/zstd"
	}
	if c.Format == FormatCBOR {
		return "application/cbor"
	}
	return "application/json"
}

// Encode serializes doc
func (c Codec) Encode(doc Document) ([]byte, error) {
	var data []byte
	var err error

	switch c.Format {
	case FormatCBOR:
		data, err = encMode.Marshal(doc)
	default:
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot as %s: %w", c.Format, err)
	}

	if c.Compression == CompressionZstd {
		data = zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}
	return data, nil
}

// Decode parses bytes produced by Encode with the same codec
func (c Codec) Decode(data []byte) (Document, error) {
	if c.Compression == CompressionZstd {
		raw, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return Document{}, fmt.Errorf("zstd decompress: %w", err)
		}
		data = raw
	}

	var doc Document
	var err error
	switch c.Format {
	case FormatCBOR:
		err = cbor.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to decode %s snapshot: %w", c.Format, err)
	}
	return doc, nil
}
