// Package codec turns finished event records into the byte payloads stored
// by the durable outbound queue, and back.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/shopspring/decimal"
)

type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	// zstd encoders and decoders are safe for concurrent use.
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	// Core deterministic encoding: the same record always yields identical bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Codec encodes records with one encoding and optional compression.
// The zero value encodes plain JSON.
type Codec struct {
	Encoding    Encoding
	Compression Compression
}

// New validates the encoding and compression names.
func New(encoding, compression string) (Codec, error) {
	c := Codec{Encoding: Encoding(encoding), Compression: Compression(compression)}
	if c.Encoding == "" {
		c.Encoding = EncodingJSON
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	switch c.Encoding {
	case EncodingJSON, EncodingCBOR:
	default:
		return Codec{}, fmt.Errorf("unsupported encoding %q", encoding)
	}
	switch c.Compression {
	case CompressionNone, CompressionZstd:
	default:
		return Codec{}, fmt.Errorf("unsupported compression %q", compression)
	}
	return c, nil
}

// Name identifies the payload format, e.g. "cbor+zstd". Stored next to
// the payload so a reader can decode rows written by older settings.
func (c Codec) Name() string {
	enc := c.Encoding
	if enc == "" {
		enc = EncodingJSON
	}
	if c.Compression == CompressionZstd {
		return string(enc) + "+zstd"
	}
	return string(enc)
}

// Encode serializes rec.
func (c Codec) Encode(rec *v1.EventRecord) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch c.Encoding {
	case EncodingCBOR:
		data, err = encMode.Marshal(toWire(rec))
	case EncodingJSON, "":
		data, err = json.Marshal(rec)
	default:
		return nil, fmt.Errorf("unsupported encoding %q", c.Encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	if c.Compression == CompressionZstd {
		return zstdEncoder.EncodeAll(data, nil), nil
	}
	return data, nil
}

// Decode reverses Encode. CBOR payloads restore every property exactly,
// order included. JSON payloads hold the upstream wire form, so dates come
// back as their DateLayout strings.
func (c Codec) Decode(payload []byte) (*v1.EventRecord, error) {
	data := payload
	if c.Compression == CompressionZstd {
		var err error
		data, err = zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
	}

	switch c.Encoding {
	case EncodingCBOR:
		var w wireRecord
		if err := decMode.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		return fromWire(&w)
	case EncodingJSON, "":
		var rec v1.EventRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		return &rec, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", c.Encoding)
	}
}

// ParseName is the inverse of Codec.Name.
func ParseName(name string) (Codec, error) {
	switch name {
	case "json", "":
		return Codec{Encoding: EncodingJSON, Compression: CompressionNone}, nil
	case "json+zstd":
		return Codec{Encoding: EncodingJSON, Compression: CompressionZstd}, nil
	case "cbor":
		return Codec{Encoding: EncodingCBOR, Compression: CompressionNone}, nil
	case "cbor+zstd":
		return Codec{Encoding: EncodingCBOR, Compression: CompressionZstd}, nil
	}
	return Codec{}, fmt.Errorf("unknown payload format %q", name)
}

// wireRecord mirrors v1.EventRecord with tagged property values so CBOR
// keeps kinds, decimal digits and key order.
type wireRecord struct {
	TrackID     string         `cbor:"_track_id"`
	Kind        string         `cbor:"type"`
	Event       string         `cbor:"event,omitempty"`
	Time        int64          `cbor:"time"`
	DistinctID  string         `cbor:"distinct_id,omitempty"`
	LoginID     string         `cbor:"login_id,omitempty"`
	AnonymousID string         `cbor:"anonymous_id,omitempty"`
	OriginalID  string         `cbor:"original_id,omitempty"`
	Project     string         `cbor:"project,omitempty"`
	Token       string         `cbor:"token,omitempty"`
	ItemType    string         `cbor:"item_type,omitempty"`
	ItemID      string         `cbor:"item_id,omitempty"`
	Hybrid      bool           `cbor:"_hybrid_h5,omitempty"`
	Lib         v1.LibInfo     `cbor:"lib"`
	Properties  []wireProperty `cbor:"properties"`
}

type wireProperty struct {
	Key   string    `cbor:"k"`
	Value wireValue `cbor:"v"`
}

// wireValue holds one v1.Value. Str carries strings and the decimal text of
// numbers; dates are Unix nanoseconds plus the zone offset in seconds.
type wireValue struct {
	Kind   v1.ValueKind `cbor:"t"`
	Str    string       `cbor:"s,omitempty"`
	Bool   bool         `cbor:"b,omitempty"`
	Unix   int64        `cbor:"u,omitempty"`
	Offset int          `cbor:"o,omitempty"`
	List   []wireValue  `cbor:"l,omitempty"`
}

func toWire(rec *v1.EventRecord) *wireRecord {
	props := make([]wireProperty, 0, rec.Properties.Len())
	rec.Properties.Range(func(k string, v v1.Value) bool {
		props = append(props, wireProperty{Key: k, Value: toWireValue(v)})
		return true
	})
	return &wireRecord{
		TrackID:     rec.TrackID,
		Kind:        string(rec.Kind),
		Event:       rec.Event,
		Time:        rec.Time,
		DistinctID:  rec.DistinctID,
		LoginID:     rec.LoginID,
		AnonymousID: rec.AnonymousID,
		OriginalID:  rec.OriginalID,
		Project:     rec.Project,
		Token:       rec.Token,
		ItemType:    rec.ItemType,
		ItemID:      rec.ItemID,
		Hybrid:      rec.Hybrid,
		Lib:         rec.Lib,
		Properties:  props,
	}
}

func toWireValue(v v1.Value) wireValue {
	w := wireValue{Kind: v.Kind()}
	switch v.Kind() {
	case v1.ValueString:
		w.Str, _ = v.AsString()
	case v1.ValueNumber:
		n, _ := v.AsNumber()
		w.Str = n.String()
	case v1.ValueBool:
		w.Bool, _ = v.AsBool()
	case v1.ValueDate:
		t, _ := v.AsDate()
		_, w.Offset = t.Zone()
		w.Unix = t.UnixNano()
	case v1.ValueList:
		items, _ := v.AsList()
		w.List = make([]wireValue, len(items))
		for i, item := range items {
			w.List[i] = toWireValue(item)
		}
	}
	return w
}

func fromWire(w *wireRecord) (*v1.EventRecord, error) {
	props := v1.NewProperties()
	for _, p := range w.Properties {
		v, err := fromWireValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode property %q: %w", p.Key, err)
		}
		props.Set(p.Key, v)
	}
	return &v1.EventRecord{
		TrackID:     w.TrackID,
		Kind:        v1.Kind(w.Kind),
		Event:       w.Event,
		Time:        w.Time,
		DistinctID:  w.DistinctID,
		LoginID:     w.LoginID,
		AnonymousID: w.AnonymousID,
		OriginalID:  w.OriginalID,
		Project:     w.Project,
		Token:       w.Token,
		ItemType:    w.ItemType,
		ItemID:      w.ItemID,
		Hybrid:      w.Hybrid,
		Lib:         w.Lib,
		Properties:  props,
	}, nil
}

func fromWireValue(w wireValue) (v1.Value, error) {
	switch w.Kind {
	case v1.ValueString:
		return v1.String(w.Str), nil
	case v1.ValueNumber:
		d, err := decimal.NewFromString(w.Str)
		if err != nil {
			return v1.Value{}, err
		}
		return v1.Number(d), nil
	case v1.ValueBool:
		return v1.Bool(w.Bool), nil
	case v1.ValueDate:
		return v1.Date(time.Unix(0, w.Unix).In(time.FixedZone("", w.Offset))), nil
	case v1.ValueList:
		items := make([]v1.Value, len(w.List))
		for i, item := range w.List {
			v, err := fromWireValue(item)
			if err != nil {
				return v1.Value{}, err
			}
			items[i] = v
		}
		return v1.List(items...), nil
	default:
		return v1.Value{}, fmt.Errorf("%w: kind %d", v1.ErrUnsupportedValue, w.Kind)
	}
}
