package transform

import (
	"fmt"

	"github.com/agenthands/objstore/pkg/core"
	"github.com/agenthands/objstore/pkg/encoding"
	"github.com/agenthands/objstore/pkg/object"
	"github.com/klauspost/compress/zstd"
)

// Stored block envelope:
//
//	magic(4) | version(1) | flags(1) | alg(1) | object id(20) | payload
//
// The object id makes every stored block self-describing, so a catalog can
// be rebuilt from pack contents alone.
const (
	Magic   = "OBJB"
	Version = 1

	HeaderSize = len(Magic) + 3 + object.Size
)

const (
	FlagCompressed = 1 << 0
)

const (
	AlgNone = 0
	AlgZstd = 1
)

// Transform wraps block payloads in the stored envelope.
type Transform interface {
	Name() string
	Encode(id object.ID, plain []byte) ([]byte, error)
	Decode(stored []byte) (object.ID, []byte, error)
}

func appendHeader(dst []byte, flags, alg byte, id object.ID) []byte {
	w := encoding.NewBuffer(dst)
	w.PutBytes([]byte(Magic))
	w.PutBytes([]byte{Version, flags, alg})
	id.Encode(w)
	return w.Bytes()
}

type header struct {
	flags byte
	alg   byte
	id    object.ID
}

func parseHeader(stored []byte) (header, []byte, error) {
	var h header
	r := encoding.NewCursor(stored)

	magic, err := r.Next(len(Magic))
	if err != nil {
		return h, nil, fmt.Errorf("%w: block too small for envelope", core.ErrCorrupt)
	}
	if string(magic) != Magic {
		return h, nil, fmt.Errorf("%w: invalid magic", core.ErrCorrupt)
	}

	meta, err := r.Next(3)
	if err != nil {
		return h, nil, fmt.Errorf("%w: block too small for envelope", core.ErrCorrupt)
	}
	if meta[0] != Version {
		return h, nil, fmt.Errorf("%w: unsupported version %d", core.ErrCorrupt, meta[0])
	}
	h.flags, h.alg = meta[1], meta[2]

	if err := h.id.Decode(r); err != nil {
		return h, nil, fmt.Errorf("%w: object id: %v", core.ErrCorrupt, err)
	}
	return h, r.Rest(), nil
}

// PeekID returns the object id recorded in a stored envelope without
// touching the payload.
func PeekID(stored []byte) (object.ID, bool) {
	h, _, err := parseHeader(stored)
	if err != nil {
		return object.ID{}, false
	}
	return h.id, true
}

// None transform stores payloads as is.
type noneTransform struct{}

func NewNone() Transform {
	return &noneTransform{}
}

func (t *noneTransform) Name() string { return "none" }

func (t *noneTransform) Encode(id object.ID, plain []byte) ([]byte, error) {
	out := make([]byte, 0, HeaderSize+len(plain))
	out = appendHeader(out, 0, AlgNone, id)
	return append(out, plain...), nil
}

func (t *noneTransform) Decode(stored []byte) (object.ID, []byte, error) {
	h, payload, err := parseHeader(stored)
	if err != nil {
		return object.ID{}, nil, err
	}
	if h.flags&FlagCompressed != 0 {
		return object.ID{}, nil, fmt.Errorf("%w: compressed block %s needs a zstd transform", core.ErrCorrupt, h.id)
	}
	return h.id, payload, nil
}

// Zstd transform applies zstd compression.
type zstdTransform struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewZstd(level int) (Transform, error) {
	if level == 0 {
		level = int(zstd.SpeedDefault)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevel(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &zstdTransform{
		encoder: enc,
		decoder: dec,
	}, nil
}

func (t *zstdTransform) Name() string { return "zstd" }

func (t *zstdTransform) Encode(id object.ID, plain []byte) ([]byte, error) {
	out := make([]byte, 0, HeaderSize+len(plain)/2)
	out = appendHeader(out, FlagCompressed, AlgZstd, id)
	return t.encoder.EncodeAll(plain, out), nil
}

func (t *zstdTransform) Decode(stored []byte) (object.ID, []byte, error) {
	h, payload, err := parseHeader(stored)
	if err != nil {
		return object.ID{}, nil, err
	}
	if h.flags&FlagCompressed == 0 {
		return h.id, payload, nil
	}
	if h.alg != AlgZstd {
		return object.ID{}, nil, fmt.Errorf("%w: unsupported compression algorithm %d", core.ErrCorrupt, h.alg)
	}
	plain, err := t.decoder.DecodeAll(payload, nil)
	if err != nil {
		return object.ID{}, nil, fmt.Errorf("%w: block %s: %v", core.ErrCorrupt, h.id, err)
	}
	return h.id, plain, nil
}

// New returns the transform named by cfg.
func New(cfg core.TransformConfig) (Transform, error) {
	switch cfg.Name {
	case "zstd":
		return NewZstd(cfg.ZstdLevel)
	case "none", "":
		return NewNone(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported transform %q", core.ErrInvalidInput, cfg.Name)
	}
}
