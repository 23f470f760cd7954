// Package copyengine implements the value-transfer boundary of §6.2: a
// copy(direction, src, dst, n) function that moves n values between a
// caller's context and a Keeper's value-store context, all-or-nothing.
//
// The core treats the real inter-copy engine (the deep-copy marshaller that
// moves arbitrary host values between isolated script-execution contexts)
// as an opaque external collaborator (spec.md §1, §6.2). This package is a
// concrete default implementation of that contract, grounded on spec.md
// §9's own suggestion: "a systems-language implementation may substitute
// this with a serialised byte buffer keyed by a value-type tag."
package copyengine

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/lemon-mint/frameio"
	"github.com/valyala/bytebufferpool"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// scratchSize is a starting guess for a marshalled structpb.Value; small
// scalars (the common case for a Linda key's value) fit without a
// reallocation inside proto.MarshalOptions.MarshalAppend.
const scratchSize = 64

// ErrUnsupportedType is returned when a value cannot be marshalled through
// the copy boundary (spec.md §7 "copy-unsupported").
var ErrUnsupportedType = errors.New("copyengine: unsupported type")

// Direction selects which way values are moving relative to a Keeper.
type Direction int

const (
	ToKeeper Direction = iota
	FromKeeper
)

// Envelope is the serialised form a value takes while crossing the
// boundary. It is opaque to everything except this package.
type Envelope []byte

var bufPool bytebufferpool.Pool

// Copy moves n values across the boundary in one all-or-nothing batch,
// matching §6.2: "on UnsupportedType, destination receives nothing."
//
// direction is not used: the wire representation is symmetric, since a
// Value round-trips through the same structpb envelope whichever way it
// travels.
func Copy(direction Direction, values []any) ([]Envelope, error) {
	envs := make([]Envelope, len(values))
	for i, v := range values {
		env, err := encode(v)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d (%v)", ErrUnsupportedType, i+1, err)
		}
		envs[i] = env
	}
	return envs, nil
}

// Decode reverses Copy, converting envelopes back into caller-visible Go
// values. It is all-or-nothing for the same reason: a malformed envelope
// aborts before any value is returned.
func Decode(envs []Envelope) ([]any, error) {
	out := make([]any, len(envs))
	for i, env := range envs {
		v, err := decode(env)
		if err != nil {
			return nil, fmt.Errorf("%w: envelope %d (%v)", ErrUnsupportedType, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// EncodeBatch frames n envelopes into one contiguous buffer using
// length-prefixed frames (frameio), so a batch of values can move as a
// single opaque blob while still supporting §6.2's per-value boundary —
// the same framing discipline the teacher applies to network messages in
// index.go's handleConn, applied here to values instead of packets.
func EncodeBatch(values []any) ([]byte, error) {
	envs, err := Copy(ToKeeper, values)
	if err != nil {
		return nil, err
	}
	buf := bufPool.Get()
	defer bufPool.Put(buf)
	fw := frameio.NewFrameWriter(buf)
	for _, env := range envs {
		if err := fw.Write(env); err != nil {
			return nil, fmt.Errorf("copyengine: frame value: %w", err)
		}
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeBatch reverses EncodeBatch.
func DecodeBatch(blob []byte) ([]any, error) {
	fr := frameio.NewFrameReader(bytes.NewReader(blob))
	var envs []Envelope
	for {
		frame, err := fr.Read()
		if err != nil {
			break
		}
		env := make(Envelope, len(frame))
		copy(env, frame)
		envs = append(envs, env)
	}
	return Decode(envs)
}

func encode(v any) (Envelope, error) {
	if v == nil {
		return nil, nil
	}
	pv, err := structpb.NewValue(normalize(v))
	if err != nil {
		return nil, err
	}
	scratch := mcache.Malloc(0, scratchSize)
	defer mcache.Free(scratch)
	data, err := proto.MarshalOptions{}.MarshalAppend(scratch, pv)
	if err != nil {
		return nil, err
	}
	env := make(Envelope, len(data))
	copy(env, data)
	return env, nil
}

func decode(env Envelope) (any, error) {
	if len(env) == 0 {
		return nil, nil
	}
	pv := &structpb.Value{}
	if err := proto.Unmarshal(env, pv); err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}

// normalize widens Go's numeric kinds to float64, the only numeric
// representation structpb.Value understands, so that e.g. an int key's
// value round-trips through the same envelope shape as a float64 one.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return v
	}
}
