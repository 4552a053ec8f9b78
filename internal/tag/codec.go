// Package tag encodes the structured metadata carried in a link edge's
// opaque tag bytes.
//
// Wire format (msgpack): a fixed-length array
//
//	[version, user_tag|nil, backlink|nil, target_kind, target_id, meta|nil]
//
// where meta is [created_at, creator]. Absence is encoded as nil so that an
// empty user tag and a missing one stay distinct.
package tag

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/roach88/thinglink/internal/ir"
)

// Version is the current wire format version.
const Version = 1

const (
	payloadFields = 6
	metaFields    = 2
)

// Encode serializes p. It fails only if p holds an unknown target kind.
func Encode(p ir.TagPayload) ([]byte, error) {
	if ir.PartitionFor(p.Target.Kind) == 0 {
		return nil, ir.Invariant("tag target has unknown kind %d", int(p.Target.Kind))
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := encodePayload(enc, p); err != nil {
		return nil, fmt.Errorf("encode tag: %w", err)
	}
	return buf.Bytes(), nil
}

func encodePayload(enc *msgpack.Encoder, p ir.TagPayload) error {
	if err := enc.EncodeArrayLen(payloadFields); err != nil {
		return err
	}
	if err := enc.EncodeUint(Version); err != nil {
		return err
	}

	// EncodeBytes writes nil for a nil slice and bin8 for an empty one.
	if err := enc.EncodeBytes(p.UserTag); err != nil {
		return err
	}

	if p.Backlink == "" {
		if err := enc.EncodeNil(); err != nil {
			return err
		}
	} else if err := enc.EncodeString(string(p.Backlink)); err != nil {
		return err
	}

	if err := enc.EncodeInt(int64(p.Target.Kind)); err != nil {
		return err
	}
	if err := enc.EncodeString(p.Target.ID); err != nil {
		return err
	}

	if p.Denormalized == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeArrayLen(metaFields); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(p.Denormalized.CreatedAt)); err != nil {
		return err
	}
	return enc.EncodeString(string(p.Denormalized.Creator))
}

// Decode parses bytes produced by Encode. Truncated input, trailing bytes,
// an unknown version or a field of the wrong type yield a DecodeError.
func Decode(b []byte) (ir.TagPayload, error) {
	r := bytes.NewReader(b)
	dec := msgpack.NewDecoder(r)

	p, err := decodePayload(dec)
	if err != nil {
		return ir.TagPayload{}, ir.DecodeErr(err, "malformed tag (%d bytes)", len(b))
	}
	if r.Len() != 0 {
		return ir.TagPayload{}, ir.DecodeErr(nil, "malformed tag: %d trailing bytes", r.Len())
	}
	return p, nil
}

func decodePayload(dec *msgpack.Decoder) (ir.TagPayload, error) {
	var p ir.TagPayload

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return p, err
	}
	if n != payloadFields {
		return p, fmt.Errorf("expected %d fields, got %d", payloadFields, n)
	}

	version, err := dec.DecodeUint()
	if err != nil {
		return p, fmt.Errorf("version: %w", err)
	}
	if version != Version {
		return p, fmt.Errorf("unsupported version %d", version)
	}

	isNil, err := peekNil(dec)
	if err != nil {
		return p, fmt.Errorf("user_tag: %w", err)
	}
	if !isNil {
		userTag, err := dec.DecodeBytes()
		if err != nil {
			return p, fmt.Errorf("user_tag: %w", err)
		}
		if userTag == nil {
			userTag = []byte{}
		}
		p.UserTag = userTag
	}

	isNil, err = peekNil(dec)
	if err != nil {
		return p, fmt.Errorf("backlink: %w", err)
	}
	if !isNil {
		backlink, err := dec.DecodeString()
		if err != nil {
			return p, fmt.Errorf("backlink: %w", err)
		}
		if backlink == "" {
			return p, fmt.Errorf("backlink: empty reference")
		}
		p.Backlink = ir.Hash(backlink)
	}

	kind, err := dec.DecodeInt64()
	if err != nil {
		return p, fmt.Errorf("target kind: %w", err)
	}
	p.Target.Kind = ir.NodeKind(kind)
	if ir.PartitionFor(p.Target.Kind) == 0 {
		return p, fmt.Errorf("unknown target kind %d", kind)
	}
	if p.Target.ID, err = dec.DecodeString(); err != nil {
		return p, fmt.Errorf("target id: %w", err)
	}

	isNil, err = peekNil(dec)
	if err != nil {
		return p, fmt.Errorf("meta: %w", err)
	}
	if isNil {
		return p, nil
	}
	if n, err = dec.DecodeArrayLen(); err != nil {
		return p, fmt.Errorf("meta: %w", err)
	}
	if n != metaFields {
		return p, fmt.Errorf("meta: expected %d fields, got %d", metaFields, n)
	}
	createdAt, err := dec.DecodeInt64()
	if err != nil {
		return p, fmt.Errorf("meta created_at: %w", err)
	}
	creator, err := dec.DecodeString()
	if err != nil {
		return p, fmt.Errorf("meta creator: %w", err)
	}
	p.Denormalized = &ir.EntityMeta{CreatedAt: ir.Timestamp(createdAt), Creator: ir.IdentityKey(creator)}
	return p, nil
}

// peekNil consumes and reports a nil at the current position.
func peekNil(dec *msgpack.Decoder) (bool, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return false, err
	}
	if c != msgpcode.Nil {
		return false, nil
	}
	return true, dec.DecodeNil()
}
