package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"pgregory.net/rapid"

	"github.com/roach88/thinglink/internal/ir"
)

func genNodeRef(t *rapid.T) ir.NodeRef {
	kind := rapid.SampledFrom([]ir.NodeKind{ir.NodeIdentity, ir.NodeAnchor, ir.NodeEntity}).Draw(t, "kind")
	return ir.NodeRef{Kind: kind, ID: rapid.String().Draw(t, "id")}
}

func genPayload(t *rapid.T) ir.TagPayload {
	p := ir.TagPayload{Target: rapid.Custom(genNodeRef).Draw(t, "target")}
	if rapid.Bool().Draw(t, "hasTag") {
		p.UserTag = rapid.SliceOf(rapid.Byte()).Draw(t, "tag")
		if p.UserTag == nil {
			p.UserTag = []byte{}
		}
	}
	if rapid.Bool().Draw(t, "hasBacklink") {
		p.Backlink = ir.Hash(rapid.StringMatching(`[0-9a-f]{64}`).Draw(t, "backlink"))
	}
	if rapid.Bool().Draw(t, "hasMeta") {
		p.Denormalized = &ir.EntityMeta{
			CreatedAt: ir.Timestamp(rapid.Int64().Draw(t, "createdAt")),
			Creator:   ir.IdentityKey(rapid.String().Draw(t, "creator")),
		}
	}
	return p
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genPayload(t)
		b, err := Encode(p)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !assert.ObjectsAreEqual(p, got) {
			t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", p, got)
		}
	})
}

func TestEmptyAndAbsentUserTagStayDistinct(t *testing.T) {
	target := ir.AnchorNode("root")

	absent, err := Encode(ir.TagPayload{Target: target})
	require.NoError(t, err)
	empty, err := Encode(ir.TagPayload{Target: target, UserTag: []byte{}})
	require.NoError(t, err)
	assert.NotEqual(t, absent, empty)

	p, err := Decode(absent)
	require.NoError(t, err)
	assert.Nil(t, p.UserTag)

	p, err = Decode(empty)
	require.NoError(t, err)
	assert.NotNil(t, p.UserTag)
	assert.Empty(t, p.UserTag)
}

func TestDecodeTruncated(t *testing.T) {
	b, err := Encode(ir.TagPayload{
		UserTag:      []byte{9},
		Backlink:     "abc",
		Target:       ir.EntityNode("e1"),
		Denormalized: &ir.EntityMeta{CreatedAt: 42, Creator: "ed25519:aa"},
	})
	require.NoError(t, err)

	for n := 0; n < len(b); n++ {
		_, err := Decode(b[:n])
		require.Error(t, err, "prefix of %d bytes must not decode", n)
		assert.True(t, ir.IsDecodeError(err))
	}
}

func TestDecodeTrailingBytes(t *testing.T) {
	b, err := Encode(ir.TagPayload{Target: ir.AnchorNode("root")})
	require.NoError(t, err)

	_, err = Decode(append(b, 0x00))
	require.Error(t, err)
	assert.True(t, ir.IsDecodeError(err))
	assert.Contains(t, err.Error(), "trailing")
}

func TestDecodeSchemaMismatch(t *testing.T) {
	mustMarshal := func(v any) []byte {
		b, err := msgpack.Marshal(v)
		require.NoError(t, err)
		return b
	}

	tests := map[string][]byte{
		"not an array":     mustMarshal("hello"),
		"wrong arity":      mustMarshal([]any{1, nil, nil, 2}),
		"future version":   mustMarshal([]any{2, nil, nil, 2, "root", nil}),
		"unknown kind":     mustMarshal([]any{1, nil, nil, 7, "root", nil}),
		"tag not bytes":    mustMarshal([]any{1, true, nil, 2, "root", nil}),
		"empty backlink":   mustMarshal([]any{1, nil, "", 2, "root", nil}),
		"meta wrong arity": mustMarshal([]any{1, nil, nil, 3, "e1", []any{1}}),
		"meta wrong type":  mustMarshal([]any{1, nil, nil, 3, "e1", []any{"x", "y"}}),
		"raw user bytes":   {0x09},
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(b)
			require.Error(t, err)
			assert.True(t, ir.IsDecodeError(err), "got %v", err)
		})
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	_, err := Encode(ir.TagPayload{})
	require.Error(t, err)
	assert.True(t, ir.IsInvariantViolation(err))
}
