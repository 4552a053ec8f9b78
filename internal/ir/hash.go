package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRecord = "thinglink/record/v1"
	DomainEdge   = "thinglink/edge/v1"
	DomainAnchor = "thinglink/anchor/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordID computes the content address of an entity record.
// The record's own ID field is ignored.
func RecordID(r Record) (Hash, error) {
	obj := map[string]any{
		"author":      string(r.Author),
		"content":     r.Content,
		"created_at":  int64(r.CreatedAt),
		"revision_of": string(r.RevisionOf),
		"seq":         r.Seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RecordID: failed to marshal: %w", err)
	}
	return Hash(hashWithDomain(DomainRecord, canonical)), nil
}

// EdgeRef computes the content address of an edge creation.
// The edge's own Ref field is ignored.
func EdgeRef(e EdgeRecord) (Hash, error) {
	tag := e.Tag
	if tag == nil {
		tag = []byte{}
	}
	obj := map[string]any{
		"author":     string(e.Author),
		"base":       string(e.Base),
		"created_at": int64(e.CreatedAt),
		"kind":       int64(e.Kind),
		"partition":  int64(e.Partition),
		"seq":        e.Seq,
		"tag":        tag,
		"target":     string(e.Target),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EdgeRef: failed to marshal: %w", err)
	}
	return Hash(hashWithDomain(DomainEdge, canonical)), nil
}

// AnchorKey derives the canonical key of an anchor label: "anchor:"
// followed by the domain-separated hash of the label. The same label
// always yields the same key.
func AnchorKey(label string) Key {
	return Key(NodeAnchor.String() + ":" + hashWithDomain(DomainAnchor, []byte(label)))
}
