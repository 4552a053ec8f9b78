// Package testutil provides deterministic clocks, substrate fixtures,
// fault injection and a shared conformance suite for substrate backends.
package testutil
