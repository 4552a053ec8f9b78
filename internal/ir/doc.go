// Package ir provides the data model shared by every thinglink package.
//
// This package contains type definitions, content addressing and the error
// taxonomy only. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - Records and edges are immutable once written; ids are never reused
//   - Content addresses are domain-separated SHA-256 over canonical JSON
//   - Timestamps are integer microseconds, never floats
//   - All JSON tags use snake_case
package ir
