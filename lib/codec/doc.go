// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Parley's standard CBOR encoding configuration.
//
// Parley uses two serialization formats with a clear boundary:
//
//   - JSON for wire interfaces: the push-channel frames and the
//     paginated-fetch HTTP API, both shared with the server and with
//     non-Go clients.
//   - CBOR for local artifacts: the on-disk message-cache snapshot
//     that lets a restarted client render immediately before
//     revalidating against the server.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which makes
// snapshot files diffable and content-addressable.
//
// Types that participate in both formats carry `json` struct tags
// only: fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
// tags are absent, so a single tag controls field naming and omitempty
// for both formats. Purely-internal snapshot types use `cbor` tags.
// Never use both tags on the same field.
package codec
