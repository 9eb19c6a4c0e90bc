// Package content implements content-addressed identity for the kernel.
//
// Every durable kernel object (value, resource, instruction sequence, effect
// record, execution trace) is identified by the SHA-256 digest of its
// canonical byte encoding. The encoding rules are:
//
//   - One tag byte per variant, then fields in declaration order.
//   - Variable-length fields carry a u32 little-endian length prefix.
//   - Integers are little-endian fixed width (i64, u64, u128 as lo/hi u64).
//   - Maps are encoded as a u32 count followed by (key, value) entries in
//     ascending key order.
//   - Strings are NFC normalized before encoding so that visually identical
//     inputs share one identity.
//
// Hashes are domain-separated: SHA256(domain + 0x00 + data). The null byte
// prevents domain/data boundary ambiguity. The version suffix on each domain
// string enables future algorithm migration without identity collisions.
//
// The encoder is total - it cannot fail. The decoder validates structure and
// returns errors for truncated or malformed input.
package content
