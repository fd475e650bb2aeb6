// Package license implements the device-bound license gate.
//
// # Components
//
//   - Codec: the fixed, reversible wire transform for license codes
//   - Validator: checks a code against the device id and computes its expiry
//   - RecordStore: the persisted authorization record (three store keys)
//   - UsageCounter: the persisted count of downloads consumed against the limit
//   - Gate: combines the counter and the record into a single decision
//   - Issuer: the operator side that builds codes for a device
//
// # Wire format
//
// A plaintext code is devicePrefix(6) + timeSuffix(4) + expiryCode, where
// devicePrefix is the last six characters of the device id upper-cased and
// expiryCode is usually epoch seconds. Codec wraps it as
// "VID_AUTH_" + plain + "_END", rotates letters and digits, base64-encodes
// and shifts every character by three code points. This is obfuscation
// only. Anyone holding this package can mint codes.
//
// # Concurrency
//
// The record's read-then-clear on expiry and the grant write are serialized
// by a per-key lock and the clear is a compare-and-swap, so concurrent
// callers in other processes sharing the store cannot resurrect an expired
// grant. The three record keys are written one at a time; a crash between
// writes can leave a stale expiry next to a fresh flag, which the gate reads
// as expired.
package license
