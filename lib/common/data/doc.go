// Package data implements the binary primitives shared by every OSCAR layer:
// an immutable bounds-checked ByteBlock view, big-endian unsigned integer
// helpers, sticky-error Reader and Writer cursors, and the string encodings
// the protocol mixes on a per-field basis (null-padded fixed-width ASCII,
// length-prefixed, and charset-tagged text).
package data
