// Package flap implements the outermost OSCAR framing layer.
//
// Every byte on an OSCAR TCP connection belongs to a FLAP frame:
//
//	0x2A | channel:u8 | seq:u16be | length:u16be | payload:length bytes
//
// Channels:
//   - 1: login / connection open (protocol version + TLVs)
//   - 2: SNAC data (decoded by package snac)
//   - 3: FLAP level error
//   - 4: close / disconnect (optional code and url TLVs)
//   - 5: keepalive
//
// A Processor owns one connection's read loop, its outgoing sequence counter
// and the write lock that keeps concurrent senders from interleaving frames.
package flap
