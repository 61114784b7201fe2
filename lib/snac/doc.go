// Package snac implements the command layer carried in FLAP channel 2.
//
// Wire layout of a SNAC:
//
//	family:u16 | subtype:u16 | flag1:u8 | flag2:u8 | reqid:u32 | data
//
// Typed commands are produced from an immutable Table keyed by
// (family, subtype). Packets with no registered decoder still reach
// listeners with a nil Command. Outgoing commands are sent as Requests whose
// IDs correlate any responses.
package snac
