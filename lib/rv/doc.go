// Package rv gives typed meaning to the rendezvous blocks carried on ICBM
// channel 2: proposals to send files, open direct IM connections or browse
// a buddy's shared files, and the acceptances and rejections that answer
// them.
//
// A rendezvous block is identified by its capability and status. Decoding
// looks the pair up in an immutable Table; blocks without a registered
// decoder come back as Generic so nothing is lost.
package rv
