// Package snaccmd holds the structures shared by the per-family SNAC command
// packages: family codes, the full user info block, capability UUIDs and the
// generic SNAC error command that any family may return.
//
// Each family lives in its own subpackage (conn, auth, loc, buddy, icbm,
// chatnav, chat, search) with typed command structs, Decode functions and a
// Register function that adds its decoders to a snac.TableBuilder.
package snaccmd
