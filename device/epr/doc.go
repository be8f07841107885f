// Package epr implements the endpoint register controller.
//
// Each endpoint register packs fields with three different write
// behaviours:
//
//	bit   15      14       13:12    11     10:9  8     7       6        5:4      3:0
//	      CTR_RX  DTOG_RX  STAT_RX  SETUP  TYPE  KIND  CTR_TX  DTOG_TX  STAT_TX  EA
//	      rc_w0   t        t        r      rw    rw    rc_w0   t        t        rw
//
// where rc_w0 bits are cleared by writing 0 and kept by writing 1, t bits
// flip when written with 1 and are kept when written with 0, and rw bits
// take the written value. A register value can therefore never be treated
// as a plain assignable word: writing back what was read would toggle every
// status bit that happens to be set.
//
// The With* functions compute the single value to write, given the value
// last read and the desired field value. [Controller] applies them to a
// [hal.Bus] as one read followed by one write, and is the only code in the
// driver that stores to an endpoint register.
package epr
