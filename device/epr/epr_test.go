package epr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// apply models the peripheral's response to a store of w over cur.
func apply(cur, w uint16) uint16 {
	next := cur & completeMask & w
	next |= (cur ^ w) & toggleMask
	next |= cur & Setup
	next |= w & (Type | Kind | EA)
	return next
}

var statuses = []Status{StatusDisabled, StatusStall, StatusNAK, StatusValid}

func TestWithStatusReachesTarget(t *testing.T) {
	for _, dir := range []Direction{Tx, Rx} {
		for _, from := range statuses {
			for _, to := range statuses {
				cur := WithStatus(0, dir, from)
				cur = apply(0, cur) | CtrRx | CtrTx | DtogRx | uint16(TypeControl)<<typeShift | 3
				got := apply(cur, WithStatus(cur, dir, to))

				assert.Equal(t, to, StatusOf(got, dir), "%s %s->%s", dir, from, to)
				assert.Equal(t, StatusOf(cur, dir^1), StatusOf(got, dir^1), "opposite status kept")
				assert.True(t, IsComplete(got, Rx), "CTR_RX kept")
				assert.True(t, IsComplete(got, Tx), "CTR_TX kept")
				assert.True(t, DataToggle(got, Rx), "DTOG_RX kept")
				assert.Equal(t, TypeControl, TypeOf(got))
				assert.Equal(t, uint8(3), AddressOf(got))
			}
		}
	}
}

func TestWithStatusIdempotent(t *testing.T) {
	for _, dir := range []Direction{Tx, Rx} {
		for _, s := range statuses {
			cur := apply(0, WithStatus(0, dir, s))
			once := apply(cur, WithStatus(cur, dir, s))
			twice := apply(once, WithStatus(once, dir, s))
			assert.Equal(t, cur, once, "%s %s", dir, s)
			assert.Equal(t, once, twice, "%s %s", dir, s)
		}
	}
}

func TestWithStatusBoth(t *testing.T) {
	cur := uint16(0x2020) | CtrTx // RX NAK, TX NAK
	got := apply(cur, WithStatusBoth(cur, StatusStall, StatusStall))
	assert.Equal(t, StatusStall, StatusOf(got, Tx))
	assert.Equal(t, StatusStall, StatusOf(got, Rx))
	assert.True(t, IsComplete(got, Tx))
}

func TestWithCompleteCleared(t *testing.T) {
	cur := uint16(CtrRx|CtrTx|Setup) | 0x3030
	got := apply(cur, WithCompleteCleared(cur, Rx))
	assert.False(t, IsComplete(got, Rx))
	assert.True(t, IsComplete(got, Tx))
	assert.Equal(t, StatusValid, StatusOf(got, Rx))
	assert.Equal(t, StatusValid, StatusOf(got, Tx))
	assert.True(t, IsSetup(got))

	got = apply(got, WithCompleteCleared(got, Tx))
	assert.False(t, IsComplete(got, Tx))
}

func TestWithDataToggle(t *testing.T) {
	cur := uint16(DtogRx | DtogTx)
	got := apply(cur, WithDataToggle(cur, Rx, false))
	assert.False(t, DataToggle(got, Rx))
	assert.True(t, DataToggle(got, Tx))

	got = apply(got, WithDataToggle(got, Rx, false))
	assert.False(t, DataToggle(got, Rx), "already DATA0")

	got = apply(got, WithDataToggle(got, Tx, true))
	assert.True(t, DataToggle(got, Tx))
}

func TestRWFields(t *testing.T) {
	cur := uint16(CtrRx) | 0x3000
	got := apply(cur, WithAddress(cur, 0x12))
	assert.Equal(t, uint8(2), AddressOf(got), "EA is 4 bits")

	got = apply(got, WithType(got, TypeInterrupt))
	assert.Equal(t, TypeInterrupt, TypeOf(got))
	assert.Equal(t, uint8(2), AddressOf(got))

	got = apply(got, WithKind(got, true))
	assert.True(t, IsKind(got))
	got = apply(got, WithKind(got, false))
	assert.False(t, IsKind(got))

	assert.True(t, IsComplete(got, Rx))
	assert.Equal(t, StatusValid, StatusOf(got, Rx))
	assert.Equal(t, TypeInterrupt, TypeOf(got))
}

func TestWritesNeverSetToggleBitsUnasked(t *testing.T) {
	cur := uint16(0xFFFF) &^ Setup
	for _, w := range []uint16{
		WithCompleteCleared(cur, Tx),
		WithAddress(cur, 1),
		WithType(cur, TypeBulk),
		WithKind(cur, false),
	} {
		assert.Zero(t, w&toggleMask, "%#04x", w)
	}
}

func TestDescribe(t *testing.T) {
	s := Describe(uint16(TypeControl)<<typeShift | 0x3020 | CtrRx | Setup)
	assert.Contains(t, s, "Control")
	assert.Contains(t, s, "RX[Valid ctr=true")
	assert.Contains(t, s, "setup=true")
	assert.Contains(t, s, "TX[NAK")
}
