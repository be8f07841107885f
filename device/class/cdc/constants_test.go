package cdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/pmausb/pkg"
)

func TestLineCodingRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		lc   LineCoding
		want []byte
		text string
	}{
		{"default", DefaultLineCoding, []byte{0x00, 0xC2, 0x01, 0x00, 0, 0, 8}, "115200 8N1"},
		{"9600 7E2", LineCoding{9600, StopBits2, ParityEven, 7}, []byte{0x80, 0x25, 0, 0, 2, 2, 7}, "9600 7E2"},
		{"mark", LineCoding{300, StopBits1_5, ParityMark, 5}, []byte{0x2C, 0x01, 0, 0, 1, 3, 5}, "300 5M1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf [LineCodingSize]byte
			require.Equal(t, LineCodingSize, tt.lc.MarshalTo(buf[:]))
			assert.Equal(t, tt.want, buf[:])

			var got LineCoding
			require.NoError(t, ParseLineCoding(buf[:], &got))
			assert.Equal(t, tt.lc, got)
			assert.Equal(t, tt.text, got.String())
		})
	}
}

func TestLineCodingErrors(t *testing.T) {
	var lc LineCoding
	assert.ErrorIs(t, ParseLineCoding(make([]byte, 6), &lc), pkg.ErrInvalidRequest)
	assert.ErrorIs(t, ParseLineCoding(make([]byte, 8), &lc), pkg.ErrInvalidRequest)
	assert.Zero(t, DefaultLineCoding.MarshalTo(make([]byte, 6)))
	assert.Equal(t, "1 8?1", LineCoding{DTERate: 1, ParityType: 9, DataBits: 8}.String())
}
