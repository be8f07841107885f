package device

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ardnew/pmausb/device/epr"
	"github.com/ardnew/pmausb/pkg"
)

func TestEndpointConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  EndpointConfig
		err  error
	}{
		{"bulk pair", EndpointConfig{Number: 1, Type: epr.TypeBulk, TxMax: 64, RxMax: 64}, nil},
		{"interrupt in", EndpointConfig{Number: 3, Type: epr.TypeInterrupt, TxMax: 8}, nil},
		{"endpoint 0", EndpointConfig{Number: 0, Type: epr.TypeBulk, TxMax: 64}, pkg.ErrInvalidEndpoint},
		{"beyond table", EndpointConfig{Number: 4, Type: epr.TypeBulk, TxMax: 64}, pkg.ErrInvalidEndpoint},
		{"control", EndpointConfig{Number: 1, Type: epr.TypeControl, TxMax: 64}, pkg.ErrNotSupported},
		{"isochronous", EndpointConfig{Number: 1, Type: epr.TypeIsochronous, TxMax: 64}, pkg.ErrNotSupported},
		{"no direction", EndpointConfig{Number: 1, Type: epr.TypeBulk}, pkg.ErrInvalidParameter},
		{"oversized", EndpointConfig{Number: 1, Type: epr.TypeBulk, RxMax: 128}, pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate(4)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEndpointStateTransfer(t *testing.T) {
	ep := EndpointState{Number: 1, TxMax: 64}
	assert.False(t, ep.Busy())
	assert.Zero(t, ep.Pending())

	ep.tx = make([]byte, 100)
	ep.txOff = 64
	ep.txBusy = true
	assert.True(t, ep.Busy())
	assert.Equal(t, 36, ep.Pending())

	ep.clearTx()
	assert.False(t, ep.Busy())
	assert.Zero(t, ep.Pending())
	assert.Nil(t, ep.Received())
}
