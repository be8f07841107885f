package pkg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrStall,
		ErrNAK,
		ErrProtocol,
		ErrNotConfigured,
		ErrInvalidEndpoint,
		ErrInvalidState,
		ErrInvalidRequest,
		ErrBufferTooSmall,
		ErrNotSupported,
		ErrBusy,
		ErrInvalidParameter,
		ErrSetupPacketTooShort,
		ErrNoResponse,
	}

	for i := range errs {
		for j := range errs {
			if i == j {
				continue
			}
			assert.Falsef(t, errors.Is(errs[i], errs[j]),
				"%v should not match %v", errs[i], errs[j])
		}
	}
}

func TestWrappedSentinel(t *testing.T) {
	err := fmt.Errorf("rx size 500: %w", ErrInvalidParameter)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
}
