package pkg

import "errors"

// Driver and protocol errors.
var (
	// ErrStall indicates the endpoint answered with a STALL handshake.
	ErrStall = errors.New("endpoint stalled")

	// ErrNAK indicates the endpoint answered with a NAK handshake.
	ErrNAK = errors.New("NAK received")

	// ErrProtocol indicates a control transfer sequencing violation.
	ErrProtocol = errors.New("protocol error")

	// ErrNotConfigured indicates the device is not configured.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidEndpoint indicates an invalid endpoint number or address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidState indicates an invalid device state for the operation.
	ErrInvalidState = errors.New("invalid device state")

	// ErrInvalidRequest indicates an invalid or unsupported request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrBusy indicates the endpoint already has a transfer in flight.
	ErrBusy = errors.New("resource busy")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrNoResponse indicates the addressed function did not respond.
	ErrNoResponse = errors.New("no response")
)
