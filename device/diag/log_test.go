package diag

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/pmausb/pkg"
)

func TestLogAppend(t *testing.T) {
	var l Log
	assert.Zero(t, l.Len())

	l.Append(0, OpReset, nil)
	l.Append(0, OpGetDescRx, []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x40, 0x00})

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, OpReset, entries[0].Op)
	assert.Empty(t, entries[0].Payload())
	assert.Equal(t, OpGetDescRx, entries[1].Op)
	assert.Equal(t, []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x40, 0x00}, entries[1].Payload())
}

func TestLogTruncatesPayload(t *testing.T) {
	l := New()
	data := bytes.Repeat([]byte{0xAA}, 30)
	l.Append(1, OpDataRx, data)

	e := l.Entries()[0]
	assert.Equal(t, uint8(DataSize), e.Length)
	assert.Equal(t, data[:DataSize], e.Payload())
}

func TestLogWraps(t *testing.T) {
	l := New()
	for i := 0; i < Capacity+5; i++ {
		l.Append(uint8(i), OpSetup, []byte{byte(i)})
	}
	assert.Equal(t, Capacity, l.Len())

	entries := l.Entries()
	require.Len(t, entries, Capacity)
	for i, e := range entries {
		assert.Equal(t, uint8(i+5), e.Endpoint, "oldest first")
		assert.Equal(t, []byte{byte(i + 5)}, e.Payload())
	}
}

func TestLogOverwriteClearsStaleBytes(t *testing.T) {
	l := New()
	for i := 0; i < Capacity; i++ {
		l.Append(0, OpDataRx, bytes.Repeat([]byte{0xFF}, DataSize))
	}
	l.Append(0, OpDataRx, []byte{1})
	last := l.Entries()[Capacity-1]
	assert.Equal(t, [DataSize]byte{1}, last.Data)
}

func TestLogEach(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		l.Append(0, OpSetup, nil)
	}
	var n int
	l.Each(func(Entry) bool {
		n++
		return n < 3
	})
	assert.Equal(t, 3, n)
}

func TestLogReset(t *testing.T) {
	l := New()
	l.Append(0, OpReset, nil)
	l.Reset()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.Entries())
}

func TestLogWriteText(t *testing.T) {
	l := New()
	l.Append(0, OpSetAddressRx, []byte{0x00, 0x05, 0x07, 0x00})
	var buf bytes.Buffer
	require.NoError(t, l.WriteText(&buf))
	assert.Contains(t, buf.String(), "SetAddressRx")
	assert.Contains(t, buf.String(), "00050700")
}

func TestLogCBOR(t *testing.T) {
	l := New()
	l.Append(0, OpReset, nil)
	l.Append(2, OpDataTx, []byte("hello"))

	data, err := l.MarshalCBOR()
	require.NoError(t, err)

	entries, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, l.Entries(), entries)

	_, err = Decode([]byte{0xFF})
	assert.Error(t, err)
}

func TestDecodeRejects(t *testing.T) {
	original := pkg.Logger()
	defer pkg.SetLogger(original)
	var logs bytes.Buffer
	pkg.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	tooMany, err := cbor.Marshal(make([]Entry, Capacity+1))
	require.NoError(t, err)
	_, err = Decode(tooMany)
	require.ErrorIs(t, err, pkg.ErrInvalidParameter)

	long, err := cbor.Marshal([]Entry{{Op: OpDataRx, Length: DataSize + 1}})
	require.NoError(t, err)
	_, err = Decode(long)
	require.ErrorIs(t, err, pkg.ErrInvalidParameter)

	assert.Contains(t, logs.String(), "dump rejected")
	assert.Contains(t, logs.String(), "component=diag")
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "GetStatusTx", OpGetStatusTx.String())
	assert.Equal(t, "Op(99)", Op(99).String())
}
