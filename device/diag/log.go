package diag

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/ardnew/pmausb/pkg"
)

// Ring dimensions.
const (
	Capacity = 20 // Entries retained
	DataSize = 20 // Payload bytes retained per entry
)

// Op identifies the kind of event recorded.
type Op uint8

// Event codes. The first five match the codes existing log consumers
// decode.
const (
	OpReset            Op = 1  // Bus reset serviced
	OpGetDescRx        Op = 2  // GET_DESCRIPTOR setup received
	OpGetDescTx        Op = 3  // Descriptor data sent
	OpGetStatusTx      Op = 4  // GET_STATUS response sent
	OpSetAddressRx     Op = 5  // SET_ADDRESS setup received
	OpSetup            Op = 6  // Other setup received
	OpStall            Op = 7  // Control endpoint stalled
	OpSetConfiguration Op = 8  // Configuration changed
	OpDataRx           Op = 9  // Data endpoint OUT completed
	OpDataTx           Op = 10 // Data endpoint IN started
	OpClassRequest     Op = 11 // Class request dispatched
)

// String returns the op name.
func (o Op) String() string {
	switch o {
	case OpReset:
		return "Reset"
	case OpGetDescRx:
		return "GetDescRx"
	case OpGetDescTx:
		return "GetDescTx"
	case OpGetStatusTx:
		return "GetStatusTx"
	case OpSetAddressRx:
		return "SetAddressRx"
	case OpSetup:
		return "Setup"
	case OpStall:
		return "Stall"
	case OpSetConfiguration:
		return "SetConfiguration"
	case OpDataRx:
		return "DataRx"
	case OpDataTx:
		return "DataTx"
	case OpClassRequest:
		return "ClassRequest"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Entry is one recorded event.
type Entry struct {
	Endpoint uint8          `cbor:"1,keyasint"`
	Op       Op             `cbor:"2,keyasint"`
	Length   uint8          `cbor:"3,keyasint"`
	Data     [DataSize]byte `cbor:"4,keyasint"`
}

// Payload returns the captured bytes.
func (e Entry) Payload() []byte {
	return e.Data[:e.Length]
}

// String formats the entry on one line.
func (e Entry) String() string {
	return fmt.Sprintf("ep%d %-16s %s", e.Endpoint, e.Op, hex.EncodeToString(e.Payload()))
}

// Log is a ring of the most recent Capacity entries. The zero value is an
// empty log ready for use.
type Log struct {
	mu      sync.Mutex
	entries [Capacity]Entry
	next    int // Slot the next entry is written to
	count   int
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append records an event, overwriting the oldest entry once the ring is
// full. data beyond DataSize bytes is dropped.
func (l *Log) Append(ep uint8, op Op, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := &l.entries[l.next]
	e.Endpoint = ep
	e.Op = op
	e.Data = [DataSize]byte{}
	e.Length = uint8(copy(e.Data[:], data))

	l.next = (l.next + 1) % Capacity
	if l.count < Capacity {
		l.count++
	}
}

// Len returns the number of entries held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Reset empties the log.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = [Capacity]Entry{}
	l.next = 0
	l.count = 0
}

// Each calls fn for every entry, oldest first, until fn returns false.
func (l *Log) Each(fn func(Entry) bool) {
	for _, e := range l.Entries() {
		if !fn(e) {
			return
		}
	}
}

// Entries returns a copy of the held entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, l.count)
	start := (l.next - l.count + Capacity) % Capacity
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(start+i)%Capacity])
	}
	return out
}

// WriteText writes one line per entry, oldest first.
func (l *Log) WriteText(w io.Writer) error {
	for i, e := range l.Entries() {
		if _, err := fmt.Fprintf(w, "%2d %s\n", i, e); err != nil {
			return err
		}
	}
	return nil
}

// MarshalCBOR encodes the held entries, oldest first, as a CBOR array.
func (l *Log) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(l.Entries())
}

// Decode parses entries produced by MarshalCBOR.
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := cbor.Unmarshal(data, &entries); err != nil {
		return nil, rejectDump(fmt.Errorf("decode diagnostic log: %w", err))
	}
	if len(entries) > Capacity {
		return nil, rejectDump(fmt.Errorf("decode diagnostic log: %d entries exceeds ring of %d: %w",
			len(entries), Capacity, pkg.ErrInvalidParameter))
	}
	for i := range entries {
		if entries[i].Length > DataSize {
			return nil, rejectDump(fmt.Errorf("decode diagnostic log: entry %d length %d: %w",
				i, entries[i].Length, pkg.ErrInvalidParameter))
		}
	}
	pkg.LogDebug(pkg.ComponentDiag, "decoded", "entries", len(entries))
	return entries, nil
}

func rejectDump(err error) error {
	pkg.LogWarn(pkg.ComponentDiag, "dump rejected", "error", err)
	return err
}
