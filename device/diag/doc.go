// Package diag records recent driver activity in a fixed-size ring.
//
// The ring holds the last [Capacity] events. Each [Entry] carries the
// endpoint, an [Op] code and up to [DataSize] bytes of payload; longer
// payloads are truncated and Length records how many bytes were kept.
// Appending never allocates, so the log may be written from interrupt
// context.
//
// A snapshot can be printed with [Log.WriteText] or exported as CBOR with
// [Log.MarshalCBOR] and read back with [Decode].
package diag
