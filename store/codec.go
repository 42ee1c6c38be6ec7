package store

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/wire"
)

// CodecVersion is the current version of the binary record encoding.  It is
// passed to every Serialize and Deserialize call so record types can evolve
// their layout.
const CodecVersion uint32 = 1

// maxRecordSize is the largest variable-length byte field a built-in record
// type will decode.  Records beyond this are rejected as malformed.
const maxRecordSize = 1 << 25 // 32 MiB

// versionKey is the reserved key under which a file's schema version integer
// is stored.
const versionKey = "version"

// Serializable describes the codec capability records must provide.  A type
// that implements Serializable has complete control over the byte layout of
// its keys or values.  The pver argument is the codec version the bytes are
// encoded with.
type Serializable interface {
	Serialize(w io.Writer, pver uint32) error
	Deserialize(r io.Reader, pver uint32) error
}

// serialize encodes rec at the current codec version and returns the raw
// bytes.
func serialize(rec Serializable) ([]byte, error) {
	var buf bytes.Buffer
	if err := rec.Serialize(&buf, CodecVersion); err != nil {
		return nil, makeError(ErrEngine, "failed to serialize record",
			err)
	}
	return buf.Bytes(), nil
}

// deserialize decodes raw bytes into rec at the current codec version.
func deserialize(rec Serializable, raw []byte) error {
	if err := rec.Deserialize(bytes.NewReader(raw), CodecVersion); err != nil {
		return makeError(ErrDecode, "failed to deserialize record", err)
	}
	return nil
}

// BytesRecord is a raw byte sequence encoded with a leading varint length.
type BytesRecord []byte

// Serialize encodes the record to w.
//
// This function is part of the Serializable interface implementation.
func (b *BytesRecord) Serialize(w io.Writer, pver uint32) error {
	return wire.WriteVarBytes(w, pver, *b)
}

// Deserialize decodes the record from r.
//
// This function is part of the Serializable interface implementation.
func (b *BytesRecord) Deserialize(r io.Reader, pver uint32) error {
	raw, err := wire.ReadVarBytes(r, pver, maxRecordSize, "bytes record")
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// StringRecord is a string encoded with a leading varint length.  It is the
// conventional key type: all reserved keys, including "version", are stored
// in this encoding.
type StringRecord string

// Serialize encodes the record to w.
//
// This function is part of the Serializable interface implementation.
func (s *StringRecord) Serialize(w io.Writer, pver uint32) error {
	return wire.WriteVarString(w, pver, string(*s))
}

// Deserialize decodes the record from r.
//
// This function is part of the Serializable interface implementation.
func (s *StringRecord) Deserialize(r io.Reader, pver uint32) error {
	str, err := wire.ReadVarString(r, pver)
	if err != nil {
		return err
	}
	*s = StringRecord(str)
	return nil
}

// Uint32Record is a little-endian 32-bit unsigned integer.
type Uint32Record uint32

// Serialize encodes the record to w.
//
// This function is part of the Serializable interface implementation.
func (u *Uint32Record) Serialize(w io.Writer, pver uint32) error {
	return binary.Write(w, binary.LittleEndian, uint32(*u))
}

// Deserialize decodes the record from r.
//
// This function is part of the Serializable interface implementation.
func (u *Uint32Record) Deserialize(r io.Reader, pver uint32) error {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return err
	}
	*u = Uint32Record(v)
	return nil
}

// Uint64Record is a little-endian 64-bit unsigned integer.
type Uint64Record uint64

// Serialize encodes the record to w.
//
// This function is part of the Serializable interface implementation.
func (u *Uint64Record) Serialize(w io.Writer, pver uint32) error {
	return binary.Write(w, binary.LittleEndian, uint64(*u))
}

// Deserialize decodes the record from r.
//
// This function is part of the Serializable interface implementation.
func (u *Uint64Record) Deserialize(r io.Reader, pver uint32) error {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return err
	}
	*u = Uint64Record(v)
	return nil
}
