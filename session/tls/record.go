package tls

import (
	"bytes"
	"encoding/binary"
	"tlschannel/session/tls/common"
	"tlschannel/internal/util"

	"github.com/pkg/errors"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-5.1
type ContentType uint8

const (
	TypeInvalid          ContentType = 0
	TypeChangeCipherSpec ContentType = 20
	TypeAlert            ContentType = 21
	TypeHandshake        ContentType = 22
	TypeApplicationData  ContentType = 23
)

// TLSText is a single on-the-wire TLS record: a 5-byte header (content
// type, legacy version, length) followed by fragment bytes. Depending on
// context fragment holds either plaintext or ciphertext.
type TLSText struct {
	ContentType ContentType
	// Always set to TLS 1.2; TLS 1.3 keeps this value for middlebox
	// compatibility.
	RecordVersion common.Version
	Fragment      []byte
}

const MaxRecordLen = 2 << 13 // 2 ^ 14, RFC 8446 plaintext fragment limit.

var ErrRecordTooLong = errors.New("record length exceeds maximum allowed size")

// InnerPlainText is the TLS 1.3 "inner plaintext": content followed by its
// real content type and zero or more bytes of zero padding.
// Reference: https://datatracker.ietf.org/doc/html/rfc8446#section-5.2
type InnerPlainText struct {
	Content     []byte
	ContentType ContentType
	Zeros       uint
}

func (t InnerPlainText) Bytes() []byte {
	b := append(append([]byte{}, t.Content...), byte(t.ContentType))
	b = append(b, make([]byte, t.Zeros)...)
	return b
}

// FillFrom discards trailing zero padding and recovers the content type.
func (t *InnerPlainText) FillFrom(b []byte) error {
	trimmed := bytes.TrimRight(b, "\x00")
	if len(trimmed) == 0 {
		return errors.New("short inner plaintext")
	}

	t.Content = trimmed[:len(trimmed)-1]
	t.ContentType = ContentType(trimmed[len(trimmed)-1])
	t.Zeros = uint(len(b) - len(trimmed))

	return nil
}

func (t TLSText) metadata() []byte {
	metadata := append([]byte{byte(t.ContentType)}, t.RecordVersion.Bytes()...)
	metadata = append(metadata, util.ToBigEndianBytes(uint(len(t.Fragment)), 2)...)
	return metadata
}

// Header returns the 5-byte record header (content type, legacy version,
// length) as it will be written, without the fragment. Useful as
// additional authenticated data when the fragment itself is an AEAD
// ciphertext whose length is already known.
func (t TLSText) Header() []byte { return t.metadata() }

// Marshal serializes the record header and fragment into a single buffer.
func (t TLSText) Marshal() []byte {
	return append(t.metadata(), t.Fragment...)
}

// AppendTo appends the marshaled record to dst, returning the grown slice.
func (t TLSText) AppendTo(dst []byte) []byte {
	dst = append(dst, t.metadata()...)
	dst = append(dst, t.Fragment...)
	return dst
}

// Unmarshal reads one record's header+fragment from the front of b.
// consumed is the number of bytes read from b; it is 0 when b does not yet
// hold a full record (the caller should read more and retry).
func (t *TLSText) Unmarshal(b []byte) (consumed int, err error) {
	if len(b) < 5 {
		return 0, nil
	}

	// A protected record's fragment is ciphertext, which may exceed the
	// plaintext limit by up to 256 bytes of expansion (RFC 8446 §5.2).
	length := binary.BigEndian.Uint16(b[3:5])
	if length > MaxRecordLen+256 {
		return 0, ErrRecordTooLong
	}

	if len(b) < 5+int(length) {
		return 0, nil
	}

	t.ContentType = ContentType(b[0])
	t.RecordVersion = common.Version(binary.BigEndian.Uint16(b[1:3]))
	t.Fragment = append([]byte{}, b[5:5+int(length)]...)

	return 5 + int(length), nil
}
