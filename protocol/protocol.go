// Package protocol implements the length-prefixed frame format used by stream transports.
//
// A WebSocket already delivers whole messages. A raw byte stream (TCP, a unix socket,
// a pipe to a child process) does not, so each text message is wrapped in a fixed
// 10-byte header followed by the body. The receiver reads the header first to learn
// the body length, then reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10
//	┌──────┬──┬──┬──┬─────────┬───────────────┐
//	│magic │v │mt│rs│ bodyLen │    body ...    │
//	│ crp  │01│  │00│ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "crp" (chrome remote protocol).
const (
	MagicNumber byte = 0x63 // 'c'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 10 // 3 (magic) + 1 (version) + 1 (msgType) + 1 (reserved) + 4 (bodyLen)

	// MaxBodyLen bounds a single frame. Screenshots and heap snapshots are large.
	MaxBodyLen uint32 = 256 << 20
)

// MsgType distinguishes message frames from keepalive frames.
type MsgType byte

const (
	MsgTypeText      MsgType = 0 // One JSON message
	MsgTypeHeartbeat MsgType = 1 // KeepAlive probe (no body)
)

// Header represents the fixed frame header.
type Header struct {
	MsgType MsgType
	BodyLen uint32
}

// Encode writes a complete frame (header + body) to w.
// The caller must hold a write lock if multiple goroutines share the same writer.
func Encode(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize, HeaderSize+len(body))

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = byte(h.MsgType)
	buf[5] = 0
	binary.BigEndian.PutUint32(buf[6:10], h.BodyLen)

	// One write per frame so a concurrent reader never sees a header without its body.
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// EncodeText frames a single text message.
func EncodeText(w io.Writer, body []byte) error {
	return Encode(w, &Header{MsgType: MsgTypeText, BodyLen: uint32(len(body))}, body)
}

// Decode reads a complete frame (header + body) from r.
// Uses io.ReadFull to guarantee exactly N bytes are read, preventing partial reads.
func Decode(r io.Reader) (*Header, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("invalid magic number: %x", headerBuf[0:3])
	}

	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}

	msgType := MsgType(headerBuf[4])
	if msgType != MsgTypeText && msgType != MsgTypeHeartbeat {
		return nil, nil, fmt.Errorf("unsupported message type: %d", msgType)
	}

	bodyLen := binary.BigEndian.Uint32(headerBuf[6:10])
	if bodyLen > MaxBodyLen {
		return nil, nil, fmt.Errorf("frame body too large: %d bytes", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}

	return &Header{
		MsgType: msgType,
		BodyLen: bodyLen,
	}, body, nil
}
