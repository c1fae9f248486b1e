package base

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

const headerSize = 20

// ErrFrameTooLarge is returned when a frame exceeds the configured message size.
var ErrFrameTooLarge = errors.New("frame exceeds max message size")

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: regionId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(conn net.Conn, regionID uint64, requestID uint64, data []byte) error {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header[:8], regionID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small, a new one is allocated for the payload. Frames
// larger than maxSize (if > 0) are rejected before the payload is read.
func readFrame(conn net.Conn, buf []byte, maxSize int) (uint64, uint64, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return 0, 0, nil, err
	}

	regionID := binary.BigEndian.Uint64(header[:8])
	requestID := binary.BigEndian.Uint64(header[8:16])
	contentLength := int(binary.BigEndian.Uint32(header[16:20]))

	if maxSize > 0 && contentLength > maxSize {
		return regionID, requestID, nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, contentLength, maxSize)
	}
	if contentLength == 0 {
		return regionID, requestID, []byte{}, nil
	}

	if len(buf) < contentLength {
		buf = make([]byte, contentLength)
	}
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}
	return regionID, requestID, buf[:contentLength], nil
}
