package rpc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrFrameTooLarge is returned when a frame exceeds the configured maximum.
var ErrFrameTooLarge = errors.New("rpc frame too large")

const (
	statusOK    byte = 0
	statusError byte = 1
)

// writeFrame writes uvarint(len(head)) head uvarint(len(body)) body as one write.
func writeFrame(w io.Writer, head, body []byte) error {
	buf := make([]byte, 0, 2*binary.MaxVarintLen64+len(head)+len(body))
	buf = binary.AppendUvarint(buf, uint64(len(head)))
	buf = append(buf, head...)
	buf = binary.AppendUvarint(buf, uint64(len(body)))
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

func readFrame(r *bufio.Reader, maxSize int) (head, body []byte, err error) {
	if head, err = readChunk(r, maxSize); err != nil {
		return nil, nil, err
	}
	if body, err = readChunk(r, maxSize); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}
	return head, body, nil
}

func readChunk(r *bufio.Reader, maxSize int) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && n > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFrameTooLarge, n, maxSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}
