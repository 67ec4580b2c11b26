package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	// CRLF is the protocol line terminator
	CRLF = "\r\n"

	// maxBulkSize is the maximum size for bulk strings (512MB)
	maxBulkSize = 512 * 1024 * 1024

	// maxArraySize is the maximum number of elements in an array
	maxArraySize = 1024 * 1024

	// maxDepth bounds array nesting
	maxDepth = 64

	// Declared lengths beyond these are grown as data arrives instead of
	// being allocated up front.
	maxPreallocBulk  = 64 * 1024
	maxPreallocArray = 1024
)

var (
	crlfBytes = []byte(CRLF)
)

// Reader is a streaming frame reader.
type Reader struct {
	br *bufio.Reader
}

// NewReader creates a new streaming frame reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br: bufio.NewReader(r),
	}
}

// Buffered returns the number of bytes that can be read without touching
// the underlying reader.
func (r *Reader) Buffered() int {
	return r.br.Buffered()
}

// ReadFrame reads the next frame from the stream. It returns io.EOF only
// when the stream ends cleanly between frames; an EOF inside a frame is
// reported as ErrTruncated.
//
// When an unknown type byte starts a top-level frame, the offending line is
// consumed and IsRecoverable reports true, so the caller may keep reading.
// Any other protocol error, including an unknown type byte inside an array,
// leaves the stream position undefined.
func (r *Reader) ReadFrame() (Frame, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	return r.readFrame(typeByte, 0)
}

func (r *Reader) next(depth int) (Frame, error) {
	typeByte, err := r.br.ReadByte()
	if err != nil {
		return Frame{}, truncated(err)
	}
	return r.readFrame(typeByte, depth)
}

func (r *Reader) readFrame(typeByte byte, depth int) (Frame, error) {
	switch Kind(typeByte) {
	case KindSimpleString, KindError:
		line, err := r.readLine()
		if err != nil {
			return Frame{}, err
		}
		if bytes.IndexByte(line, '\r') >= 0 {
			return Frame{}, protocolErr(ErrInvalidSimpleString, "%q", line)
		}
		return Frame{Kind: Kind(typeByte), Data: line}, nil
	case KindInteger:
		return r.readInteger()
	case KindBulkString:
		return r.readBulkString()
	case KindArray:
		if depth >= maxDepth {
			return Frame{}, protocolErr(ErrInvalidLength, "arrays nested deeper than %d", maxDepth)
		}
		return r.readArray(depth)
	default:
		if depth > 0 {
			return Frame{}, protocolErr(ErrUnknownType, "%q inside array", typeByte)
		}
		r.discardLine()
		return Frame{}, &ProtocolError{Err: ErrUnknownType, Detail: fmt.Sprintf("%q", typeByte), resync: true}
	}
}

// readInteger reads an integer value
func (r *Reader) readInteger() (Frame, error) {
	line, err := r.readLine()
	if err != nil {
		return Frame{}, err
	}

	n, err := parseInt64(line)
	if err != nil {
		return Frame{}, protocolErr(ErrInvalidInteger, "%q", line)
	}
	return Integer(n), nil
}

// parseInt64 parses an int64 from a byte slice without allocation
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	var i int

	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}

	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n uint64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}
		if n > (1<<63)/10 {
			return 0, strconv.ErrRange
		}
		n = n*10 + uint64(b[i]-'0')
	}

	if neg {
		if n > 1<<63 {
			return 0, strconv.ErrRange
		}
		return -int64(n), nil
	}
	if n > 1<<63-1 {
		return 0, strconv.ErrRange
	}
	return int64(n), nil
}

func (r *Reader) readLength(limit int64) (int64, error) {
	line, err := r.readLine()
	if err != nil {
		return 0, err
	}
	n, err := parseInt64(line)
	if err != nil || n < -1 || n > limit {
		return 0, protocolErr(ErrInvalidLength, "%q", line)
	}
	return n, nil
}

// readBulkString reads a bulk string value
func (r *Reader) readBulkString() (Frame, error) {
	length, err := r.readLength(maxBulkSize)
	if err != nil {
		return Frame{}, err
	}
	if length == -1 {
		return Null(), nil
	}

	data, err := r.readPayload(length)
	if err != nil {
		return Frame{}, err
	}
	if err := r.expectCRLF(); err != nil {
		return Frame{}, err
	}
	return Frame{Kind: KindBulkString, Data: data}, nil
}

// readArray reads an array and, recursively, its elements
func (r *Reader) readArray(depth int) (Frame, error) {
	length, err := r.readLength(maxArraySize)
	if err != nil {
		return Frame{}, err
	}
	if length == -1 {
		return Null(), nil
	}

	items := make([]Frame, 0, min(length, maxPreallocArray))
	for range length {
		item, err := r.next(depth + 1)
		if err != nil {
			return Frame{}, err
		}
		items = append(items, item)
	}
	return Frame{Kind: KindArray, Array: items}, nil
}

// readPayload reads exactly n bytes. Large payloads are buffered
// incrementally so memory tracks the bytes received, not the declared size.
func (r *Reader) readPayload(n int64) ([]byte, error) {
	if n <= maxPreallocBulk {
		data := make([]byte, n)
		if _, err := io.ReadFull(r.br, data); err != nil {
			return nil, truncated(err)
		}
		return data, nil
	}

	var buf bytes.Buffer
	buf.Grow(maxPreallocBulk)
	got, err := io.CopyN(&buf, r.br, n)
	if got < n {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, truncated(err)
	}
	return buf.Bytes(), nil
}

// readLine reads a line terminated by CRLF and returns it without the
// terminator.
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, truncated(err)
	}
	if !bytes.HasSuffix(line, crlfBytes) {
		return nil, protocolErr(ErrMissingCRLF, "line ends with %q", line[max(len(line)-2, 0):])
	}
	return line[:len(line)-2], nil
}

// discardLine skips input up to and including the next LF.
func (r *Reader) discardLine() {
	for {
		_, err := r.br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return
		}
	}
}

// expectCRLF reads and validates a CRLF terminator
func (r *Reader) expectCRLF() error {
	var crlf [2]byte
	if _, err := io.ReadFull(r.br, crlf[:]); err != nil {
		return truncated(err)
	}
	if crlf[0] != '\r' || crlf[1] != '\n' {
		return protocolErr(ErrMissingCRLF, "got %q", crlf[:])
	}
	return nil
}

// truncated converts an end of stream inside a frame into ErrTruncated and
// passes other I/O errors through.
func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ProtocolError{Err: ErrTruncated}
	}
	return err
}
