package protocol

import (
	"bufio"
	"io"
	"strconv"
)

// Writer provides buffered writing of frames
type Writer struct {
	bw      *bufio.Writer
	scratch []byte
}

// NewWriter creates a new frame writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw:      bufio.NewWriter(w),
		scratch: make([]byte, 0, 64),
	}
}

// WriteFrame writes f. Nothing is sent until Flush.
func (w *Writer) WriteFrame(f Frame) error {
	var err error
	w.scratch, err = AppendFrame(w.scratch[:0], f)
	if err != nil {
		return err
	}
	_, err = w.bw.Write(w.scratch)
	return err
}

// WriteOK writes the "+OK" status.
func (w *Writer) WriteOK() error {
	_, err := w.bw.WriteString("+OK\r\n")
	return err
}

// WriteSimpleString writes a status reply
func (w *Writer) WriteSimpleString(s string) error {
	return w.WriteFrame(SimpleString(s))
}

// WriteError writes an error reply
func (w *Writer) WriteError(msg string) error {
	return w.WriteFrame(Error(msg))
}

// WriteInteger writes an integer
func (w *Writer) WriteInteger(n int64) error {
	w.scratch = appendPrefixed(w.scratch[:0], ':', n)
	_, err := w.bw.Write(w.scratch)
	return err
}

// WriteBulkString writes a binary-safe string
func (w *Writer) WriteBulkString(data []byte) error {
	w.scratch = appendPrefixed(w.scratch[:0], '$', int64(len(data)))
	if _, err := w.bw.Write(w.scratch); err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	_, err := w.bw.WriteString(CRLF)
	return err
}

// WriteNull writes the null bulk string
func (w *Writer) WriteNull() error {
	_, err := w.bw.WriteString("$-1\r\n")
	return err
}

// WriteArrayHeader writes the element count of an array. The caller must
// follow it with exactly n frames.
func (w *Writer) WriteArrayHeader(n int) error {
	w.scratch = appendPrefixed(w.scratch[:0], '*', int64(n))
	_, err := w.bw.Write(w.scratch)
	return err
}

// WriteArray writes an array of frames
func (w *Writer) WriteArray(items []Frame) error {
	if err := w.WriteArrayHeader(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.WriteFrame(item); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommand writes a command as an array of bulk strings
func (w *Writer) WriteCommand(cmd string, args ...string) error {
	if err := w.WriteArrayHeader(1 + len(args)); err != nil {
		return err
	}
	if err := w.WriteBulkString([]byte(cmd)); err != nil {
		return err
	}
	for _, arg := range args {
		if err := w.WriteBulkString([]byte(arg)); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Buffered returns the number of bytes waiting for Flush.
func (w *Writer) Buffered() int {
	return w.bw.Buffered()
}

// Reset resets the writer to write to a new underlying writer
func (w *Writer) Reset(writer io.Writer) {
	w.bw.Reset(writer)
}

func appendPrefixed(dst []byte, prefix byte, n int64) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, CRLF...)
}
