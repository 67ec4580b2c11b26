package protocol

import (
	"bytes"
	"fmt"
)

// Decode parses exactly one frame from b. Bytes left over after the frame
// are reported as ErrTrailingData.
func Decode(b []byte) (Frame, error) {
	f, n, err := DecodePrefix(b)
	if err != nil {
		return Frame{}, err
	}
	if n != len(b) {
		return Frame{}, protocolErr(ErrTrailingData, "%d bytes", len(b)-n)
	}
	return f, nil
}

// DecodePrefix parses the first frame in b and returns it together with
// the number of bytes it occupied.
func DecodePrefix(b []byte) (Frame, int, error) {
	if len(b) == 0 {
		return Frame{}, 0, &ProtocolError{Err: ErrEmptyInput}
	}
	src := bytes.NewReader(b)
	r := NewReader(src)
	f, err := r.ReadFrame()
	if err != nil {
		return Frame{}, 0, err
	}
	consumed := len(b) - src.Len() - r.Buffered()
	return f, consumed, nil
}

// Encode serialises f. Simple strings and errors carrying CR or LF are
// rejected with ErrInvalidSimpleString.
func Encode(f Frame) ([]byte, error) {
	return AppendFrame(nil, f)
}

// AppendFrame appends the encoding of f to dst.
func AppendFrame(dst []byte, f Frame) ([]byte, error) {
	switch f.Kind {
	case KindOK:
		return append(dst, "+OK\r\n"...), nil
	case KindNull:
		return append(dst, "$-1\r\n"...), nil
	case KindSimpleString, KindError:
		if bytes.ContainsAny(f.Data, "\r\n") {
			return dst, protocolErr(ErrInvalidSimpleString, "%q", f.Data)
		}
		dst = append(dst, byte(f.Kind))
		dst = append(dst, f.Data...)
		return append(dst, CRLF...), nil
	case KindInteger:
		return appendPrefixed(dst, ':', f.Integer), nil
	case KindBulkString:
		dst = appendPrefixed(dst, '$', int64(len(f.Data)))
		dst = append(dst, f.Data...)
		return append(dst, CRLF...), nil
	case KindArray:
		dst = appendPrefixed(dst, '*', int64(len(f.Array)))
		var err error
		for _, item := range f.Array {
			if dst, err = AppendFrame(dst, item); err != nil {
				return dst, err
			}
		}
		return dst, nil
	default:
		return dst, fmt.Errorf("unsupported frame kind: %s", f.Kind)
	}
}
