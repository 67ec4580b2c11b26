package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Frame. Wire kinds use their RESP
// type byte.
type Kind byte

const (
	KindSimpleString Kind = '+'
	KindError        Kind = '-'
	KindInteger      Kind = ':'
	KindBulkString   Kind = '$'
	KindArray        Kind = '*'
	KindNull         Kind = '_'
	KindOK           Kind = 'K'
)

func (k Kind) String() string {
	switch k {
	case KindSimpleString:
		return "simple-string"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulkString:
		return "bulk-string"
	case KindArray:
		return "array"
	case KindNull:
		return "null"
	case KindOK:
		return "ok"
	default:
		return fmt.Sprintf("kind(%q)", byte(k))
	}
}

// Frame is one protocol value: a request sent by a client or a reply
// produced by the server. Only the field matching Kind is meaningful.
type Frame struct {
	Kind    Kind
	Data    []byte
	Integer int64
	Array   []Frame
}

// OK returns the fixed "+OK" status reply.
func OK() Frame { return Frame{Kind: KindOK} }

// Null returns the null bulk string.
func Null() Frame { return Frame{Kind: KindNull} }

// SimpleString returns a status reply. s must not contain CR or LF.
func SimpleString(s string) Frame {
	return Frame{Kind: KindSimpleString, Data: []byte(s)}
}

// Error returns an error reply.
func Error(msg string) Frame {
	return Frame{Kind: KindError, Data: []byte(msg)}
}

// Errorf returns an error reply built from a format string.
func Errorf(format string, args ...interface{}) Frame {
	return Error(fmt.Sprintf(format, args...))
}

// Integer returns an integer reply.
func Integer(n int64) Frame {
	return Frame{Kind: KindInteger, Integer: n}
}

// Bulk returns a binary-safe string holding p. p is not copied.
func Bulk(p []byte) Frame {
	if p == nil {
		p = []byte{}
	}
	return Frame{Kind: KindBulkString, Data: p}
}

// BulkString returns a binary-safe string holding s.
func BulkString(s string) Frame {
	return Frame{Kind: KindBulkString, Data: []byte(s)}
}

// Array returns an array of frames.
func Array(items ...Frame) Frame {
	if items == nil {
		items = []Frame{}
	}
	return Frame{Kind: KindArray, Array: items}
}

// StringArray returns an array of bulk strings.
func StringArray(items ...string) Frame {
	out := make([]Frame, len(items))
	for i, s := range items {
		out[i] = BulkString(s)
	}
	return Frame{Kind: KindArray, Array: out}
}

// IsOK reports whether f is the OK status, in either its dedicated or its
// decoded simple string form.
func (f Frame) IsOK() bool {
	return f.Kind == KindOK || (f.Kind == KindSimpleString && string(f.Data) == "OK")
}

// IsNull reports whether f is the null value.
func (f Frame) IsNull() bool {
	return f.Kind == KindNull
}

// IsError reports whether f is an error reply.
func (f Frame) IsError() bool {
	return f.Kind == KindError
}

// Err returns the error text of an error reply as an error, or nil.
func (f Frame) Err() error {
	if f.Kind != KindError {
		return nil
	}
	return ReplyError(f.Data)
}

// ReplyError is an error reply received from a server.
type ReplyError string

func (e ReplyError) Error() string { return string(e) }

// Equal reports whether f and g hold the same value.
func (f Frame) Equal(g Frame) bool {
	if f.Kind != g.Kind {
		return false
	}
	switch f.Kind {
	case KindInteger:
		return f.Integer == g.Integer
	case KindSimpleString, KindError, KindBulkString:
		return bytes.Equal(f.Data, g.Data)
	case KindArray:
		if len(f.Array) != len(g.Array) {
			return false
		}
		for i := range f.Array {
			if !f.Array[i].Equal(g.Array[i]) {
				return false
			}
		}
	}
	return true
}

// Text renders f as plain text. Array elements are joined with single
// spaces and null renders as the empty string.
func (f Frame) Text() string {
	switch f.Kind {
	case KindOK:
		return "OK"
	case KindInteger:
		return strconv.FormatInt(f.Integer, 10)
	case KindSimpleString, KindError, KindBulkString:
		return string(f.Data)
	case KindArray:
		var sb strings.Builder
		for _, item := range f.Array {
			sb.WriteString(item.Text())
			sb.WriteByte(' ')
		}
		return strings.TrimRight(sb.String(), " ")
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	switch f.Kind {
	case KindNull:
		return "(nil)"
	case KindError:
		return "(error) " + string(f.Data)
	case KindArray:
		parts := make([]string, len(f.Array))
		for i, item := range f.Array {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return f.Text()
	}
}

// Arg returns the text of the i-th element of an array frame.
func (f Frame) Arg(i int) (string, bool) {
	if f.Kind != KindArray || i < 0 || i >= len(f.Array) {
		return "", false
	}
	return f.Array[i].Text(), true
}

// Args returns the text of every element of an array frame, or nil for
// other kinds.
func (f Frame) Args() []string {
	return f.ArgsFrom(0)
}

// ArgsFrom returns the text of the elements of an array frame starting at
// index start. It is empty when start is out of bounds.
func (f Frame) ArgsFrom(start int) []string {
	if f.Kind != KindArray || start < 0 || start >= len(f.Array) {
		return nil
	}
	out := make([]string, 0, len(f.Array)-start)
	for _, item := range f.Array[start:] {
		out = append(out, item.Text())
	}
	return out
}

// Command is a request decoded from an array of strings. Args excludes the
// command name and holds raw bytes.
type Command struct {
	Name string
	Args [][]byte
}

// ParseCommand converts an array frame into a Command. The name is upper
// cased; every element must be a bulk or simple string.
func ParseCommand(f Frame) (*Command, error) {
	if f.Kind != KindArray || len(f.Array) == 0 {
		return nil, fmt.Errorf("invalid command format")
	}

	cmd := &Command{
		Args: make([][]byte, len(f.Array)-1),
	}
	for i, item := range f.Array {
		if item.Kind != KindBulkString && item.Kind != KindSimpleString {
			return nil, fmt.Errorf("command element %d must be a string, got %s", i, item.Kind)
		}
		if i == 0 {
			cmd.Name = strings.ToUpper(string(item.Data))
			continue
		}
		cmd.Args[i-1] = item.Data
	}
	return cmd, nil
}

// String returns a string representation of the command
func (c *Command) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = string(arg)
	}
	return strings.TrimSpace(c.Name + " " + strings.Join(args, " "))
}
