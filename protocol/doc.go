// Package protocol implements the Redis Serialization Protocol (RESP2)
// framing used between clients and the server.
//
// A Frame is one protocol value. Frames are read from a stream with Reader,
// written with Writer, or converted in one step with Decode and Encode:
//
//	reader := protocol.NewReader(conn)
//	for {
//		frame, err := reader.ReadFrame()
//		if err != nil {
//			break
//		}
//		args := frame.Args()
//		// dispatch args[0]
//	}
//
// Supported kinds:
//   - Simple strings and the OK status
//   - Errors
//   - Integers
//   - Bulk strings (binary safe)
//   - Arrays, nested to any depth up to a fixed limit
//   - Null
//
// Malformed input is reported as a *ProtocolError wrapping one of the
// package's sentinel errors.
package protocol
