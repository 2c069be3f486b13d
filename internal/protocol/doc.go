// Package protocol implements the wire format spoken between the Fibonacci
// server and its clients.
//
// A request is a single 4-byte big-endian two's complement integer. A
// response is a 2-byte big-endian unsigned length L followed by L bytes of
// modified UTF-8 text, the encoding produced by Java's
// DataOutputStream.writeUTF: U+0000 is written as C0 80 and characters
// outside the Basic Multilingual Plane as two 3-byte surrogates. L is at
// most 65535.
//
// There is no handshake, version byte or request identifier; requests on one
// connection are answered strictly in order.
package protocol
