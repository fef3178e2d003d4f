// Package h2wire holds the protocol-level surface shared by the framing,
// HPACK, flow-control and stream packages: error codes, setting identifiers,
// protocol defaults, and the three error kinds a connection driver has to
// tell apart (compression, protocol, stream).
//
// The subpackages implement the endpoint core itself:
//
//   - buffer: a growable byte sequence with a read cursor and big-endian helpers.
//   - hpack:  Huffman coding, the dynamic header table and reference set, and
//     the compressor/decompressor built on top of them.
//   - frame:  the binary frame codec (parse and generate).
//   - flow:   per-direction window accounting.
//   - stream: the per-stream lifecycle state machine.
//
// The connection orchestrator, sockets and TLS are deliberately absent; a
// driver feeds bytes into the frame codec, routes frames into streams, and
// consumes the events they emit.
package h2wire
