package rsync

import "encoding/binary"

// Magic numbers, shared byte-for-byte with librsync where the algorithm
// overlaps. The BLAKE3 signature magic is an extension of this library and
// is understood only by compatible peers.
const (
	sigMagicMD4    uint32 = 0x72730136
	sigMagicBlake3 uint32 = 0x72730137
	deltaMagic     uint32 = 0x72730236
)

// Delta command opcodes. LITERAL lengths 1..64 are folded into the opcode
// byte itself; longer literals and all COPY operands carry 1, 2, 4 or 8
// byte big-endian operands chosen by width class.
const (
	opEnd        = 0x00
	opLiteral1   = 0x01 // + (len-1), len in [1,64]
	opLiteral64  = 0x40
	opLiteralN1  = 0x41 // 1-byte length operand
	opLiteralN2  = 0x42 // 2-byte length operand
	opLiteralN4  = 0x43 // 4-byte length operand
	opLiteralN8  = 0x44 // 8-byte length operand
	opCopyN1N1   = 0x45 // base of the 4x4 COPY opcode block
	opCopyN8N8   = 0x54 // widest COPY opcode
)

// widthClass returns the index (0..3) of the narrowest of {1,2,4,8} bytes
// that can hold v, matching the canonical "smallest width that fits" rule
// encoders must obey.
func widthClass(v uint64) int {
	switch {
	case v <= 0xff:
		return 0
	case v <= 0xffff:
		return 1
	case v <= 0xffffffff:
		return 2
	default:
		return 3
	}
}

// widthBytes is the byte width for each width class, in class order.
var widthBytes = [4]int{1, 2, 4, 8}

// putOperand writes v into buf using exactly width bytes, big-endian.
func putOperand(buf []byte, width int, v uint64) {
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(buf, v)
	}
}

// getOperand reads a big-endian unsigned operand of the given byte width.
func getOperand(buf []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(buf))
	case 4:
		return uint64(binary.BigEndian.Uint32(buf))
	case 8:
		return binary.BigEndian.Uint64(buf)
	}
	return 0
}

// encodeLiteralHeader appends the opcode (and, for lengths above 64, the
// length operand) for a single LITERAL command of the given length to buf.
// The literal payload itself is appended separately by the caller. n must
// satisfy 1 <= n <= maxLiteralChunk.
func encodeLiteralHeader(buf []byte, n uint64) []byte {
	switch {
	case n == 0:
		panic("rsync: zero-length literal")
	case n <= 64:
		return append(buf, byte(opLiteral1+n-1))
	default:
		w := widthClass(n)
		buf = append(buf, byte(opLiteralN1+w))
		operand := make([]byte, widthBytes[w])
		putOperand(operand, widthBytes[w], n)
		return append(buf, operand...)
	}
}

// encodeCopy appends a COPY command for offset/len to buf.
func encodeCopy(buf []byte, offset, length uint64) []byte {
	if length == 0 {
		panic("rsync: zero-length copy")
	}
	ow := widthClass(offset)
	lw := widthClass(length)
	buf = append(buf, byte(opCopyN1N1+ow*4+lw))
	op := make([]byte, widthBytes[ow])
	putOperand(op, widthBytes[ow], offset)
	buf = append(buf, op...)
	op = make([]byte, widthBytes[lw])
	putOperand(op, widthBytes[lw], length)
	return append(buf, op...)
}
