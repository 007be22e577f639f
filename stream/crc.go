package stream

import (
	"hash/crc32"
)

var crcTable = crc32.MakeTable(crc32.IEEE)

// ComputeCRC computes the CRC-32 (IEEE) of the given bytes. Frames carry
// the CRC of the stored payload, so it is computed after compression on
// the write side and verified before decompression on the read side.
func ComputeCRC(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// VerifyCRC verifies that the CRC matches.
func VerifyCRC(data []byte, expected uint32) bool {
	return ComputeCRC(data) == expected
}
