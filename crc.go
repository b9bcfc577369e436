package jls

import "hash/crc32"

// crc32cTable is the Castagnoli polynomial table. hash/crc32 dispatches
// updates against this table to the SSE4.2/ARM64 CRC32 instruction when the
// host supports it, and falls back to a software implementation otherwise,
// satisfying the "hardware acceleration permitted, software fallback
// mandatory" requirement without a third-party CRC32C package.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// checksumCRC32C returns the CRC32C checksum of p.
func checksumCRC32C(p []byte) uint32 {
	return crc32.Checksum(p, crc32cTable)
}
