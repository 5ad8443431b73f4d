package protocol

import "github.com/sigurn/crc16"

// The READ_CHECKSUM reply uses CRC-16/MCRF4XX (poly 0x1021 reflected,
// init 0xFFFF, no final xor), the same CRC the Klipper wire framing uses.
var checksumTable = crc16.MakeTable(crc16.CRC16_MCRF4XX)

// Checksum calculates the CRC-16 of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, checksumTable)
}

// ChecksumInit returns the initial value for an incremental checksum.
func ChecksumInit() uint16 {
	return crc16.Init(checksumTable)
}

// ChecksumUpdate folds data into a running checksum.
func ChecksumUpdate(crc uint16, data []byte) uint16 {
	return crc16.Update(crc, data, checksumTable)
}

// ChecksumComplete finalizes a running checksum.
func ChecksumComplete(crc uint16) uint16 {
	return crc16.Complete(crc, checksumTable)
}
