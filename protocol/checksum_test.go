package protocol

import "testing"

func TestChecksumCheckValue(t *testing.T) {
	// Catalogue check value for CRC-16/MCRF4XX
	got := Checksum([]byte("123456789"))
	if got != 0x6F91 {
		t.Errorf("Checksum(123456789) = 0x%04X, want 0x6F91", got)
	}
}

func TestChecksumEmpty(t *testing.T) {
	if got := Checksum(nil); got != 0xFFFF {
		t.Errorf("Checksum(nil) = 0x%04X, want 0xFFFF", got)
	}
}

func TestChecksumIncremental(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	crc := ChecksumInit()
	crc = ChecksumUpdate(crc, data[:3])
	crc = ChecksumUpdate(crc, data[3:])
	crc = ChecksumComplete(crc)

	if want := Checksum(data); crc != want {
		t.Errorf("incremental checksum 0x%04X, one-shot 0x%04X", crc, want)
	}
}

func TestChecksumDifferent(t *testing.T) {
	if Checksum([]byte{0x01, 0x02, 0x03}) == Checksum([]byte{0x01, 0x02, 0x04}) {
		t.Error("checksum collision on single-bit difference")
	}
}
