package emvqr

import (
	"fmt"
	"strings"
)

// CRC 필드 ID와 길이. 체크섬 입력에는 "6304"까지 포함되고 값 4자리는 제외됩니다.
const (
	crcFieldID     = "63"
	crcFieldLength = "04"
	crcFieldPrefix = crcFieldID + crcFieldLength
	crcValueLength = 4
)

// CRC16 computes CRC-16/CCITT-FALSE: poly 0x1021, init 0xFFFF,
// no input/output reflection, no final xor, MSB first.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// FormatCRC renders a checksum as 4 uppercase hex digits.
func FormatCRC(crc uint16) string {
	return fmt.Sprintf("%04X", crc)
}

// AppendCRC terminates body with the CRC field. body must not already
// contain the CRC field.
func AppendCRC(body string) string {
	withPrefix := body + crcFieldPrefix
	return withPrefix + FormatCRC(CRC16([]byte(withPrefix)))
}

// Checksum returns the checksum a payload should carry, computed over
// everything except its last 4 characters.
func Checksum(payload string) (string, error) {
	if len(payload) < len(crcFieldPrefix)+crcValueLength {
		return "", ErrPayloadTooShort
	}
	covered := payload[:len(payload)-crcValueLength]
	if !strings.HasSuffix(covered, crcFieldPrefix) {
		return "", ErrMissingCRCField
	}
	return FormatCRC(CRC16([]byte(covered))), nil
}

// Validate recomputes the trailing checksum and compares it with the one
// carried by the payload.
func Validate(payload string) error {
	expected, err := Checksum(payload)
	if err != nil {
		return err
	}
	got := payload[len(payload)-crcValueLength:]
	if !strings.EqualFold(got, expected) {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksumMismatch, got, expected)
	}
	return nil
}
