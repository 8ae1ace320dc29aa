package util

import (
	"testing"
)

func TestChecksumIPv4Header(t *testing.T) {
	// a known header from RFC 1071 discussions, checksum field zeroed
	header := []byte{
		0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00,
		0x40, 0x11, 0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01,
		0xc0, 0xa8, 0x00, 0xc7,
	}
	sum := Checksum(header, 0)
	if sum != 0xb861 {
		t.Fatalf("actual %04x", sum)
	}
	header[10], header[11] = byte(sum>>8), byte(sum)
	if v := Checksum(header, 0); v != 0 {
		t.Fatalf("verify actual %04x", v)
	}
}

func TestChecksumOddLength(t *testing.T) {
	even := Checksum([]byte{0x01, 0x02, 0x03, 0x00}, 0)
	odd := Checksum([]byte{0x01, 0x02, 0x03}, 0)
	if even != odd {
		t.Fatalf("odd length must be zero padded: %04x != %04x", odd, even)
	}
}

func TestPseudoHeaderSum(t *testing.T) {
	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}
	sum := PseudoHeaderSum(src, dst, 6, 20)
	// 0x0a00 + 0x0001 + 0x0a00 + 0x0002 + 6 + 20
	if sum != 0x141d {
		t.Fatalf("actual %x", sum)
	}
}
