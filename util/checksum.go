package util

// Sum adds data to a running ones' complement sum without folding the carries.
// Only the last chunk passed to Sum may have an odd length.
func Sum(data []byte, init uint32) uint32 {
	sum := init
	size := len(data)
	for i := 0; i < size-1; i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if size&1 != 0 {
		sum += uint32(data[size-1]) << 8
	}
	return sum
}

// Checksum returns the internet checksum (RFC 1071) of data, starting from init.
// Running it over a header that already carries a correct checksum yields zero.
func Checksum(data []byte, init uint32) uint16 {
	sum := Sum(data, init)
	for (sum >> 16) > 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^(uint16(sum))
}

// PseudoHeaderSum is the partial sum of the IPv4 pseudo header used by TCP and UDP.
func PseudoHeaderSum(src, dst [4]byte, protocol uint8, length int) uint32 {
	sum := Sum(src[:], 0)
	sum = Sum(dst[:], sum)
	sum += uint32(protocol)
	sum += uint32(length)
	return sum
}
