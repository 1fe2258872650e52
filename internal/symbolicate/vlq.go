package symbolicate

import (
	"errors"
	"fmt"
	"strings"
)

// Base64 VLQ as used by the source map mappings field: each character
// carries 6 bits, bit 5 (0x20) chains to the next character, and the
// least-significant bit of the assembled value is the sign flag.

const (
	vlqBaseShift      = 5
	vlqBase           = 1 << vlqBaseShift
	vlqBaseMask       = vlqBase - 1
	vlqContinuation   = vlqBase
	vlqMaxDecodeShift = 35
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Reverse = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		table[base64Alphabet[i]] = int8(i)
	}
	return table
}()

// DecodeVLQ decodes every value packed into one mappings segment.
// "AAAA" yields [0 0 0 0].
func DecodeVLQ(segment string) ([]int, error) {
	if segment == "" {
		return nil, errors.New("empty vlq segment")
	}

	values := make([]int, 0, 5)
	value := 0
	shift := uint(0)

	for i := 0; i < len(segment); i++ {
		digit := base64Reverse[segment[i]]
		if digit < 0 {
			return nil, fmt.Errorf("invalid base64 character %q at offset %d", segment[i], i)
		}
		value |= int(digit&vlqBaseMask) << shift
		if digit&vlqContinuation != 0 {
			shift += vlqBaseShift
			// Anything longer than 7 characters cannot come from a
			// 32-bit column or line; treat it as corrupt input.
			if shift > vlqMaxDecodeShift {
				return nil, errors.New("vlq value overflows")
			}
			continue
		}
		values = append(values, fromVLQSigned(value))
		value = 0
		shift = 0
	}

	if shift != 0 {
		return nil, errors.New("vlq segment ends mid-value")
	}
	return values, nil
}

// EncodeVLQ renders one signed value in Base64 VLQ form.
func EncodeVLQ(value int) string {
	v := toVLQSigned(value)

	var b strings.Builder
	for {
		digit := v & vlqBaseMask
		v >>= vlqBaseShift
		if v > 0 {
			digit |= vlqContinuation
		}
		b.WriteByte(base64Alphabet[digit])
		if v == 0 {
			return b.String()
		}
	}
}

func fromVLQSigned(v int) int {
	negative := v&1 != 0
	v >>= 1
	if negative {
		return -v
	}
	return v
}

func toVLQSigned(v int) int {
	if v < 0 {
		return (-v << 1) | 1
	}
	return v << 1
}
