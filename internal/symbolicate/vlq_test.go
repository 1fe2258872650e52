package symbolicate

import (
	"reflect"
	"testing"
)

func TestDecodeVLQKnownFixtures(t *testing.T) {
	tests := []struct {
		segment string
		want    []int
	}{
		{"AAAA", []int{0, 0, 0, 0}},
		{"AAgBC", []int{0, 0, 16, 1}},
		{"A", []int{0}},
		{"C", []int{1}},
		{"D", []int{-1}},
		{"2H", []int{123}},
		{"4CAWEA", []int{44, 0, 11, 2, 0}},
	}

	for _, tt := range tests {
		got, err := DecodeVLQ(tt.segment)
		if err != nil {
			t.Fatalf("DecodeVLQ(%q) error = %v", tt.segment, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("DecodeVLQ(%q) = %v, want %v", tt.segment, got, tt.want)
		}
	}
}

func TestVLQRoundTripWideRange(t *testing.T) {
	values := []int{0, 1, -1, 15, -15, 16, -16, 31, 32, 1 << 20, -(1 << 20), 1<<31 - 1, -(1<<31 - 1)}
	for v := -100000; v <= 100000; v += 997 {
		values = append(values, v)
	}

	for _, v := range values {
		encoded := EncodeVLQ(v)
		decoded, err := DecodeVLQ(encoded)
		if err != nil {
			t.Fatalf("DecodeVLQ(EncodeVLQ(%d)) error = %v", v, err)
		}
		if len(decoded) != 1 || decoded[0] != v {
			t.Fatalf("round trip %d -> %q -> %v", v, encoded, decoded)
		}
	}
}

func TestDecodeVLQRejectsCorruptInput(t *testing.T) {
	for _, segment := range []string{"", "!", "A!", "g", "ggggggggg"} {
		if _, err := DecodeVLQ(segment); err == nil {
			t.Fatalf("DecodeVLQ(%q) expected error", segment)
		}
	}
}
