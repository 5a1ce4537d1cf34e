package wasmlink

import "testing"

func TestFatPtrPackUnpack(t *testing.T) {
	tests := []struct {
		name   string
		offset uint32
		length uint32
	}{
		{"zero", 0, 0},
		{"small", 16, 5},
		{"page boundary", 65536, 1024},
		{"max offset", 0xFFFFFFFF, 1},
		{"max length", 1, 0xFFFFFFFF},
		{"both max", 0xFFFFFFFF, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFatPtr(tt.offset, tt.length)
			if p.Offset() != tt.offset {
				t.Errorf("Offset() = %d, want %d", p.Offset(), tt.offset)
			}
			if p.Len() != tt.length {
				t.Errorf("Len() = %d, want %d", p.Len(), tt.length)
			}
		})
	}
}

func TestFatPtrEmpty(t *testing.T) {
	if !NewFatPtr(0, 0).IsEmpty() {
		t.Error("zero FatPtr should be empty")
	}
	// A non-zero offset with zero length is still a valid empty value.
	if !NewFatPtr(128, 0).IsEmpty() {
		t.Error("zero-length FatPtr should be empty")
	}
	if NewFatPtr(0, 1).IsEmpty() {
		t.Error("non-empty FatPtr reported empty")
	}
}
