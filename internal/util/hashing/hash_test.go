package hashing

import "testing"

func TestBucket(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		// sha256("hello") starts with 0x2cf24dba5fb0a30e.
		{"hello", 10, int(uint64(0x2cf24dba5fb0a30e) % 10)},
		{"hello", 1, 0},
		{"anything", 0, 0},
		{"anything", -3, 0},
	}

	for _, tt := range tests {
		got := Bucket(tt.name, tt.n)
		if got != tt.want {
			t.Errorf("Bucket(%q, %d) = %d, want %d", tt.name, tt.n, got, tt.want)
		}
	}
}

func TestBucketStableAndInRange(t *testing.T) {
	for _, name := range []string{"tool.bin", "tool.tar.gz", "tool_amd64.deb", ""} {
		first := Bucket(name, 10)
		if first < 0 || first >= 10 {
			t.Fatalf("Bucket(%q) = %d out of range", name, first)
		}
		if again := Bucket(name, 10); again != first {
			t.Errorf("Bucket(%q) not stable: %d then %d", name, first, again)
		}
	}
}
