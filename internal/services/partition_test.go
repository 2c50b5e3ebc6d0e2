package services

import "testing"

func TestPartitionName(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		index    int
		expected string
	}{
		{"group zero", "group_lock_", 0, "group_lock_0"},
		{"email nine", "email_lock_", 9, "email_lock_9"},
		{"double digits", "group_lock_", 12, "group_lock_12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := LockPartition{Prefix: tt.prefix, Index: tt.index}
			if got := p.Name(); got != tt.expected {
				t.Errorf("Name() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestPartitionsRotation(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		start    int
		expected []int
	}{
		{"start at zero", 4, 0, []int{0, 1, 2, 3}},
		{"start mid", 4, 2, []int{2, 3, 0, 1}},
		{"start wraps", 3, 5, []int{2, 0, 1}},
		{"single partition", 1, 0, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := Partitions("group_lock_", tt.n, tt.start)
			if len(parts) != len(tt.expected) {
				t.Fatalf("got %d partitions, expected %d", len(parts), len(tt.expected))
			}
			for i, p := range parts {
				if p.Index != tt.expected[i] {
					t.Errorf("partition[%d].Index = %d, expected %d", i, p.Index, tt.expected[i])
				}
			}
		})
	}
}

func TestPartitionsEmpty(t *testing.T) {
	if parts := Partitions("group_lock_", 0, 0); parts != nil {
		t.Errorf("Partitions with n=0 should be nil, got %v", parts)
	}
	if parts := Partitions("group_lock_", -1, 0); parts != nil {
		t.Errorf("Partitions with n<0 should be nil, got %v", parts)
	}
}
