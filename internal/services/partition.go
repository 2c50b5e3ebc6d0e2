package services

import "strconv"

// LockPartition identifies one of N disjoint, independently claimable
// subsets of pending work rows. The persisted lock name (prefix + decimal
// index) is a serialization detail of this value.
type LockPartition struct {
	Prefix string
	Index  int
}

// Name returns the lock name under which this partition is claimed and
// under which its work rows are filed.
func (p LockPartition) Name() string {
	return p.Prefix + strconv.Itoa(p.Index)
}

// Partitions returns all n partitions for prefix, rotated to begin at
// start. Rotating by a fresh random start each cycle keeps nodes from
// piling onto low-numbered partitions after restarts.
func Partitions(prefix string, n, start int) []LockPartition {
	if n <= 0 {
		return nil
	}
	parts := make([]LockPartition, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, LockPartition{Prefix: prefix, Index: (start + i) % n})
	}
	return parts
}
