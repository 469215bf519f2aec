// Package prefix implements the P abstraction over prefixes: equality and
// ordering, a longest-prefix-match map keyed by P, and a total
// from-integer constructor. Three families satisfy the contract:
// SinglePrefix (one fixed prefix), SetPrefix (a disjoint set, exact match
// only) and IPv4Prefix (a real CIDR prefix with LPM, backed by
// github.com/gaissmai/bart).
package prefix

import "fmt"

// P is the contract every prefix family must satisfy. Implementations are
// comparable so they can key a Go map directly when exact match suffices.
type P interface {
	comparable
	fmt.Stringer
	// Less gives P a total order so route selection ties can be broken
	// deterministically when a prefix is used as part of a tie-break key.
	Less(other P) bool
}

// FromIndex builds the n-th prefix of a family in a total, deterministic
// way. Used by topology generators and tests that need to mint prefixes
// without caring about the concrete family.
type FromIndex[T P] func(n uint64) T

// Map is the longest-prefix-match container every prefix family exposes.
// For families with no notion of containment (SinglePrefix, SetPrefix)
// GetLPM degenerates to exact Get.
type Map[T P, V any] interface {
	Insert(p T, v V)
	Remove(p T)
	Get(p T) (V, bool)
	GetLPM(p T) (T, V, bool)
	Keys() []T
	Len() int
}
