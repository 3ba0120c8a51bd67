// Package sector distributes described values across fixed-capacity
// sectors and collects the statements that serialize each sector.
package sector

import (
	"github.com/seitarof/gen-bitpack/internal/descriptor"
)

// ItemKind says how a placed item is serialized.
type ItemKind int

const (
	// ItemLeaf is one boolean, integer, pointer, string or buffer.
	ItemLeaf ItemKind = iota + 1
	// ItemRun is a contiguous run of array elements.
	ItemRun
	// ItemWhole is a whole struct.
	ItemWhole
	// ItemUnion is a whole tagged union.
	ItemUnion
)

func (k ItemKind) String() string {
	switch k {
	case ItemLeaf:
		return "leaf"
	case ItemRun:
		return "run"
	case ItemWhole:
		return "whole"
	case ItemUnion:
		return "union"
	default:
		return "unknown"
	}
}

// Item is one value placed in a sector.
type Item struct {
	Kind   ItemKind
	Target Target
	// View is the placed value; for runs, the array whose elements the
	// target's span selects.
	View descriptor.View
	Bits int
}

// Sector is one storage region and the statements serializing it.
type Sector struct {
	ID       int
	Capacity int
	Used     int
	Items    []Item
	Read     []string
	Save     []string
}

// Remaining returns the free bits.
func (s *Sector) Remaining() int {
	return s.Capacity - s.Used
}

// Empty reports whether nothing was placed.
func (s *Sector) Empty() bool {
	return len(s.Items) == 0
}

// Backend renders a placed item as read and save statements.
type Backend interface {
	Emit(item Item) (read, save []string, err error)
}

// Layout is the outcome of one allocation pass.
type Layout struct {
	// Sectors holds every configured sector, including empty ones.
	Sectors []*Sector
	// Wholes lists the named structs placed whole, in first-use order.
	Wholes []*descriptor.Struct
}
