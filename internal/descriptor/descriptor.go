// Package descriptor flattens struct types into the ordered member model
// the sector allocator walks.
package descriptor

import (
	"go/types"

	"github.com/seitarof/gen-bitpack/internal/resolver"
)

// Struct describes one struct type. Member order is declaration order.
type Struct struct {
	Type types.Type
	// ID identifies the type across a run: full package path and name for
	// named types, the full struct literal for anonymous ones.
	ID string
	// Name is the declared name, empty for anonymous structs.
	Name    string
	Members []*Member
	Bits    int
}

// Named reports whether the struct has a declared name and therefore
// its own whole-struct functions.
func (s *Struct) Named() bool {
	return s.Name != ""
}

// Member returns the member with the given field name.
func (s *Struct) Member(name string) (*Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Member describes one non-omitted field.
type Member struct {
	Name string
	// Index is the field's position among all fields of its struct.
	Index     int
	Type      types.Type
	InnerType types.Type
	Extents   []int
	Options   resolver.Computed
	// Struct describes InnerType, or the packed type under a transform,
	// when Options.Kind is KindStructure.
	Struct *Struct
	// Union is set for union kinds.
	Union *Union
	// When lists the selectors of a union arm.
	When []int64
}

// Kind returns the resolved packing shape.
func (m *Member) Kind() resolver.Kind {
	return m.Options.Kind
}

// ElemBits returns the packed size of one innermost value.
func (m *Member) ElemBits() int {
	switch {
	case m.Struct != nil:
		return m.Struct.Bits
	case m.Union != nil:
		return m.Union.Bits
	default:
		return m.Options.LeafBits()
	}
}

// SizeInBits returns the packed size of the whole member.
func (m *Member) SizeInBits() int {
	return m.View().SizeInBits()
}

// Count returns the number of innermost values in the member.
func (m *Member) Count() int {
	n := 1
	for _, e := range m.Extents {
		n *= e
	}
	return n
}

// View returns a cursor over the member's array ranks.
func (m *Member) View() View {
	return View{Member: m}
}

// View steps through a member one array rank at a time.
type View struct {
	Member *Member
	Rank   int
}

// IsArray reports whether ranks remain.
func (v View) IsArray() bool {
	return v.Rank < len(v.Member.Extents)
}

// Extent returns the length of the current rank.
func (v View) Extent() int {
	if !v.IsArray() {
		return 1
	}
	return v.Member.Extents[v.Rank]
}

// Descend moves to the element of the current rank.
func (v View) Descend() View {
	return View{Member: v.Member, Rank: v.Rank + 1}
}

// ElemBits returns the size of one element of the current rank, or of
// the value itself when no ranks remain.
func (v View) ElemBits() int {
	bits := v.Member.ElemBits()
	if !v.IsArray() {
		return bits
	}
	for _, e := range v.Member.Extents[v.Rank+1:] {
		bits *= e
	}
	return bits
}

// SizeInBits returns the size of everything the view covers.
func (v View) SizeInBits() int {
	if !v.IsArray() {
		return v.ElemBits()
	}
	return v.Extent() * v.ElemBits()
}

// Union describes the arms of a tagged union member.
type Union struct {
	Type     types.Type
	TagField string
	// TagPath reaches an internal tag from an arm value, through any
	// embedded structs.
	TagPath  string
	Internal bool
	// Arms are the non-omitted arms in declaration order.
	Arms []*Member
	// Tag is the sibling holding an external tag.
	Tag *Member
	// Shared holds, per arm, the number of leading members up to and
	// including an internal tag. The shared prefix is serialized once
	// from Arms[0].
	Shared []int
	// Bits is the fixed size the union occupies whatever arm is active.
	Bits int
}

// SharedMembers returns the prefix members of arm i.
func (u *Union) SharedMembers(i int) []*Member {
	if !u.Internal {
		return nil
	}
	return u.Arms[i].Struct.Members[:u.Shared[i]]
}

// RestMembers returns the members of arm i past the shared prefix.
func (u *Union) RestMembers(i int) []*Member {
	if !u.Internal {
		return nil
	}
	return u.Arms[i].Struct.Members[u.Shared[i]:]
}

// SharedBits returns the size of the shared prefix.
func (u *Union) SharedBits() int {
	if !u.Internal || len(u.Arms) == 0 {
		return 0
	}
	return sumBits(u.SharedMembers(0))
}

// ArmBits returns the size arm i contributes past the shared prefix.
func (u *Union) ArmBits(i int) int {
	if !u.Internal {
		return u.Arms[i].SizeInBits()
	}
	return sumBits(u.RestMembers(i))
}

func sumBits(members []*Member) int {
	bits := 0
	for _, m := range members {
		bits += m.SizeInBits()
	}
	return bits
}
