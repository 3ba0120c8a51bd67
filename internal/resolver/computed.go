package resolver

import "go/types"

// Kind is the closed set of packing shapes a member can resolve to.
type Kind int

const (
	KindBoolean Kind = iota + 1
	KindInteger
	KindPointer
	KindString
	KindBuffer
	KindStructure
	KindUnionExternal
	KindUnionInternal
	// KindDefaulted is an omitted member that reads back as its default.
	KindDefaulted
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindPointer:
		return "pointer"
	case KindString:
		return "string"
	case KindBuffer:
		return "buffer"
	case KindStructure:
		return "structure"
	case KindUnionExternal:
		return "union_external_tag"
	case KindUnionInternal:
		return "union_internal_tag"
	case KindDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// IsLeaf reports whether k is serialized by a single statement pair.
func (k Kind) IsLeaf() bool {
	switch k {
	case KindBoolean, KindInteger, KindPointer, KindString, KindBuffer, KindDefaulted:
		return true
	}
	return false
}

// IsUnion reports whether k is a tagged union.
func (k Kind) IsUnion() bool {
	return k == KindUnionExternal || k == KindUnionInternal
}

// Computed is the final, contradiction-free option set of one member.
// Only the fields belonging to Kind are meaningful.
type Computed struct {
	Kind Kind

	// integer, pointer
	Bitcount int
	// integer: values are stored as v-Min unless Signed is set, in which
	// case they are stored as two's complement of Bitcount bits.
	Min    int64
	Max    int64
	Signed bool

	// string
	Length     int
	Terminated bool

	// buffer
	Bytecount int

	// unions
	TagField string

	// Default is the Go expression assigned on read when the member is
	// omitted. It is kept for the report on serialized members.
	Default string

	Transform *ResolvedTransform

	// ValueType is the type the options describe: the packed type when a
	// transform is active, the member's innermost type otherwise.
	ValueType types.Type
}

// ResolvedTransform is a validated transform pair.
type ResolvedTransform struct {
	PrePack    string
	PostUnpack string
	// InType is the member's own innermost type.
	InType types.Type
	// PackedType is the type actually serialized.
	PackedType types.Type
}

// LeafBits returns the packed size of one leaf value. It is zero for
// structures and unions, whose size depends on their members.
func (c Computed) LeafBits() int {
	switch c.Kind {
	case KindBoolean:
		return 1
	case KindInteger, KindPointer:
		return c.Bitcount
	case KindString:
		return c.Length * 8
	case KindBuffer:
		return c.Bytecount * 8
	default:
		return 0
	}
}

// Resolution is the outcome of resolving one member.
type Resolution struct {
	// Omit is set for members left out of the packed data. An omitted
	// member with a default still resolves to KindDefaulted.
	Omit bool
	// Extents lists the array ranks stripped from the member, outermost
	// first. Strings and buffers keep the ranks they consume.
	Extents []int
	// InnerType is the member's type once Extents are stripped.
	InnerType types.Type
	Options   Computed
	// When lists the tag values selecting this member as a union arm.
	When []int64
}

// Defaulted reports whether an omitted member reads back as a default.
func (r Resolution) Defaulted() bool {
	return r.Omit && r.Options.Kind == KindDefaulted
}
