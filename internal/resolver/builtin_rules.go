package resolver

import (
	"go/types"
	"math"
	"math/bits"

	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/matcher"
	"github.com/seitarof/gen-bitpack/internal/parser"
)

// DefaultRules returns built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		&FloatRule{},
		&BufferRule{},
		&StringRule{},
		&BooleanRule{},
		&PointerRule{},
		&EnumRule{},
		&IntegerRule{},
		&UnionRule{Prefix: matcher.NewPrefixMatcher(), Locator: matcher.NewTagLocator()},
		&StructRule{},
	}
}

// BufferRule: value explicitly marked as an opaque buffer.
type BufferRule struct{}

func (r *BufferRule) Name() string { return "buffer" }

func (r *BufferRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	if !in.Req.Buffer {
		return Computed{}, false, nil
	}
	if _, ok := in.Type.Underlying().(*types.Array); !ok {
		return Computed{}, false, arrayOptionOnScalar(ctx, in, ShapeBuffer)
	}
	return Computed{Kind: KindBuffer, Bytecount: int(ctx.Sizes().Sizeof(in.Type))}, true, nil
}

// FloatRule: floating-point value, stored as its native bytes.
type FloatRule struct{}

func (r *FloatRule) Name() string { return "float" }

func (r *FloatRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	b, ok := in.Type.Underlying().(*types.Basic)
	if !ok || b.Info()&types.IsFloat == 0 {
		return Computed{}, false, nil
	}
	if shape, _ := in.Req.Shape(); shape != ShapeNone && shape != ShapeBuffer {
		return Computed{}, false, diag.Configuration(diag.ReasonConflictingShapes, in.Subject,
			"%s options cannot apply to %s; transform it instead", shape, ctx.TypeString(in.Type))
	}
	return Computed{Kind: KindBuffer, Bytecount: int(ctx.Sizes().Sizeof(in.Type))}, true, nil
}

// StringRule: character array, either requested as a string or made of
// the configured string character type.
type StringRule struct{}

func (r *StringRule) Name() string { return "string" }

func (r *StringRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	shape, _ := in.Req.Shape()
	arr, isArray := in.Type.Underlying().(*types.Array)
	if shape != ShapeString && !(isArray && ctx.isStringChar(arr.Elem())) {
		return Computed{}, false, nil
	}
	if !isArray {
		return Computed{}, false, arrayOptionOnScalar(ctx, in, ShapeString)
	}
	if b, ok := arr.Elem().Underlying().(*types.Basic); !ok || b.Kind() != types.Uint8 {
		return Computed{}, false, diag.Configuration(diag.ReasonUnsupportedType, in.Subject,
			"string characters must have underlying type uint8 (seen: %s)", ctx.TypeString(arr.Elem()))
	}

	terminated := in.Req.terminated()
	avail := int(arr.Len())
	if terminated {
		avail--
	}
	length := avail
	if in.Req.Length != nil {
		length = *in.Req.Length
		if length > avail {
			b := diag.New(diag.KindConfiguration, diag.ReasonStringTooLong).
				Subject(in.Subject).
				Detailf("length %d does not fit in %s", length, ctx.TypeString(in.Type))
			if terminated {
				b.Note("one element is reserved for the terminator")
			}
			return Computed{}, false, b.Build()
		}
	}
	if length <= 0 {
		return Computed{}, false, diag.Configuration(diag.ReasonInvalidBitcount, in.Subject,
			"string length must be positive (seen: %d)", length)
	}
	return Computed{Kind: KindString, Length: length, Terminated: terminated}, true, nil
}

// BooleanRule: bool, or the configured boolean type.
type BooleanRule struct{}

func (r *BooleanRule) Name() string { return "boolean" }

func (r *BooleanRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	b, isBasic := in.Type.Underlying().(*types.Basic)
	isBool := isBasic && b.Info()&types.IsBoolean != 0
	if !isBool && !ctx.matchesTypeName(in.Type, ctx.Global.BoolType) {
		return Computed{}, false, nil
	}
	shape, _ := in.Req.Shape()
	if shape != ShapeIntegral {
		return Computed{Kind: KindBoolean}, true, nil
	}
	if !isBool {
		// an integer-backed boolean type with integral options packs as an integer
		return Computed{}, false, nil
	}
	if in.Req.Min != nil || in.Req.Max != nil || in.Req.Bits == nil || *in.Req.Bits != 1 {
		return Computed{}, false, diag.Configuration(diag.ReasonInvalidBitcount, in.Subject,
			"booleans are always packed as one bit")
	}
	return Computed{Kind: KindBoolean}, true, nil
}

// PointerRule: uintptr, stored at the platform pointer width.
type PointerRule struct{}

func (r *PointerRule) Name() string { return "pointer" }

func (r *PointerRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	b, ok := in.Type.Underlying().(*types.Basic)
	if !ok || b.Kind() != types.Uintptr {
		return Computed{}, false, nil
	}
	natural := int(ctx.Sizes().Sizeof(in.Type)) * 8
	if in.Req.Min != nil || in.Req.Max != nil || (in.Req.Bits != nil && *in.Req.Bits != natural) {
		return Computed{}, false, diag.Configuration(diag.ReasonInvalidBitcount, in.Subject,
			"pointers are always packed at %d bits", natural)
	}
	return Computed{Kind: KindPointer, Bitcount: natural}, true, nil
}

// EnumRule: named integer type with declared constants.
type EnumRule struct{}

func (r *EnumRule) Name() string { return "enum" }

func (r *EnumRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	if ctx.Pkg == nil || !isInteger(in.Type) {
		return Computed{}, false, nil
	}
	values := ctx.Pkg.EnumValues(in.Type)
	if len(values) == 0 {
		return Computed{}, false, nil
	}
	c, err := integerOptions(ctx, in, values)
	return c, err == nil, err
}

// IntegerRule: any other integer type.
type IntegerRule struct{}

func (r *IntegerRule) Name() string { return "integer" }

func (r *IntegerRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	if !isInteger(in.Type) {
		return Computed{}, false, nil
	}
	c, err := integerOptions(ctx, in, nil)
	return c, err == nil, err
}

// UnionRule: struct declared with the union directive.
type UnionRule struct {
	Prefix  matcher.PrefixMatcher
	Locator matcher.TagLocator
}

func (r *UnionRule) Name() string { return "union" }

func (r *UnionRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	st, ok := in.Type.Underlying().(*types.Struct)
	if !ok || !in.Req.Union {
		return Computed{}, false, nil
	}
	if shape, _ := in.Req.Shape(); shape != ShapeNone {
		return Computed{}, false, diag.Configuration(diag.ReasonConflictingShapes, in.Subject,
			"%s options cannot apply to a union", shape)
	}
	switch {
	case in.Req.Tag != "" && in.Req.InternalTag != "":
		return Computed{}, false, diag.Configuration(diag.ReasonConflictingShapes, in.Subject,
			"tag and internal_tag cannot be combined")
	case in.Req.Tag != "":
		return Computed{Kind: KindUnionExternal, TagField: in.Req.Tag}, true, nil
	case in.Req.InternalTag != "":
		if err := r.validateInternalTag(ctx, in.Subject, st, in.Req.InternalTag); err != nil {
			return Computed{}, false, err
		}
		return Computed{Kind: KindUnionInternal, TagField: in.Req.InternalTag}, true, nil
	default:
		return Computed{}, false, diag.TagValidation(diag.ReasonExternalTagMissing, in.Subject,
			"union %s needs a tag or internal_tag option", ctx.TypeString(in.Type))
	}
}

// validateInternalTag requires the tag to sit in the leading fields that
// every non-omitted arm shares.
func (r *UnionRule) validateInternalTag(ctx *Context, subject string, st *types.Struct, tag string) error {
	var qualifier types.Qualifier
	if ctx.Pkg != nil {
		qualifier = ctx.Pkg.Qualifier
	}
	var lists [][]parser.FieldInfo
	for i := 0; i < st.NumFields(); i++ {
		arm := st.Field(i)
		req, err := ParseTag(st.Tag(i), subject+"."+arm.Name())
		if err != nil {
			return err
		}
		if req.Omit {
			continue
		}
		armStruct, ok := arm.Type().Underlying().(*types.Struct)
		if !ok {
			return diag.TagValidation(diag.ReasonUnionMemberNotStruct, subject,
				"arm %s has type %s; internally tagged arms must be structs",
				arm.Name(), ctx.TypeString(arm.Type()))
		}
		lists = append(lists, parser.FlattenFields(armStruct, qualifier))
	}

	prefix := r.Prefix.CommonPrefix(lists)
	if len(prefix) == 0 {
		return diag.TagValidation(diag.ReasonUnionNoCommonFields, subject,
			"union arms have no fields in common")
	}
	if _, ok := r.Locator.Locate(prefix, tag); !ok {
		return diag.New(diag.KindTagValidation, diag.ReasonUnionTagNotShared).
			Subject(subject).
			Detailf("tag %q not found among shared fields", tag).
			Note("the arms share %d leading field(s)", len(prefix)).
			Build()
	}
	return nil
}

// StructRule: any other struct.
type StructRule struct{}

func (r *StructRule) Name() string { return "struct" }

func (r *StructRule) Try(ctx *Context, in Input) (Computed, bool, error) {
	if _, ok := in.Type.Underlying().(*types.Struct); !ok {
		return Computed{}, false, nil
	}
	if shape, _ := in.Req.Shape(); shape != ShapeNone {
		return Computed{}, false, diag.Configuration(diag.ReasonConflictingShapes, in.Subject,
			"%s options cannot apply to struct %s", shape, ctx.TypeString(in.Type))
	}
	return Computed{Kind: KindStructure}, true, nil
}

func isInteger(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsInteger != 0 && b.Kind() != types.Uintptr
}

// integerOptions derives bitcount and bounds. Enumerations default to
// the range of their declared values, other integers to their natural
// width.
func integerOptions(ctx *Context, in Input, enum []int64) (Computed, error) {
	req := in.Req
	b := in.Type.Underlying().(*types.Basic)
	natural := int(ctx.Sizes().Sizeof(in.Type)) * 8
	signed := b.Info()&types.IsUnsigned == 0
	typeMin, typeMax := integerBounds(natural, signed)
	if len(enum) > 0 {
		typeMin, typeMax = enum[0], enum[len(enum)-1]
	}

	if req.Min != nil && req.Max != nil && *req.Min > *req.Max {
		return Computed{}, diag.Configuration(diag.ReasonRangeInverted, in.Subject,
			"min %d is greater than max %d", *req.Min, *req.Max)
	}

	c := Computed{Kind: KindInteger}
	switch {
	case req.Bits != nil:
		n := *req.Bits
		if n <= 0 || n > 64 {
			return Computed{}, diag.Configuration(diag.ReasonInvalidBitcount, in.Subject,
				"bitcount must be between 1 and 64 (seen: %d)", n)
		}
		if n > natural {
			ctx.Reporter.Warn(diag.ReasonLargeBitcount, in.Subject,
				"bitcount exceeds the width of "+ctx.TypeString(in.Type))
		}
		c.Bitcount = n
		switch {
		case req.Min != nil:
			c.Min = *req.Min
		case len(enum) > 0:
			c.Min = typeMin
		default:
			c.Signed = signed
		}
		if c.Signed {
			c.Min, c.Max = integerBounds(n, true)
		} else {
			c.Max = spanMax(c.Min, n)
		}
		if req.Max != nil {
			c.Max = *req.Max
			if c.Max < c.Min {
				return Computed{}, diag.Configuration(diag.ReasonRangeInverted, in.Subject,
					"min %d is greater than max %d", c.Min, c.Max)
			}
			if need := bitWidth(c.Min, c.Max); need > n {
				return Computed{}, diag.Configuration(diag.ReasonInvalidBitcount, in.Subject,
					"range %d..%d needs %d bits, only %d requested", c.Min, c.Max, need, n)
			}
		}
	case req.Min != nil || req.Max != nil || len(enum) > 0:
		c.Min, c.Max = typeMin, typeMax
		if req.Min != nil {
			c.Min = *req.Min
		}
		if req.Max != nil {
			c.Max = *req.Max
		}
		if c.Min > c.Max {
			return Computed{}, diag.Configuration(diag.ReasonRangeInverted, in.Subject,
				"min %d is greater than max %d", c.Min, c.Max)
		}
		c.Bitcount = bitWidth(c.Min, c.Max)
	default:
		c.Bitcount = natural
		c.Signed = signed
		c.Min, c.Max = typeMin, typeMax
	}
	return c, nil
}

// integerBounds returns the value range of an n-bit integer. Unsigned
// 64-bit maxima are clamped to math.MaxInt64.
func integerBounds(n int, signed bool) (int64, int64) {
	if signed {
		if n >= 64 {
			return math.MinInt64, math.MaxInt64
		}
		return -(int64(1) << (n - 1)), int64(1)<<(n-1) - 1
	}
	if n >= 63 {
		return 0, math.MaxInt64
	}
	return 0, int64(1)<<n - 1
}

func spanMax(lo int64, n int) int64 {
	if n >= 63 {
		return math.MaxInt64
	}
	span := int64(1)<<n - 1
	if lo > math.MaxInt64-span {
		return math.MaxInt64
	}
	return lo + span
}

// bitWidth is the number of bits needed to store hi-lo, at least one.
func bitWidth(lo, hi int64) int {
	n := bits.Len64(uint64(hi) - uint64(lo))
	if n == 0 {
		return 1
	}
	return n
}

func arrayOptionOnScalar(ctx *Context, in Input, shape Shape) error {
	return diag.Configuration(diag.ReasonArrayOptionOnScalar, in.Subject,
		"%s options need an array type (seen: %s)", shape, ctx.TypeString(in.Type))
}
