package resolver

import (
	"go/constant"
	"go/token"
	"go/types"
	"math"

	"github.com/seitarof/gen-bitpack/internal/diag"
)

// checkDefault type-checks a default expression in the package scope
// against the member type t.
func checkDefault(ctx *Context, subject, expr string, t types.Type) error {
	var scope *types.Package
	if ctx.Pkg != nil {
		scope = ctx.Pkg.Types
	}
	tv, err := types.Eval(token.NewFileSet(), scope, token.NoPos, expr)
	if err != nil {
		return diag.New(diag.KindConfiguration, diag.ReasonInvalidDefault).
			Subject(subject).
			Detailf("default %s does not evaluate", expr).
			Cause(err).
			Build()
	}
	if tv.Value != nil && isUntyped(tv.Type) {
		if fitsConstant(ctx, tv.Value, t) {
			return nil
		}
	} else if types.AssignableTo(tv.Type, t) {
		return nil
	}
	return diag.Configuration(diag.ReasonInvalidDefault, subject,
		"default %s (%s) cannot be assigned to %s", expr, tv.Type, ctx.TypeString(t))
}

func isUntyped(t types.Type) bool {
	b, ok := t.(*types.Basic)
	return ok && b.Info()&types.IsUntyped != 0
}

// fitsConstant reports whether the untyped constant v can be stored in t.
// A string fits a character array holding at least as many bytes.
func fitsConstant(ctx *Context, v constant.Value, t types.Type) bool {
	if arr, ok := t.Underlying().(*types.Array); ok {
		elem, ok := arr.Elem().Underlying().(*types.Basic)
		return ok && elem.Kind() == types.Uint8 &&
			v.Kind() == constant.String && int64(len(constant.StringVal(v))) <= arr.Len()
	}
	b, ok := t.Underlying().(*types.Basic)
	if !ok {
		return false
	}
	info := b.Info()
	switch {
	case info&types.IsBoolean != 0:
		return v.Kind() == constant.Bool
	case info&types.IsInteger != 0:
		n := constant.ToInt(v)
		if n.Kind() != constant.Int {
			return false
		}
		bits := uint(ctx.Sizes().Sizeof(t) * 8)
		lo, hi := constant.MakeInt64(0), constant.MakeUint64(math.MaxUint64>>(64-bits))
		if info&types.IsUnsigned == 0 {
			lo = constant.MakeInt64(math.MinInt64 >> (64 - bits))
			hi = constant.MakeInt64(math.MaxInt64 >> (64 - bits))
		}
		return constant.Compare(n, token.GEQ, lo) && constant.Compare(n, token.LEQ, hi)
	case info&types.IsFloat != 0:
		k := constant.ToFloat(v).Kind()
		return k == constant.Float || k == constant.Int
	}
	return false
}
