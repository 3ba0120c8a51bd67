package resolver

import (
	"go/types"

	"github.com/seitarof/gen-bitpack/internal/diag"
)

// resolveTransform checks that the named functions have the shapes
//
//	func PrePack(src *T, dst *P)
//	func PostUnpack(dst *T, src *P)
//
// and returns P as the packed type.
func resolveTransform(ctx *Context, subject string, t Transform, in types.Type) (*ResolvedTransform, error) {
	prePacked, err := transformParam(ctx, subject, t.PrePack, in)
	if err != nil {
		return nil, err
	}
	postPacked, err := transformParam(ctx, subject, t.PostUnpack, in)
	if err != nil {
		return nil, err
	}
	if !types.Identical(prePacked, postPacked) {
		return nil, diag.New(diag.KindConfiguration, diag.ReasonTransformSignature).
			Subject(subject).
			Detailf("%s packs into %s but %s unpacks from %s",
				t.PrePack, ctx.TypeString(prePacked), t.PostUnpack, ctx.TypeString(postPacked)).
			Build()
	}
	return &ResolvedTransform{
		PrePack:    t.PrePack,
		PostUnpack: t.PostUnpack,
		InType:     in,
		PackedType: prePacked,
	}, nil
}

func transformParam(ctx *Context, subject, name string, in types.Type) (types.Type, error) {
	if ctx.Pkg == nil {
		return nil, diag.Configuration(diag.ReasonTransformSignature, subject,
			"transform function %s cannot be looked up without a package", name)
	}
	fn, ok := ctx.Pkg.LookupFunc(name)
	if !ok {
		return nil, diag.Configuration(diag.ReasonTransformSignature, subject,
			"transform function %s not found in package %s", name, ctx.Pkg.Path)
	}
	sig := fn.Type().(*types.Signature)
	if sig.Recv() != nil || sig.TypeParams().Len() > 0 || sig.Params().Len() != 2 || sig.Results().Len() != 0 {
		return nil, badSignature(ctx, subject, name, in)
	}
	own, ok := sig.Params().At(0).Type().(*types.Pointer)
	if !ok || !types.Identical(own.Elem(), in) {
		return nil, badSignature(ctx, subject, name, in)
	}
	packed, ok := sig.Params().At(1).Type().(*types.Pointer)
	if !ok {
		return nil, badSignature(ctx, subject, name, in)
	}
	return packed.Elem(), nil
}

func badSignature(ctx *Context, subject, name string, in types.Type) error {
	return diag.New(diag.KindConfiguration, diag.ReasonTransformSignature).
		Subject(subject).
		Detailf("%s must have the signature func(*%s, *P)", name, ctx.TypeString(in)).
		Build()
}
