package resolver

import (
	"go/types"

	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/parser"
)

// Resolver turns requested options into computed options.
type Resolver interface {
	// ResolveField resolves a struct field declared in the type owner.
	ResolveField(ctx *Context, owner string, field parser.FieldInfo) (Resolution, error)
	// Resolve resolves options requested for a value of type t.
	Resolve(ctx *Context, subject string, requested Requested, t types.Type) (Resolution, error)
}

// Input is what a rule classifies: the coalesced request and the value
// type left once array ranks are stripped.
type Input struct {
	Subject string
	Req     Requested
	Type    types.Type
}

// Rule tries to compute the options of one value.
type Rule interface {
	Name() string
	Try(ctx *Context, in Input) (Computed, bool, error)
}

type resolverImpl struct {
	rules []Rule
}

// New builds resolver with rule chain.
func New(rules ...Rule) Resolver {
	return &resolverImpl{rules: rules}
}

func (r *resolverImpl) ResolveField(ctx *Context, owner string, field parser.FieldInfo) (Resolution, error) {
	subject := owner + "." + field.Name
	req, err := ParseTag(field.Tag, subject)
	if err != nil {
		return Resolution{}, err
	}
	return r.Resolve(ctx, subject, req, field.Type)
}

func (r *resolverImpl) Resolve(ctx *Context, subject string, requested Requested, t types.Type) (Resolution, error) {
	fieldReq, err := withInherited(ctx, subject, requested)
	if err != nil {
		return Resolution{}, err
	}
	if fieldReq.Omit {
		return omitted(ctx, subject, fieldReq, t)
	}
	typeReq, err := typeDefaults(ctx, t)
	if err != nil {
		return Resolution{}, err
	}
	eff := Overlay(typeReq, fieldReq)
	if eff.Omit {
		return omitted(ctx, subject, eff, t)
	}

	res := Resolution{When: eff.When}
	res.Extents, res.InnerType, err = stripArrays(ctx, subject, eff, t)
	if err != nil {
		return Resolution{}, err
	}

	in := Input{Subject: subject, Req: eff, Type: res.InnerType}
	var tr *ResolvedTransform
	if eff.Transform != nil {
		tr, err = resolveTransform(ctx, subject, *eff.Transform, res.InnerType)
		if err != nil {
			return Resolution{}, err
		}
		in.Type = tr.PackedType
		in.Req.Transform = nil
	}

	computed, err := r.classify(ctx, in)
	if err != nil {
		return Resolution{}, err
	}
	if tr != nil {
		if computed.Kind.IsUnion() {
			return Resolution{}, diag.Unsupported(diag.ReasonUnsupportedType, subject,
				"a transform cannot produce a union")
		}
		computed.Transform = tr
	}
	if !computed.Kind.IsUnion() && (eff.Tag != "" || eff.InternalTag != "") {
		return Resolution{}, diag.Configuration(diag.ReasonConflictingShapes, subject,
			"tag options apply only to union types (resolved as %s)", computed.Kind)
	}
	if eff.Default != "" {
		return Resolution{}, diag.Configuration(diag.ReasonInvalidDefault, subject,
			"default applies only to omitted values")
	}
	res.Options = computed
	return res, nil
}

func omitted(ctx *Context, subject string, req Requested, t types.Type) (Resolution, error) {
	res := Resolution{Omit: true, When: req.When}
	if req.Default == "" {
		return res, nil
	}
	if err := checkDefault(ctx, subject, req.Default, t); err != nil {
		return Resolution{}, err
	}
	res.InnerType = t
	res.Options = Computed{Kind: KindDefaulted, Default: req.Default, ValueType: t}
	return res, nil
}

func (r *resolverImpl) classify(ctx *Context, in Input) (Computed, error) {
	for _, rule := range r.rules {
		c, ok, err := rule.Try(ctx, in)
		if err != nil {
			return Computed{}, err
		}
		if ok {
			c.ValueType = in.Type
			return c, nil
		}
	}
	return Computed{}, unsupportedType(ctx, in.Subject, in.Type)
}

func withInherited(ctx *Context, subject string, req Requested) (Requested, error) {
	if req.Inherit == "" {
		return req, nil
	}
	h, ok := ctx.Heritables.Lookup(req.Inherit)
	if !ok {
		return Requested{}, diag.New(diag.KindConfiguration, diag.ReasonUnknownHeritable).
			Subject(subject).
			Detailf("no heritable option set named %q", req.Inherit).
			Build()
	}
	own, _ := req.Shape()
	if own != ShapeNone && own != h.Shape {
		return Requested{}, diag.New(diag.KindConfiguration, diag.ReasonHeritableShapeMismatch).
			Subject(subject).
			Detailf("%s options cannot inherit %s set %q", own, h.Shape, h.Name).
			Note("%q defined at %s", h.Name, h.Origin).
			Build()
	}
	return Overlay(h.Options, req), nil
}

// typeDefaults coalesces the directives of every named type met while
// stripping array ranks from t. Outer types take precedence.
func typeDefaults(ctx *Context, t types.Type) (Requested, error) {
	var objs []*types.TypeName
	cur := t
	for {
		if named, ok := types.Unalias(cur).(*types.Named); ok {
			objs = append(objs, named.Obj())
		}
		arr, ok := cur.Underlying().(*types.Array)
		if !ok {
			break
		}
		cur = arr.Elem()
	}

	var out Requested
	for i := len(objs) - 1; i >= 0; i-- {
		level, err := ctx.typeDirectives(objs[i])
		if err != nil {
			return Requested{}, err
		}
		level, err = withInherited(ctx, "type "+objs[i].Name(), level)
		if err != nil {
			return Requested{}, err
		}
		out = Overlay(out, level)
	}
	return out, nil
}

// stripArrays peels array ranks off t. The innermost character array of
// a string and the whole value of a buffer are kept.
func stripArrays(ctx *Context, subject string, req Requested, t types.Type) ([]int, types.Type, error) {
	shape, _ := req.Shape()
	var extents []int
	cur := t
	for {
		switch u := cur.Underlying().(type) {
		case *types.Slice:
			return nil, nil, diag.Unsupported(diag.ReasonVariableLengthArray, subject,
				"%s has no fixed length", ctx.TypeString(cur))
		case *types.Array:
			if shape == ShapeBuffer && req.Transform == nil {
				return extents, cur, nil
			}
			elem := u.Elem()
			_, elemIsArray := elem.Underlying().(*types.Array)
			if req.Transform == nil && !elemIsArray && (shape == ShapeString || ctx.isStringChar(elem)) {
				return extents, cur, nil
			}
			if u.Len() <= 0 {
				return nil, nil, diag.Unsupported(diag.ReasonUnsupportedType, subject,
					"zero-length array %s", ctx.TypeString(cur))
			}
			extents = append(extents, int(u.Len()))
			cur = elem
		default:
			return extents, cur, nil
		}
	}
}

func (ctx *Context) isStringChar(t types.Type) bool {
	return ctx.matchesTypeName(t, ctx.Global.StringCharType)
}

func unsupportedType(ctx *Context, subject string, t types.Type) error {
	switch t.Underlying().(type) {
	case *types.Slice:
		return diag.Unsupported(diag.ReasonVariableLengthArray, subject,
			"%s has no fixed length", ctx.TypeString(t))
	case *types.Array:
		return diag.Unsupported(diag.ReasonUnsupportedType, subject,
			"array %s can only be packed as a string or buffer here", ctx.TypeString(t))
	}
	return diag.Unsupported(diag.ReasonUnsupportedType, subject,
		"%s cannot be bitpacked; omit the field or transform it", ctx.TypeString(t))
}
