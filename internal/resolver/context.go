package resolver

import (
	"go/types"
	"sort"

	"github.com/seitarof/gen-bitpack/internal/config"
	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/parser"
)

// Context is the state of one generation request. It is built when the
// request starts and dropped when it ends.
type Context struct {
	Global     config.Global
	Heritables *Registry
	Reporter   *diag.Reporter
	Pkg        *parser.Package
}

// NewContext registers heritable sets from the config file, sorted by
// name, then those declared by directives in pkg.
func NewContext(
	global config.Global,
	heritables map[string]config.HeritableConfig,
	pkg *parser.Package,
	reporter *diag.Reporter,
) (*Context, error) {
	if reporter == nil {
		reporter = diag.NewReporter(nil)
	}
	ctx := &Context{
		Global:     global,
		Heritables: NewRegistry(reporter),
		Reporter:   reporter,
		Pkg:        pkg,
	}

	names := make([]string, 0, len(heritables))
	for name := range heritables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h, err := HeritableFromConfig(name, heritables[name])
		if err != nil {
			return nil, err
		}
		if err := ctx.Heritables.Define(h); err != nil {
			return nil, err
		}
	}

	if pkg != nil {
		for _, d := range pkg.HeritableDirectives() {
			h, err := ParseHeritableDirective(d.Text, d.Pos)
			if err != nil {
				return nil, err
			}
			if err := ctx.Heritables.Define(h); err != nil {
				return nil, err
			}
		}
	}
	return ctx, nil
}

// Sizes returns the size model of the target platform.
func (ctx *Context) Sizes() types.Sizes {
	if ctx.Pkg != nil && ctx.Pkg.Sizes != nil {
		return ctx.Pkg.Sizes
	}
	return types.SizesFor("gc", "amd64")
}

// TypeString renders t as spelled in the generated package.
func (ctx *Context) TypeString(t types.Type) string {
	if ctx.Pkg != nil {
		return ctx.Pkg.TypeString(t)
	}
	return types.TypeString(t, nil)
}

// typeDirectives returns the options attached to a named type.
func (ctx *Context) typeDirectives(obj *types.TypeName) (Requested, error) {
	if ctx.Pkg == nil {
		return Requested{}, nil
	}
	subject := "type " + obj.Name()
	var req Requested
	for _, d := range ctx.Pkg.TypeDirectives(obj) {
		level, err := ParseOptions(d.Text, subject, LevelType)
		if err != nil {
			return Requested{}, err
		}
		req = Overlay(req, level)
	}
	if _, ok := req.Shape(); !ok {
		return Requested{}, conflictingShapes(subject, req)
	}
	return req, nil
}

// matchesTypeName reports whether t is spelled name, either qualified as
// in the generated package or by its bare declared name.
func (ctx *Context) matchesTypeName(t types.Type, name string) bool {
	if name == "" {
		return false
	}
	if ctx.TypeString(t) == name {
		return true
	}
	if obj, ok := types.Universe.Lookup(name).(*types.TypeName); ok {
		return types.Identical(types.Unalias(t), obj.Type())
	}
	if named, ok := types.Unalias(t).(*types.Named); ok {
		return named.Obj().Name() == name
	}
	return false
}
