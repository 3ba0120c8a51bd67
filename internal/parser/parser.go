package parser

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"path/filepath"
	"sort"
	"strings"

	"go/types"

	"golang.org/x/tools/go/packages"
)

// DirectivePrefix marks bitpacking comment directives.
const DirectivePrefix = "//bitpack:"

// Parser loads Go packages and exposes the type information the
// generator needs.
type Parser interface {
	Load(pkgPath string) (*Package, error)
	Parse(pkgPath string, typeName string) (*StructInfo, error)
}

type parserImpl struct {
	cache map[string]*packages.Package
}

// New returns default parser.
func New() Parser {
	return &parserImpl{cache: map[string]*packages.Package{}}
}

// Package is the introspection facade over one loaded package and the
// packages of the same module it refers to.
type Package struct {
	Path       string
	Name       string
	Dir        string
	ModulePath string
	Types      *types.Package
	Sizes      types.Sizes

	parser     *parserImpl
	directives map[*types.TypeName][]Directive
	heritables []Directive
	loaded     map[string]bool
}

func (p *parserImpl) Load(pkgPath string) (*Package, error) {
	pkg, err := p.loadPackage(pkgPath)
	if err != nil {
		return nil, err
	}
	if pkg.Types == nil || pkg.Types.Scope() == nil {
		return nil, fmt.Errorf("type info unavailable for package %q", pkgPath)
	}

	out := &Package{
		Path:       pkg.Types.Path(),
		Name:       pkg.Name,
		Types:      pkg.Types,
		Sizes:      pkg.TypesSizes,
		parser:     p,
		directives: map[*types.TypeName][]Directive{},
		loaded:     map[string]bool{},
	}
	if out.Sizes == nil {
		out.Sizes = types.SizesFor("gc", "amd64")
	}
	if len(pkg.GoFiles) > 0 {
		out.Dir = filepath.Dir(pkg.GoFiles[0])
	}
	if pkg.Module != nil {
		out.ModulePath = pkg.Module.Path
	}
	out.absorb(pkg, true)
	return out, nil
}

func (p *parserImpl) Parse(pkgPath string, typeName string) (*StructInfo, error) {
	pkg, err := p.Load(pkgPath)
	if err != nil {
		return nil, err
	}
	obj := pkg.Types.Scope().Lookup(typeName)
	if obj == nil {
		return nil, fmt.Errorf("struct %q not found in package %q", typeName, pkgPath)
	}
	info, ok := pkg.StructInfo(obj.Type())
	if !ok {
		return nil, fmt.Errorf("%q in package %q is not a struct type", typeName, pkgPath)
	}
	return info, nil
}

func (p *parserImpl) loadPackage(pkgPath string) (*packages.Package, error) {
	if cached, ok := p.cache[pkgPath]; ok {
		return cached, nil
	}

	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedTypes |
			packages.NeedTypesSizes |
			packages.NeedSyntax |
			packages.NeedTypesInfo |
			packages.NeedModule,
	}

	pkgs, err := packages.Load(cfg, pkgPath)
	if err != nil {
		return nil, fmt.Errorf("load package %q: %w", pkgPath, err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("package %q has compilation errors", pkgPath)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("package %q not found", pkgPath)
	}
	p.cache[pkgPath] = pkgs[0]
	return pkgs[0], nil
}

// absorb indexes the `//bitpack:` directives of a loaded package.
func (pkg *Package) absorb(src *packages.Package, root bool) {
	pkg.loaded[src.PkgPath] = true
	for _, file := range src.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				obj, ok := src.TypesInfo.Defs[ts.Name].(*types.TypeName)
				if !ok || obj == nil {
					continue
				}
				doc := ts.Doc
				if doc == nil && len(gen.Specs) == 1 {
					doc = gen.Doc
				}
				if dirs := directivesIn(src.Fset, doc); len(dirs) > 0 {
					pkg.directives[obj] = dirs
				}
			}
		}
		if !root {
			continue
		}
		for _, group := range file.Comments {
			for _, d := range directivesIn(src.Fset, group) {
				if strings.HasPrefix(d.Text, "heritable ") {
					pkg.heritables = append(pkg.heritables, d)
				}
			}
		}
	}
}

func directivesIn(fset *token.FileSet, group *ast.CommentGroup) []Directive {
	if group == nil {
		return nil
	}
	var out []Directive
	for _, c := range group.List {
		if !strings.HasPrefix(c.Text, DirectivePrefix) {
			continue
		}
		out = append(out, Directive{
			Text: strings.TrimSpace(strings.TrimPrefix(c.Text, DirectivePrefix)),
			Pos:  fset.Position(c.Pos()).String(),
		})
	}
	return out
}

// TypeDirectives returns the `//bitpack:` lines attached to the
// declaration of obj. Types from other packages of the same module are
// loaded on demand; types outside the module never carry directives.
func (pkg *Package) TypeDirectives(obj *types.TypeName) []Directive {
	if obj == nil || obj.Pkg() == nil {
		return nil
	}
	if dirs, ok := pkg.directives[obj]; ok {
		return dirs
	}
	path := obj.Pkg().Path()
	if pkg.loaded[path] {
		return pkg.directiveByIdentity(obj)
	}
	if !shouldRecurseNestedPackage(path, pkg.Path, pkg.ModulePath) {
		return nil
	}
	src, err := pkg.parser.loadPackage(path)
	if err != nil {
		pkg.loaded[path] = true
		return nil
	}
	pkg.absorb(src, false)
	return pkg.directiveByIdentity(obj)
}

// directiveByIdentity finds directives for obj among types loaded from a
// separate packages.Load call, where type objects are not shared.
func (pkg *Package) directiveByIdentity(obj *types.TypeName) []Directive {
	for other, dirs := range pkg.directives {
		if other.Pkg() != nil && other.Pkg().Path() == obj.Pkg().Path() && other.Name() == obj.Name() {
			pkg.directives[obj] = dirs
			return dirs
		}
	}
	return nil
}

// HeritableDirectives returns every `//bitpack:heritable` line of the
// root package in source order.
func (pkg *Package) HeritableDirectives() []Directive {
	return append([]Directive(nil), pkg.heritables...)
}

// LookupVar finds a package-level variable.
func (pkg *Package) LookupVar(name string) (RootVar, error) {
	obj := pkg.Types.Scope().Lookup(name)
	if obj == nil {
		return RootVar{}, fmt.Errorf("variable %q not found in package %q", name, pkg.Path)
	}
	v, ok := obj.(*types.Var)
	if !ok {
		return RootVar{}, fmt.Errorf("%q in package %q is not a variable", name, pkg.Path)
	}
	return RootVar{Name: name, Type: v.Type()}, nil
}

// LookupFunc finds a package-level function.
func (pkg *Package) LookupFunc(name string) (*types.Func, bool) {
	fn, ok := pkg.Types.Scope().Lookup(name).(*types.Func)
	return fn, ok
}

// Qualifier renders types relative to the root package.
func (pkg *Package) Qualifier(p *types.Package) string {
	if p == nil || p.Path() == pkg.Path {
		return ""
	}
	return p.Name()
}

// TypeString renders t as it must be spelled in the root package.
func (pkg *Package) TypeString(t types.Type) string {
	return types.TypeString(t, pkg.Qualifier)
}

// Fields returns the direct fields of st in declaration order. Embedded
// fields are kept as one field named after the embedded type.
func (pkg *Package) Fields(st *types.Struct) []FieldInfo {
	fields := make([]FieldInfo, 0, st.NumFields())
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		fields = append(fields, FieldInfo{
			Name:       f.Name(),
			AccessPath: f.Name(),
			TypeStr:    pkg.TypeString(f.Type()),
			Type:       f.Type(),
			Tag:        st.Tag(i),
			Embedded:   f.Embedded(),
			IsExported: f.Exported(),
		})
	}
	return fields
}

// StructInfo describes a struct type with its direct fields.
func (pkg *Package) StructInfo(t types.Type) (*StructInfo, bool) {
	st, ok := extractStructType(t)
	if !ok {
		return nil, false
	}
	info := &StructInfo{Type: t, Fields: pkg.Fields(st)}
	if named, ok := types.Unalias(t).(*types.Named); ok {
		info.Name = named.Obj().Name()
		if named.Obj().Pkg() != nil {
			info.PkgPath = named.Obj().Pkg().Path()
			info.PkgName = named.Obj().Pkg().Name()
		}
	}
	return info, true
}

// EnumValues returns the values of the package-level constants declared
// with exactly the named type t, sorted ascending. A named integer type
// with at least one such constant is treated as an enumeration.
func (pkg *Package) EnumValues(t types.Type) []int64 {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return nil
	}
	scope := named.Obj().Pkg().Scope()
	var values []int64
	for _, name := range scope.Names() {
		c, ok := scope.Lookup(name).(*types.Const)
		if !ok || !types.Identical(c.Type(), named) {
			continue
		}
		v, exact := constant.Int64Val(constant.ToInt(c.Val()))
		if !exact {
			continue
		}
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values
}

// IsOutsideRoot reports whether t is declared in a package other than the
// root one, where unexported fields cannot be reached by generated code.
func (pkg *Package) IsOutsideRoot(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}
	return named.Obj().Pkg().Path() != pkg.Path
}

func extractStructType(t types.Type) (*types.Struct, bool) {
	switch v := t.(type) {
	case *types.Alias:
		return extractStructType(v.Rhs())
	case *types.Named:
		return extractStructType(v.Underlying())
	case *types.Struct:
		return v, true
	default:
		return nil, false
	}
}

func shouldRecurseNestedPackage(nestedPkgPath, currentPkgPath, rootModulePath string) bool {
	if nestedPkgPath == "" {
		return false
	}
	if nestedPkgPath == currentPkgPath {
		return true
	}
	if rootModulePath == "" {
		return false
	}
	return nestedPkgPath == rootModulePath || strings.HasPrefix(nestedPkgPath, rootModulePath+"/")
}
