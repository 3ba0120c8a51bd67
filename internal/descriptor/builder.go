package descriptor

import (
	"go/types"

	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/matcher"
	"github.com/seitarof/gen-bitpack/internal/parser"
	"github.com/seitarof/gen-bitpack/internal/resolver"
)

// Builder builds struct descriptors for one generation run. Each
// distinct type is described once.
type Builder struct {
	ctx      *resolver.Context
	resolver resolver.Resolver
	prefix   matcher.PrefixMatcher
	locator  matcher.TagLocator

	cache map[string]*Struct
	order []*Struct
}

// NewBuilder returns a builder resolving options with r.
func NewBuilder(ctx *resolver.Context, r resolver.Resolver) *Builder {
	return &Builder{
		ctx:      ctx,
		resolver: r,
		prefix:   matcher.NewPrefixMatcher(),
		locator:  matcher.NewTagLocator(),
		cache:    map[string]*Struct{},
	}
}

// Structs returns every described struct, nested types first.
func (b *Builder) Structs() []*Struct {
	return append([]*Struct(nil), b.order...)
}

// Build describes the struct type t.
func (b *Builder) Build(t types.Type) (*Struct, error) {
	st, ok := t.Underlying().(*types.Struct)
	if !ok {
		return nil, diag.Configuration(diag.ReasonUnsupportedType, b.ctx.TypeString(t),
			"only struct types can be described")
	}
	id := CanonicalID(t)
	if s, ok := b.cache[id]; ok {
		return s, nil
	}

	s := &Struct{Type: t, ID: id}
	owner := b.ctx.TypeString(t)
	if named, ok := types.Unalias(t).(*types.Named); ok {
		s.Name = named.Obj().Name()
		owner = s.Name
	}
	outside := b.ctx.Pkg != nil && b.ctx.Pkg.IsOutsideRoot(t)

	for i, f := range b.fields(st) {
		res, err := b.resolver.ResolveField(b.ctx, owner, f)
		if err != nil {
			return nil, err
		}
		if res.Omit && !res.Defaulted() {
			continue
		}
		subject := owner + "." + f.Name
		if outside && !f.IsExported {
			return nil, diag.Unsupported(diag.ReasonUnsupportedType, subject,
				"unexported field of a type declared in another package; omit it")
		}
		if len(res.When) > 0 {
			return nil, diag.Configuration(diag.ReasonMalformedOption, subject,
				"when applies only to union arms")
		}
		m := newMember(i, f, res)
		if err := b.complete(subject, m, s.Members); err != nil {
			return nil, err
		}
		s.Members = append(s.Members, m)
		s.Bits += m.SizeInBits()
	}

	b.cache[id] = s
	b.order = append(b.order, s)
	return s, nil
}

func newMember(index int, f parser.FieldInfo, res resolver.Resolution) *Member {
	return &Member{
		Name:      f.Name,
		Index:     index,
		Type:      f.Type,
		InnerType: res.InnerType,
		Extents:   res.Extents,
		Options:   res.Options,
		When:      res.When,
	}
}

// complete attaches nested descriptors and checks size limits.
func (b *Builder) complete(subject string, m *Member, siblings []*Member) error {
	switch m.Kind() {
	case resolver.KindStructure:
		sub, err := b.Build(m.Options.ValueType)
		if err != nil {
			return err
		}
		m.Struct = sub
	case resolver.KindUnionExternal, resolver.KindUnionInternal:
		if len(m.Extents) > 0 {
			return diag.Unsupported(diag.ReasonUnsupportedType, subject, "arrays of unions are not supported")
		}
		u, err := b.buildUnion(subject, m, siblings)
		if err != nil {
			return err
		}
		m.Union = u
	case resolver.KindString, resolver.KindBuffer:
		if bits := m.Options.LeafBits(); bits > b.ctx.Global.SectorBits {
			return diag.New(diag.KindUnsupported, diag.ReasonLeafExceedsSector).
				Subject(subject).
				Detailf("%s of %d bits is larger than a sector of %d bits", m.Kind(), bits, b.ctx.Global.SectorBits).
				Note("strings and buffers are never split across sectors").
				Build()
		}
	}
	return nil
}

func (b *Builder) buildUnion(subject string, m *Member, siblings []*Member) (*Union, error) {
	t := m.Options.ValueType
	st := t.Underlying().(*types.Struct)
	u := &Union{
		Type:     t,
		TagField: m.Options.TagField,
		Internal: m.Kind() == resolver.KindUnionInternal,
	}

	if !u.Internal {
		tag, err := externalTag(subject, u.TagField, siblings)
		if err != nil {
			return nil, err
		}
		u.Tag = tag
	}

	unionName := b.ctx.TypeString(t)
	seen := map[int64]string{}
	for i, f := range b.fields(st) {
		res, err := b.resolver.ResolveField(b.ctx, unionName, f)
		if err != nil {
			return nil, err
		}
		armSubject := unionName + "." + f.Name
		if res.Defaulted() {
			return nil, diag.Configuration(diag.ReasonInvalidDefault, armSubject,
				"union arms cannot carry a default")
		}
		if res.Omit {
			continue
		}
		if len(res.When) == 0 {
			return nil, diag.TagValidation(diag.ReasonMissingArmSelector, armSubject,
				"union arm needs a when option")
		}
		for _, v := range res.When {
			if prev, dup := seen[v]; dup {
				return nil, diag.TagValidation(diag.ReasonMissingArmSelector, armSubject,
					"selector %d is already used by arm %s", v, prev)
			}
			seen[v] = f.Name
		}
		arm := newMember(i, f, res)
		if u.Internal && (arm.Kind() != resolver.KindStructure || arm.Options.Transform != nil) {
			return nil, diag.TagValidation(diag.ReasonUnionMemberNotStruct, armSubject,
				"internally tagged arms must be plain structs")
		}
		if err := b.complete(armSubject, arm, nil); err != nil {
			return nil, err
		}
		u.Arms = append(u.Arms, arm)
	}
	if len(u.Arms) == 0 {
		return nil, diag.TagValidation(diag.ReasonMissingArmSelector, subject, "union has no serialized arms")
	}

	if u.Internal {
		if err := b.sharePrefix(subject, u); err != nil {
			return nil, err
		}
	}

	widest := 0
	for i := range u.Arms {
		widest = max(widest, u.ArmBits(i))
	}
	u.Bits = u.SharedBits() + widest
	return u, nil
}

func externalTag(subject, name string, siblings []*Member) (*Member, error) {
	for _, s := range siblings {
		if s.Name != name {
			continue
		}
		if len(s.Extents) > 0 || (s.Kind() != resolver.KindInteger && s.Kind() != resolver.KindBoolean) {
			return nil, diag.TagValidation(diag.ReasonExternalTagMissing, subject,
				"tag %q must be a scalar integer field (resolved as %s)", name, s.Kind())
		}
		return s, nil
	}
	return nil, diag.New(diag.KindTagValidation, diag.ReasonExternalTagMissing).
		Subject(subject).
		Detailf("tag %q is not a serialized field declared before the union", name).
		Build()
}

// sharePrefix finds, for every arm, the leading members that end at or
// after the tag while staying inside the fields all arms share.
func (b *Builder) sharePrefix(subject string, u *Union) error {
	var qualifier types.Qualifier
	if b.ctx.Pkg != nil {
		qualifier = b.ctx.Pkg.Qualifier
	}
	lists := make([][]parser.FieldInfo, len(u.Arms))
	for i, arm := range u.Arms {
		lists[i] = parser.FlattenFields(arm.Struct.Type.Underlying().(*types.Struct), qualifier)
	}
	prefix := b.prefix.CommonPrefix(lists)
	tagIndex, ok := b.locator.Locate(prefix, u.TagField)
	if !ok {
		return diag.TagValidation(diag.ReasonUnionTagNotShared, subject,
			"tag %q not found among shared fields", u.TagField)
	}
	if tag := prefix[tagIndex]; !isIntegerType(tag.Type) {
		return diag.TagValidation(diag.ReasonUnionTagNotShared, subject,
			"tag %q must be an integer field (seen: %s)", u.TagField, tag.TypeStr)
	}

	u.TagPath = prefix[tagIndex].AccessPath
	u.Shared = make([]int, len(u.Arms))
	for i, arm := range u.Arms {
		st := arm.Struct.Type.Underlying().(*types.Struct)
		raw := rawFieldsCovering(st, tagIndex+1)
		flat := 0
		for j := 0; j < raw; j++ {
			flat += flatWidth(st.Field(j))
		}
		if flat > len(prefix) {
			return diag.New(diag.KindTagValidation, diag.ReasonUnionTagNotShared).
				Subject(subject).
				Detailf("field holding tag %q in arm %s is not shared by every arm", u.TagField, arm.Name).
				Note("the arms share %d leading field(s)", len(prefix)).
				Build()
		}
		for _, m := range arm.Struct.Members {
			if m.Index < raw {
				u.Shared[i]++
			}
		}
	}
	return nil
}

// rawFieldsCovering returns how many declared fields of st are needed to
// cover the first n flattened fields.
func rawFieldsCovering(st *types.Struct, n int) int {
	covered := 0
	for j := 0; j < st.NumFields(); j++ {
		if covered >= n {
			return j
		}
		covered += flatWidth(st.Field(j))
	}
	return st.NumFields()
}

func flatWidth(f *types.Var) int {
	if !f.Embedded() {
		return 1
	}
	st, ok := f.Type().Underlying().(*types.Struct)
	if !ok {
		return 1
	}
	return len(parser.FlattenFields(st, nil))
}

func isIntegerType(t types.Type) bool {
	basic, ok := t.Underlying().(*types.Basic)
	return ok && basic.Info()&types.IsInteger != 0
}

func (b *Builder) fields(st *types.Struct) []parser.FieldInfo {
	if b.ctx.Pkg != nil {
		return b.ctx.Pkg.Fields(st)
	}
	fields := make([]parser.FieldInfo, 0, st.NumFields())
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		fields = append(fields, parser.FieldInfo{
			Name:       f.Name(),
			AccessPath: f.Name(),
			TypeStr:    types.TypeString(f.Type(), nil),
			Type:       f.Type(),
			Tag:        st.Tag(i),
			Embedded:   f.Embedded(),
			IsExported: f.Exported(),
		})
	}
	return fields
}

// CanonicalID names t uniquely within a run.
func CanonicalID(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string { return p.Path() })
}
