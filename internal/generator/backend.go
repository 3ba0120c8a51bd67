package generator

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/seitarof/gen-bitpack/internal/config"
	"github.com/seitarof/gen-bitpack/internal/descriptor"
	"github.com/seitarof/gen-bitpack/internal/parser"
	"github.com/seitarof/gen-bitpack/internal/resolver"
	"github.com/seitarof/gen-bitpack/internal/sector"
)

// Backend renders sector items as Go statements calling the configured
// bitstream primitives. One Backend serves one generated file.
type Backend struct {
	global  config.Global
	pkg     *parser.Package
	runtime string

	imports map[string]bool
	names   map[string]string
	taken   map[string]bool
	loops   int
	temps   int
}

// NewBackend returns a backend writing code for the package pkg.
func NewBackend(global config.Global, pkg *parser.Package) *Backend {
	b := &Backend{
		global:  global,
		pkg:     pkg,
		runtime: path.Base(global.BitstreamImport),
		imports: map[string]bool{},
		names:   map[string]string{},
		taken:   map[string]bool{},
	}
	if global.BitstreamImport != "" {
		b.imports[global.BitstreamImport] = true
	}
	return b
}

// code is a pair of statement lists, one per direction.
type code struct {
	read []string
	save []string
}

func (c *code) add(read, save string) {
	c.read = append(c.read, read)
	c.save = append(c.save, save)
}

func (c *code) append(o code) {
	c.read = append(c.read, o.read...)
	c.save = append(c.save, o.save...)
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "\t" + l
	}
	return out
}

// Emit implements sector.Backend.
func (b *Backend) Emit(item sector.Item) ([]string, []string, error) {
	var c code
	var err error
	if span, ok := item.Target.Span(); ok {
		c, err = b.loop(item.Target, item.View, span.Start, span.End())
	} else {
		c, err = b.value(item.Target, item.View)
	}
	if err != nil {
		return nil, nil, err
	}
	return c.read, c.save, nil
}

// Whole renders the bodies of the whole-struct function pair of s.
func (b *Backend) Whole(s *descriptor.Struct) ([]string, []string, error) {
	t := sector.Dual("dst", "src", s.Name)
	var c code
	for _, m := range s.Members {
		mc, err := b.value(t.AccessMember(m.Name), m.View())
		if err != nil {
			return nil, nil, err
		}
		c.append(mc)
	}
	return c.read, c.save, nil
}

// ReadFunc returns the name of the whole-struct read function of s.
func (b *Backend) ReadFunc(s *descriptor.Struct) string {
	return "bitpackRead" + b.suffix(s)
}

// SaveFunc returns the name of the whole-struct save function of s.
func (b *Backend) SaveFunc(s *descriptor.Struct) string {
	return "bitpackSave" + b.suffix(s)
}

func (b *Backend) suffix(s *descriptor.Struct) string {
	if name, ok := b.names[s.ID]; ok {
		return name
	}
	name := s.Name
	for n := 2; b.taken[name]; n++ {
		name = fmt.Sprintf("%s%d", s.Name, n)
	}
	b.taken[name] = true
	b.names[s.ID] = name
	return name
}

// TypeName spells t as the generated file must, recording imports.
func (b *Backend) TypeName(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string {
		if p == nil || p.Path() == b.pkg.Path {
			return ""
		}
		b.imports[p.Path()] = true
		return p.Name()
	})
}

// Imports returns the import paths used so far, sorted.
func (b *Backend) Imports() []string {
	out := make([]string, 0, len(b.imports))
	for p := range b.imports {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (b *Backend) value(t sector.Target, v descriptor.View) (code, error) {
	if v.IsArray() {
		return b.loop(t, v, 0, v.Extent())
	}
	if v.Member.Options.Transform != nil {
		return b.transform(t, v.Member)
	}
	return b.shape(t, v.Member)
}

func (b *Backend) loop(t sector.Target, v descriptor.View, start, end int) (code, error) {
	idx := fmt.Sprintf("i%d", b.loops)
	b.loops++
	defer func() { b.loops-- }()

	body, err := b.value(t.AccessIndex(idx), v.Descend())
	if err != nil {
		return code{}, err
	}
	header := fmt.Sprintf("for %s := %d; %s < %d; %s++ {", idx, start, idx, end, idx)
	var c code
	c.add(header, header)
	c.read = append(c.read, indent(body.read)...)
	c.save = append(c.save, indent(body.save)...)
	c.add("}", "}")
	return c, nil
}

// transform packs through a scoped temporary of the packed type.
func (b *Backend) transform(t sector.Target, m *descriptor.Member) (code, error) {
	tr := m.Options.Transform
	tmp := fmt.Sprintf("packed%d", b.temps)
	b.temps++
	defer func() { b.temps-- }()

	inner, err := b.shape(sector.Var(tmp), m)
	if err != nil {
		return code{}, err
	}
	decl := fmt.Sprintf("var %s %s", tmp, b.TypeName(tr.PackedType))

	var c code
	c.add("{", "{")
	c.add("\t"+decl, "\t"+decl)
	c.save = append(c.save, fmt.Sprintf("\t%s(&%s, &%s)", tr.PrePack, t.Save(), tmp))
	c.read = append(c.read, indent(inner.read)...)
	c.save = append(c.save, indent(inner.save)...)
	c.read = append(c.read, fmt.Sprintf("\t%s(&%s, &%s)", tr.PostUnpack, t.Read(), tmp))
	c.add("}", "}")
	return c, nil
}

// shape renders one value of m's resolved kind, ignoring transforms.
func (b *Backend) shape(t sector.Target, m *descriptor.Member) (code, error) {
	typ := m.Options.ValueType
	if typ == nil {
		typ = m.InnerType
	}
	switch m.Kind() {
	case resolver.KindBoolean:
		return b.boolean(t, typ), nil
	case resolver.KindInteger, resolver.KindPointer:
		return b.integer(t, m.Options, typ), nil
	case resolver.KindString:
		return b.str(t, m.Options, typ), nil
	case resolver.KindBuffer:
		return b.buffer(t, m.Options, typ), nil
	case resolver.KindDefaulted:
		return b.defaulted(t, m.Options, typ), nil
	case resolver.KindStructure:
		return b.structure(t, m.Struct)
	case resolver.KindUnionExternal:
		return b.external(t, m.Union)
	case resolver.KindUnionInternal:
		return b.internal(t, m.Union)
	default:
		return code{}, fmt.Errorf("no code for %s of kind %s", t.Path(), m.Kind())
	}
}

func (b *Backend) boolean(t sector.Target, typ types.Type) code {
	f := b.global.Funcs
	var c code
	basic, _ := typ.Underlying().(*types.Basic)
	switch {
	case types.Identical(typ, types.Typ[types.Bool]):
		c.add(fmt.Sprintf("%s = %s(state)", t.Read(), f.ReadBool),
			fmt.Sprintf("%s(state, %s)", f.WriteBool, t.Save()))
	case basic != nil && basic.Kind() == types.Bool:
		c.add(fmt.Sprintf("%s = %s(%s(state))", t.Read(), b.TypeName(typ), f.ReadBool),
			fmt.Sprintf("%s(state, bool(%s))", f.WriteBool, t.Save()))
	default:
		c.read = append(c.read,
			fmt.Sprintf("%s = 0", t.Read()),
			fmt.Sprintf("if %s(state) {", f.ReadBool),
			fmt.Sprintf("\t%s = 1", t.Read()),
			"}")
		c.save = append(c.save, fmt.Sprintf("%s(state, %s != 0)", f.WriteBool, t.Save()))
	}
	return c
}

func (b *Backend) integer(t sector.Target, opts resolver.Computed, typ types.Type) code {
	f := b.global.Funcs
	name := b.TypeName(typ)
	bits := opts.Bitcount
	var c code
	switch {
	case opts.Signed:
		rfn, width := f.ReadSigned(bits)
		wfn, _ := f.WriteSigned(bits)
		c.add(fmt.Sprintf("%s = %s(%s(state, %d))", t.Read(), name, rfn, bits),
			fmt.Sprintf("%s(state, int%d(%s), %d)", wfn, width, t.Save(), bits))
	case opts.Min == math.MinInt64:
		// the bias does not fit an int64 constant
		rfn, width := f.ReadUnsigned(bits)
		wfn, _ := f.WriteUnsigned(bits)
		c.add(fmt.Sprintf("%s = %s(int64(uint64(%s(state, %d)) + 1<<63))", t.Read(), name, rfn, bits),
			fmt.Sprintf("%s(state, uint%d(uint64(int64(%s)) - 1<<63), %d)", wfn, width, t.Save(), bits))
	case opts.Min == 0:
		rfn, width := f.ReadUnsigned(bits)
		wfn, _ := f.WriteUnsigned(bits)
		c.add(fmt.Sprintf("%s = %s(%s(state, %d))", t.Read(), name, rfn, bits),
			fmt.Sprintf("%s(state, uint%d(%s), %d)", wfn, width, t.Save(), bits))
	default:
		rfn, width := f.ReadUnsigned(bits)
		wfn, _ := f.WriteUnsigned(bits)
		c.add(fmt.Sprintf("%s = %s(int64(%s(state, %d))%s)", t.Read(), name, rfn, bits, offset(opts.Min)),
			fmt.Sprintf("%s(state, uint%d(int64(%s)%s), %d)", wfn, width, t.Save(), offset(-opts.Min), bits))
	}
	return c
}

// offset renders the addition of n.
func offset(n int64) string {
	if n < 0 {
		return fmt.Sprintf(" - %d", uint64(-n))
	}
	return fmt.Sprintf(" + %d", n)
}

func (b *Backend) str(t sector.Target, opts resolver.Computed, typ types.Type) code {
	f := b.global.Funcs
	rfn, wfn := f.ReadString, f.WriteString
	if opts.Terminated {
		rfn, wfn = f.ReadStringTerminated, f.WriteStringTerminated
	}
	var c code
	c.add(fmt.Sprintf("%s(state, %s, %d)", rfn, b.bytes(t.Read(), typ), opts.Length),
		fmt.Sprintf("%s(state, %s, %d)", wfn, b.bytes(t.Save(), typ), opts.Length))
	return c
}

func (b *Backend) buffer(t sector.Target, opts resolver.Computed, typ types.Type) code {
	f := b.global.Funcs
	read, save := t.Read()+"[:]", t.Save()+"[:]"
	if arr, ok := typ.Underlying().(*types.Array); !ok || !b.isBufferByte(arr.Elem()) {
		read, save = b.bytes(t.Read(), typ), b.bytes(t.Save(), typ)
	}
	var c code
	c.add(fmt.Sprintf("%s(state, %s, %d)", f.ReadBuffer, read, opts.Bytecount),
		fmt.Sprintf("%s(state, %s, %d)", f.WriteBuffer, save, opts.Bytecount))
	return c
}

// isBufferByte reports whether t is the element type the buffer
// primitives take slices of.
func (b *Backend) isBufferByte(t types.Type) bool {
	name := b.global.BufferByteType
	if obj, ok := types.Universe.Lookup(name).(*types.TypeName); ok {
		return types.Identical(types.Unalias(t), obj.Type())
	}
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	qualified := types.TypeString(named, func(p *types.Package) string {
		if p == nil || p.Path() == b.pkg.Path {
			return ""
		}
		return p.Name()
	})
	return qualified == name || named.Obj().Name() == name
}

// defaulted assigns the default of an omitted member on read.
// A string constant fills a character array from its first element.
func (b *Backend) defaulted(t sector.Target, opts resolver.Computed, typ types.Type) code {
	var c code
	if _, ok := typ.Underlying().(*types.Array); ok && b.isStringConstant(opts.Default) {
		c.read = append(c.read,
			fmt.Sprintf("%s = %s{}", t.Read(), b.TypeName(typ)),
			fmt.Sprintf("copy(%s, %s)", b.bytes(t.Read(), typ), opts.Default))
		return c
	}
	c.read = append(c.read, fmt.Sprintf("%s = %s", t.Read(), opts.Default))
	return c
}

func (b *Backend) isStringConstant(expr string) bool {
	var scope *types.Package
	if b.pkg != nil {
		scope = b.pkg.Types
	}
	tv, err := types.Eval(token.NewFileSet(), scope, token.NoPos, expr)
	return err == nil && tv.Value != nil && tv.Value.Kind() == constant.String
}

// bytes exposes the array expr of type typ as a byte slice.
func (b *Backend) bytes(expr string, typ types.Type) string {
	arr, ok := typ.Underlying().(*types.Array)
	if ok {
		elem, _ := arr.Elem().Underlying().(*types.Basic)
		switch {
		case types.Identical(arr.Elem(), types.Typ[types.Byte]):
			return expr + "[:]"
		case elem != nil && elem.Kind() == types.Uint8:
			return fmt.Sprintf("%s.AsBytes(%s[:])", b.runtime, expr)
		}
	}
	return fmt.Sprintf("%s.BytesOf(&%s)", b.runtime, expr)
}

func (b *Backend) structure(t sector.Target, s *descriptor.Struct) (code, error) {
	var c code
	if s.Named() {
		c.add(fmt.Sprintf("%s(state, &%s)", b.ReadFunc(s), t.Read()),
			fmt.Sprintf("%s(state, &%s)", b.SaveFunc(s), t.Save()))
		return c, nil
	}
	for _, m := range s.Members {
		mc, err := b.value(t.AccessMember(m.Name), m.View())
		if err != nil {
			return code{}, err
		}
		c.append(mc)
	}
	return c, nil
}

// pad skips or zero-fills bits so a union always spans its full size.
func (b *Backend) pad(bits int) code {
	f := b.global.Funcs
	var c code
	for ; bits > 0; bits -= 64 {
		n := min(bits, 64)
		c.add(fmt.Sprintf("%s(state, %d)", f.ReadU64, n),
			fmt.Sprintf("%s(state, 0, %d)", f.WriteU64, n))
	}
	return c
}

func (b *Backend) external(t sector.Target, u *descriptor.Union) (code, error) {
	tag := t.Sibling(u.TagField)
	boolTag := isBool(u.Tag.InnerType)

	var c code
	c.add(fmt.Sprintf("switch %s {", tag.Read()), fmt.Sprintf("switch %s {", tag.Save()))
	for i, arm := range u.Arms {
		cases := selectors(arm.When, boolTag)
		if cases == "" {
			continue
		}
		body, err := b.value(t.AccessMember(arm.Name), arm.View())
		if err != nil {
			return code{}, err
		}
		body.append(b.pad(u.Bits - u.ArmBits(i)))
		c.add("case "+cases+":", "case "+cases+":")
		c.read = append(c.read, indent(body.read)...)
		c.save = append(c.save, indent(body.save)...)
	}
	b.defaultCase(&c, u.Bits)
	c.add("}", "}")
	return c, nil
}

func (b *Backend) internal(t sector.Target, u *descriptor.Union) (code, error) {
	first := t.AccessMember(u.Arms[0].Name)

	var c code
	for _, m := range u.SharedMembers(0) {
		mc, err := b.value(first.AccessMember(m.Name), m.View())
		if err != nil {
			return code{}, err
		}
		c.append(mc)
	}
	c.add(fmt.Sprintf("switch %s.%s {", first.Read(), u.TagPath),
		fmt.Sprintf("switch %s.%s {", first.Save(), u.TagPath))

	rest := u.Bits - u.SharedBits()
	for i, arm := range u.Arms {
		cases := selectors(arm.When, false)
		armT := t.AccessMember(arm.Name)
		var body code
		if i > 0 {
			body.read = b.copyShared(first, armT, u.SharedMembers(0), u.SharedMembers(i))
		}
		for _, m := range u.RestMembers(i) {
			mc, err := b.value(armT.AccessMember(m.Name), m.View())
			if err != nil {
				return code{}, err
			}
			body.append(mc)
		}
		body.append(b.pad(rest - u.ArmBits(i)))
		c.add("case "+cases+":", "case "+cases+":")
		c.read = append(c.read, indent(body.read)...)
		c.save = append(c.save, indent(body.save)...)
	}
	b.defaultCase(&c, rest)
	c.add("}", "}")
	return c, nil
}

func (b *Backend) defaultCase(c *code, bits int) {
	if bits <= 0 {
		return
	}
	p := b.pad(bits)
	c.add("default:", "default:")
	c.read = append(c.read, indent(p.read)...)
	c.save = append(c.save, indent(p.save)...)
}

// copyShared assigns the prefix read into the first arm to another arm.
// Members of distinct but field-identical struct types are copied field
// by field.
func (b *Backend) copyShared(from, to sector.Target, src, dst []*descriptor.Member) []string {
	var out []string
	for j, m := range dst {
		s := src[j]
		if types.Identical(m.Type, s.Type) {
			out = append(out, fmt.Sprintf("%s = %s", to.AccessMember(m.Name).Read(), from.AccessMember(s.Name).Read()))
			continue
		}
		st, ok := m.Type.Underlying().(*types.Struct)
		if !ok {
			out = append(out, fmt.Sprintf("%s = %s(%s)",
				to.AccessMember(m.Name).Read(), b.TypeName(m.Type), from.AccessMember(s.Name).Read()))
			continue
		}
		for _, f := range parser.FlattenFields(st, nil) {
			out = append(out, fmt.Sprintf("%s.%s = %s.%s",
				to.AccessMember(m.Name).Read(), f.AccessPath, from.AccessMember(s.Name).Read(), f.AccessPath))
		}
	}
	return out
}

func selectors(when []int64, boolTag bool) string {
	parts := make([]string, 0, len(when))
	for _, v := range when {
		switch {
		case !boolTag:
			parts = append(parts, fmt.Sprint(v))
		case v == 0:
			parts = append(parts, "false")
		case v == 1:
			parts = append(parts, "true")
		}
	}
	return strings.Join(parts, ", ")
}

func isBool(t types.Type) bool {
	basic, ok := t.Underlying().(*types.Basic)
	return ok && basic.Kind() == types.Bool
}
