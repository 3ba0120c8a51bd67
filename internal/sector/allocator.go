package sector

import (
	"go.uber.org/zap"

	"github.com/seitarof/gen-bitpack/internal/config"
	"github.com/seitarof/gen-bitpack/internal/descriptor"
	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/resolver"
)

// Root is one top-level variable to serialize.
type Root struct {
	Name   string
	Struct *descriptor.Struct
}

// Member wraps the root as a member so it can be walked like a field.
func (r Root) Member() *descriptor.Member {
	return &descriptor.Member{
		Name:      r.Name,
		Type:      r.Struct.Type,
		InnerType: r.Struct.Type,
		Options:   resolver.Computed{Kind: resolver.KindStructure, ValueType: r.Struct.Type},
		Struct:    r.Struct,
	}
}

// Allocator places values greedily into sectors, splitting structs and
// arrays only when the next value does not fit the current sector.
type Allocator struct {
	count   int
	bits    int
	backend Backend
	logger  *zap.Logger

	sectors []*Sector
	wholes  []*descriptor.Struct
	seen    map[string]bool
}

// NewAllocator returns an allocator for the configured sector geometry.
// A nil backend records items without statements.
func NewAllocator(g config.Global, backend Backend, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		count:   g.SectorCount,
		bits:    g.SectorBits,
		backend: backend,
		logger:  logger,
		seen:    map[string]bool{},
	}
}

// Allocate lays out the roots in order. Sectors left unused are still
// returned so every configured sector has functions.
func (a *Allocator) Allocate(roots []Root) (*Layout, error) {
	a.sectors = []*Sector{{ID: 0, Capacity: a.bits}}
	a.wholes = nil
	a.seen = map[string]bool{}

	for _, r := range roots {
		m := r.Member()
		if err := a.place(Var(r.Name), m.View()); err != nil {
			return nil, err
		}
	}
	for len(a.sectors) < a.count {
		a.sectors = append(a.sectors, &Sector{ID: len(a.sectors), Capacity: a.bits})
	}

	for _, s := range a.sectors {
		a.logger.Debug("sector allocated",
			zap.Int("sector", s.ID),
			zap.Int("used", s.Used),
			zap.Int("items", len(s.Items)))
	}
	return &Layout{Sectors: a.sectors, Wholes: a.wholes}, nil
}

func (a *Allocator) current() *Sector {
	return a.sectors[len(a.sectors)-1]
}

func (a *Allocator) place(t Target, v descriptor.View) error {
	size := v.SizeInBits()
	if size <= a.current().Remaining() {
		return a.emit(t, v, size)
	}
	if v.IsArray() {
		return a.placeArray(t, v)
	}
	if s := v.Member.Struct; s != nil && v.Member.Options.Transform == nil {
		for _, m := range s.Members {
			if err := a.place(t.AccessMember(m.Name), m.View()); err != nil {
				return err
			}
		}
		return nil
	}
	return a.placeIndivisible(t, v, size)
}

// placeArray emits runs of whole elements while at least one fits and
// descends into a single element otherwise.
func (a *Allocator) placeArray(t Target, v descriptor.View) error {
	elemBits := v.ElemBits()
	n := v.Extent()
	for i := 0; i < n; {
		fit := n - i
		if elemBits > 0 {
			fit = min(fit, a.current().Remaining()/elemBits)
		}
		if fit > 0 {
			if err := a.emitRun(t, v, i, fit); err != nil {
				return err
			}
			i += fit
			continue
		}
		if err := a.place(t.AccessNth(i), v.Descend()); err != nil {
			return err
		}
		i++
	}
	return nil
}

func (a *Allocator) placeIndivisible(t Target, v descriptor.View, size int) error {
	if size > a.bits {
		what := "leaf"
		if v.Member.Union != nil {
			what = "union"
		}
		return diag.New(diag.KindUnsupported, diag.ReasonLeafExceedsSector).
			Subject(t.Path()).
			Detailf("%s of %d bits is larger than a sector of %d bits", what, size, a.bits).
			Note("only structs and arrays are split across sectors").
			Build()
	}
	if err := a.advance(t.Path()); err != nil {
		return err
	}
	return a.emit(t, v, size)
}

func (a *Allocator) advance(subject string) error {
	if len(a.sectors) >= a.count {
		return diag.New(diag.KindCapacity, diag.ReasonSectorsExhausted).
			Subject(subject).
			Detailf("all %d sectors of %d bits are full", a.count, a.bits).
			Build()
	}
	a.sectors = append(a.sectors, &Sector{ID: len(a.sectors), Capacity: a.bits})
	return nil
}

func (a *Allocator) emit(t Target, v descriptor.View, size int) error {
	if v.IsArray() {
		return a.emitRun(t, v, 0, v.Extent())
	}
	item := Item{Target: t, View: v, Bits: size}
	switch {
	case v.Member.Union != nil:
		item.Kind = ItemUnion
	case v.Member.Struct != nil:
		item.Kind = ItemWhole
	default:
		item.Kind = ItemLeaf
	}
	return a.commit(item)
}

func (a *Allocator) emitRun(t Target, v descriptor.View, start, count int) error {
	return a.commit(Item{
		Kind:   ItemRun,
		Target: t.AccessSlice(start, count),
		View:   v,
		Bits:   count * v.ElemBits(),
	})
}

func (a *Allocator) commit(item Item) error {
	s := a.current()
	if a.backend != nil {
		read, save, err := a.backend.Emit(item)
		if err != nil {
			return err
		}
		s.Read = append(s.Read, read...)
		s.Save = append(s.Save, save...)
	}
	s.Items = append(s.Items, item)
	s.Used += item.Bits
	a.note(item.View.Member)
	return nil
}

// note records the named structs serialized whole under m, parents
// before children.
func (a *Allocator) note(m *descriptor.Member) {
	switch {
	case m.Union != nil:
		u := m.Union
		if u.Internal {
			for _, shared := range u.SharedMembers(0) {
				a.note(shared)
			}
			for i := range u.Arms {
				for _, rest := range u.RestMembers(i) {
					a.note(rest)
				}
			}
			return
		}
		for _, arm := range u.Arms {
			a.note(arm)
		}
	case m.Struct != nil:
		s := m.Struct
		if s.Named() {
			if a.seen[s.ID] {
				return
			}
			a.seen[s.ID] = true
			a.wholes = append(a.wholes, s)
		}
		for _, sub := range s.Members {
			a.note(sub)
		}
	}
}
