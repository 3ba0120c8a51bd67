package sector

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seitarof/gen-bitpack/internal/config"
	"github.com/seitarof/gen-bitpack/internal/descriptor"
	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/parser"
	"github.com/seitarof/gen-bitpack/internal/resolver"
)

const layoutPkg = "github.com/seitarof/gen-bitpack/testdata/layout"

type fixture struct {
	save    *descriptor.Struct
	options *descriptor.Struct
	slot    *descriptor.Struct
}

func loadFixture(t *testing.T) fixture {
	t.Helper()
	pkg, err := parser.New().Load(layoutPkg)
	require.NoError(t, err)
	ctx, err := resolver.NewContext(config.Default(), nil, pkg, diag.NewReporter(nil))
	require.NoError(t, err)
	b := descriptor.NewBuilder(ctx, resolver.New(resolver.DefaultRules()...))

	build := func(name string) *descriptor.Struct {
		s, err := b.Build(pkg.Types.Scope().Lookup(name).Type())
		require.NoError(t, err, name)
		return s
	}
	return fixture{save: build("Save"), options: build("Options"), slot: build("Slot")}
}

func geometry(count, bits int) config.Global {
	g := config.Default()
	g.SectorCount = count
	g.SectorBits = bits
	return g
}

func paths(s *Sector) []string {
	out := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, it.Target.Path())
	}
	return out
}

func TestAllocate_SplitsAcrossSectors(t *testing.T) {
	f := loadFixture(t)

	layout, err := NewAllocator(geometry(8, 64), nil, nil).Allocate([]Root{{Name: "SaveData", Struct: f.save}})
	require.NoError(t, err)
	require.Len(t, layout.Sectors, 8)

	want := [][]string{
		{"SaveData.Header", "SaveData.Party[0:3]"},
		{"SaveData.Bag[0].ID", "SaveData.Bag[0].Count", "SaveData.Bag[1:3]", "SaveData.Bag[3].ID"},
		{"SaveData.Bag[3].Count", "SaveData.Name"},
		{"SaveData.Slots[0].Kind", "SaveData.Slots[0].Payload", "SaveData.Slots[1:2]", "SaveData.Event", "SaveData.Pos.X"},
		{"SaveData.Pos.Y", "SaveData.Scaled", "SaveData.Blob", "SaveData.Grid[0:2]"},
	}
	used := []int{59, 61, 63, 63, 60}
	for i, s := range layout.Sectors {
		assert.Equal(t, i, s.ID)
		assert.Equal(t, 64, s.Capacity)
		if i >= len(want) {
			assert.True(t, s.Empty(), "sector %d", i)
			continue
		}
		assert.Equal(t, want[i], paths(s), "sector %d", i)
		assert.Equal(t, used[i], s.Used, "sector %d", i)
	}

	kinds := []ItemKind{}
	for _, it := range layout.Sectors[3].Items {
		kinds = append(kinds, it.Kind)
	}
	assert.Equal(t, []ItemKind{ItemLeaf, ItemUnion, ItemRun, ItemUnion, ItemLeaf}, kinds)
	assert.Equal(t, ItemWhole, layout.Sectors[0].Items[0].Kind)
}

func TestAllocate_Wholes(t *testing.T) {
	f := loadFixture(t)

	layout, err := NewAllocator(geometry(8, 64), nil, nil).Allocate([]Root{{Name: "SaveData", Struct: f.save}})
	require.NoError(t, err)

	names := []string{}
	for _, s := range layout.Wholes {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Header", "Mon", "Item", "Slot", "EventBase", "Point"}, names)
}

func TestAllocate_WholeRootWhenItFits(t *testing.T) {
	f := loadFixture(t)

	layout, err := NewAllocator(geometry(1, 400), nil, nil).Allocate([]Root{{Name: "SaveData", Struct: f.save}})
	require.NoError(t, err)
	require.Len(t, layout.Sectors, 1)
	require.Len(t, layout.Sectors[0].Items, 1)

	item := layout.Sectors[0].Items[0]
	assert.Equal(t, ItemWhole, item.Kind)
	assert.Equal(t, 306, item.Bits)
	assert.Equal(t, "Save", layout.Wholes[0].Name)
}

func TestAllocate_EmptySectorsAreKept(t *testing.T) {
	f := loadFixture(t)

	layout, err := NewAllocator(geometry(4, 64), nil, nil).Allocate([]Root{{Name: "Settings", Struct: f.options}})
	require.NoError(t, err)
	require.Len(t, layout.Sectors, 4)
	assert.Equal(t, 9, layout.Sectors[0].Used)
	for _, s := range layout.Sectors[1:] {
		assert.True(t, s.Empty())
		assert.Zero(t, s.Used)
	}
}

func TestAllocate_SectorsExhausted(t *testing.T) {
	f := loadFixture(t)

	_, err := NewAllocator(geometry(4, 64), nil, nil).Allocate([]Root{{Name: "SaveData", Struct: f.save}})
	require.Error(t, err)
	var de *diag.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, diag.KindCapacity, de.Kind)
	assert.Equal(t, diag.ReasonSectorsExhausted, de.Reason)
	assert.Equal(t, "SaveData.Pos.Y", de.Subject)
}

func TestAllocate_UnionLargerThanSector(t *testing.T) {
	f := loadFixture(t)

	_, err := NewAllocator(geometry(4, 16), nil, nil).Allocate([]Root{{Name: "S", Struct: f.slot}})
	require.Error(t, err)
	var de *diag.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, diag.KindUnsupported, de.Kind)
	assert.Equal(t, diag.ReasonLeafExceedsSector, de.Reason)
	assert.Equal(t, "S.Payload", de.Subject)
}

func TestAllocate_Partition(t *testing.T) {
	f := loadFixture(t)
	roots := []Root{{Name: "SaveData", Struct: f.save}, {Name: "Settings", Struct: f.options}}
	total := f.save.Bits + f.options.Bits

	for bits := 56; bits <= 160; bits += 7 {
		layout, err := NewAllocator(geometry(32, bits), nil, nil).Allocate(roots)
		require.NoError(t, err, "sector size %d", bits)

		sum := 0
		for i, s := range layout.Sectors {
			assert.LessOrEqual(t, s.Used, s.Capacity, "sector size %d, sector %d", bits, i)
			items := 0
			for _, it := range s.Items {
				items += it.Bits
			}
			assert.Equal(t, s.Used, items)
			sum += s.Used

			if i > 0 && !s.Empty() {
				prev := layout.Sectors[i-1]
				assert.Greater(t, s.Items[0].Bits, prev.Remaining(),
					"sector size %d: sector %d was left with room for %s", bits, i-1, s.Items[0].Target.Path())
			}
		}
		assert.Equal(t, total, sum, "sector size %d", bits)
	}
}

var indexPattern = regexp.MustCompile(`\[(\d+)(?::(\d+))?\]`)

// arrayExtents maps every array path reachable from prefix to its extent,
// one entry per rank.
func arrayExtents(prefix string, members []*descriptor.Member, out map[string]int) {
	for _, m := range members {
		bases := []string{prefix + "." + m.Name}
		for _, extent := range m.Extents {
			var next []string
			for _, base := range bases {
				out[base] = extent
				for i := 0; i < extent; i++ {
					next = append(next, fmt.Sprintf("%s[%d]", base, i))
				}
			}
			bases = next
		}
	}
}

// coverage counts, per array path, how often each index is serialized.
// Runs count once per index; an element descended into counts once no
// matter how many of its parts were placed.
func coverage(layout *Layout) map[string]map[int]int {
	runs := map[string]map[int]int{}
	descended := map[string]map[int]bool{}
	for _, s := range layout.Sectors {
		for _, it := range s.Items {
			path := it.Target.Path()
			for _, loc := range indexPattern.FindAllStringSubmatchIndex(path, -1) {
				base := path[:loc[0]]
				start, _ := strconv.Atoi(path[loc[2]:loc[3]])
				if runs[base] == nil {
					runs[base] = map[int]int{}
				}
				if loc[4] < 0 {
					if descended[base] == nil {
						descended[base] = map[int]bool{}
					}
					descended[base][start] = true
					continue
				}
				end, _ := strconv.Atoi(path[loc[4]:loc[5]])
				for i := start; i < end; i++ {
					runs[base][i]++
				}
			}
		}
	}
	for base, elems := range descended {
		for i := range elems {
			runs[base][i]++
		}
	}
	return runs
}

func TestAllocate_ArrayRunsPartitionEachArray(t *testing.T) {
	f := loadFixture(t)
	extents := map[string]int{}
	arrayExtents("SaveData", f.save.Members, extents)

	for bits := 56; bits <= 160; bits += 7 {
		layout, err := NewAllocator(geometry(32, bits), nil, nil).
			Allocate([]Root{{Name: "SaveData", Struct: f.save}})
		require.NoError(t, err, "sector size %d", bits)

		covered := coverage(layout)
		for _, top := range []string{"SaveData.Party", "SaveData.Bag", "SaveData.Slots", "SaveData.Grid"} {
			assert.Contains(t, covered, top, "sector size %d", bits)
		}
		for base, counts := range covered {
			extent, ok := extents[base]
			require.True(t, ok, "sector size %d: unknown array %s", bits, base)
			for i := 0; i < extent; i++ {
				assert.Equal(t, 1, counts[i], "sector size %d: %s[%d]", bits, base, i)
			}
			for i := range counts {
				assert.True(t, i >= 0 && i < extent, "sector size %d: %s[%d] out of range", bits, base, i)
			}
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	run := func() ([][]string, []string) {
		f := loadFixture(t)
		layout, err := NewAllocator(geometry(8, 72), nil, nil).Allocate([]Root{
			{Name: "SaveData", Struct: f.save},
			{Name: "Settings", Struct: f.options},
		})
		require.NoError(t, err)
		var sectors [][]string
		for _, s := range layout.Sectors {
			sectors = append(sectors, paths(s))
		}
		var wholes []string
		for _, s := range layout.Wholes {
			wholes = append(wholes, s.ID)
		}
		return sectors, wholes
	}

	firstSectors, firstWholes := run()
	secondSectors, secondWholes := run()
	assert.Equal(t, firstSectors, secondSectors)
	assert.Equal(t, firstWholes, secondWholes)
}

type recordingBackend struct {
	fail string
}

func (b recordingBackend) Emit(item Item) ([]string, []string, error) {
	if item.Target.Path() == b.fail {
		return nil, nil, errors.New("boom")
	}
	return []string{"read " + item.Target.Path()}, []string{"save " + item.Target.Path()}, nil
}

func TestAllocate_Backend(t *testing.T) {
	f := loadFixture(t)

	layout, err := NewAllocator(geometry(2, 64), recordingBackend{}, nil).
		Allocate([]Root{{Name: "Settings", Struct: f.options}})
	require.NoError(t, err)
	assert.Equal(t, []string{"read Settings"}, layout.Sectors[0].Read)
	assert.Equal(t, []string{"save Settings"}, layout.Sectors[0].Save)
	assert.Empty(t, layout.Sectors[1].Read)

	_, err = NewAllocator(geometry(2, 64), recordingBackend{fail: "Settings"}, nil).
		Allocate([]Root{{Name: "Settings", Struct: f.options}})
	assert.EqualError(t, err, "boom")
}

func TestTarget_Access(t *testing.T) {
	root := Dual("dst", "src", "Save")

	party := root.AccessMember("Party").AccessNth(2).AccessMember("Level")
	assert.Equal(t, "dst.Party[2].Level", party.Read())
	assert.Equal(t, "src.Party[2].Level", party.Save())
	assert.Equal(t, "Save.Party[2].Level", party.Path())

	run := root.AccessMember("Bag").AccessSlice(1, 2)
	span, ok := run.Span()
	require.True(t, ok)
	assert.Equal(t, Span{Start: 1, Count: 2}, span)
	assert.Equal(t, 3, span.End())
	assert.Equal(t, "dst.Bag", run.Read())
	assert.Equal(t, "Save.Bag[1:3]", run.Path())

	tag := root.AccessMember("Slots").AccessNth(0).AccessMember("Payload").Sibling("Kind")
	assert.Equal(t, "dst.Slots[0].Kind", tag.Read())
	assert.Equal(t, "Save.Slots[0].Kind", tag.Path())

	elem := run.AccessIndex("i0")
	_, ok = elem.Span()
	assert.False(t, ok)
	assert.Equal(t, "src.Bag[i0]", elem.Save())

	v := Var("SaveData").AccessMember("Grid").AccessNth(1)
	assert.Equal(t, "SaveData.Grid[1]", v.Read())
	assert.Equal(t, "SaveData.Grid[1]", v.Save())
	assert.Equal(t, "SaveData.Grid[1]", v.Path())
}
