package parser

import (
	"go/types"
	"strings"
	"testing"
)

const (
	basicPkg  = "github.com/seitarof/gen-bitpack/testdata/parserbasic"
	nestedPkg = "github.com/seitarof/gen-bitpack/testdata/parsernested"
	embedPkg  = "github.com/seitarof/gen-bitpack/testdata/parserembed"
)

func TestParse_BasicStruct(t *testing.T) {
	p := New()

	info, err := p.Parse(basicPkg, "Member")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if info.Name != "Member" || info.PkgName != "parserbasic" {
		t.Fatalf("unexpected struct identity: %s.%s", info.PkgName, info.Name)
	}

	wantOrder := []string{"Species", "Moves", "Stats", "Level", "Color", "Name", "hidden"}
	if len(info.Fields) != len(wantOrder) {
		t.Fatalf("expected %d fields, got %d", len(wantOrder), len(info.Fields))
	}
	for i, want := range wantOrder {
		if info.Fields[i].Name != want {
			t.Fatalf("field[%d] = %s, want %s", i, info.Fields[i].Name, want)
		}
	}

	hidden := fieldByName(info.Fields, "hidden")
	if hidden == nil || hidden.IsExported {
		t.Fatalf("hidden should be kept as unexported field, got %#v", hidden)
	}

	level := fieldByName(info.Fields, "Level")
	if level == nil || level.Tag != `bitpack:"inherit=level"` {
		t.Fatalf("Level tag not preserved: %#v", level)
	}

	moves := fieldByName(info.Fields, "Moves")
	if moves == nil || moves.TypeStr != "[4]parsernested.Move" {
		t.Fatalf("Moves type string = %#v", moves)
	}
}

func TestParse_TypeNotFound(t *testing.T) {
	p := New()

	_, err := p.Parse(basicPkg, "NotExist")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParse_NotAStruct(t *testing.T) {
	p := New()

	_, err := p.Parse(basicPkg, "Color")
	if err == nil || !strings.Contains(err.Error(), "not a struct") {
		t.Fatalf("expected not-a-struct error, got %v", err)
	}
}

func TestPackage_TypeDirectives(t *testing.T) {
	pkg, err := New().Load(basicPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	name := lookupTypeName(t, pkg.Types, "Name")
	dirs := pkg.TypeDirectives(name)
	if len(dirs) != 1 || dirs[0].Text != "string,length=7" {
		t.Fatalf("Name directives = %#v", dirs)
	}

	slot := lookupTypeName(t, pkg.Types, "Slot")
	dirs = pkg.TypeDirectives(slot)
	if len(dirs) != 1 || dirs[0].Text != "bits=4" {
		t.Fatalf("Slot directives = %#v", dirs)
	}

	if dirs := pkg.TypeDirectives(lookupTypeName(t, pkg.Types, "Color")); len(dirs) != 0 {
		t.Fatalf("Color should carry no directives, got %#v", dirs)
	}
}

func TestPackage_TypeDirectivesFromNestedPackage(t *testing.T) {
	pkg, err := New().Load(basicPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	member := lookupTypeName(t, pkg.Types, "Member")
	st := member.Type().Underlying().(*types.Struct)
	species := st.Field(0).Type().(*types.Named).Obj()
	if species.Pkg().Path() != nestedPkg {
		t.Fatalf("unexpected package for Species: %s", species.Pkg().Path())
	}

	dirs := pkg.TypeDirectives(species)
	if len(dirs) != 1 || dirs[0].Text != "bits=11" {
		t.Fatalf("Species directives = %#v", dirs)
	}

	move := st.Field(1).Type().(*types.Array).Elem().(*types.Named).Obj()
	if dirs := pkg.TypeDirectives(move); len(dirs) != 0 {
		t.Fatalf("Move should carry no directives, got %#v", dirs)
	}
}

func TestPackage_HeritableDirectives(t *testing.T) {
	pkg, err := New().Load(basicPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	dirs := pkg.HeritableDirectives()
	if len(dirs) != 2 {
		t.Fatalf("expected 2 heritable directives, got %#v", dirs)
	}
	if dirs[0].Text != "heritable integer level bits=7" {
		t.Fatalf("unexpected first directive: %q", dirs[0].Text)
	}
	if !strings.Contains(dirs[1].Pos, "types.go") {
		t.Fatalf("directive position should name the file, got %q", dirs[1].Pos)
	}
}

func TestPackage_EnumValues(t *testing.T) {
	pkg, err := New().Load(basicPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	values := pkg.EnumValues(lookupTypeName(t, pkg.Types, "Color").Type())
	want := []int64{1, 2, 3}
	if len(values) != len(want) {
		t.Fatalf("EnumValues() = %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("EnumValues() = %v, want %v", values, want)
		}
	}

	if values := pkg.EnumValues(lookupTypeName(t, pkg.Types, "Slot").Type()); len(values) != 0 {
		t.Fatalf("Slot is not an enum, got %v", values)
	}
}

func TestPackage_LookupVarAndFunc(t *testing.T) {
	pkg, err := New().Load(basicPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	root, err := pkg.LookupVar("Player")
	if err != nil {
		t.Fatalf("LookupVar() error = %v", err)
	}
	if pkg.TypeString(root.Type) != "Save" {
		t.Fatalf("Player type = %s, want Save", pkg.TypeString(root.Type))
	}

	if _, err := pkg.LookupVar("Missing"); err == nil {
		t.Fatal("expected error for missing variable")
	}
	if _, err := pkg.LookupVar("Color"); err == nil || !strings.Contains(err.Error(), "not a variable") {
		t.Fatalf("expected not-a-variable error, got %v", err)
	}

	if _, ok := pkg.LookupFunc("PackLevel"); !ok {
		t.Fatal("PackLevel should be found")
	}
	if _, ok := pkg.LookupFunc("Player"); ok {
		t.Fatal("Player is not a function")
	}
}

func TestPackage_IsOutsideRoot(t *testing.T) {
	pkg, err := New().Load(basicPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	member := lookupTypeName(t, pkg.Types, "Member")
	st := member.Type().Underlying().(*types.Struct)
	if !pkg.IsOutsideRoot(st.Field(2).Type()) {
		t.Fatal("parsernested.Stats should be outside the root package")
	}
	if pkg.IsOutsideRoot(member.Type()) {
		t.Fatal("Member is declared in the root package")
	}
}

func TestFlattenFields_Embedded(t *testing.T) {
	pkg, err := New().Load(embedPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	record := lookupTypeName(t, pkg.Types, "Record")
	fields := FlattenFields(record.Type().Underlying().(*types.Struct), pkg.Qualifier)

	wantPaths := []string{"Base.ID", "Base.Name", "Inner.Code", "Score", "Flag", "hidden"}
	if len(fields) != len(wantPaths) {
		t.Fatalf("expected %d flattened fields, got %d", len(wantPaths), len(fields))
	}
	for i, want := range wantPaths {
		if fields[i].AccessPath != want {
			t.Fatalf("field[%d] access path = %q, want %q", i, fields[i].AccessPath, want)
		}
	}
	if fields[0].EmbedFrom != "Base" {
		t.Fatalf("ID embed source = %q, want Base", fields[0].EmbedFrom)
	}
	if fields[1].Tag != `bitpack:"string"` {
		t.Fatalf("Name tag not preserved: %q", fields[1].Tag)
	}
}

func TestPackage_FieldsKeepsEmbeddedAsOneField(t *testing.T) {
	pkg, err := New().Load(embedPkg)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	info, ok := pkg.StructInfo(lookupTypeName(t, pkg.Types, "Record").Type())
	if !ok {
		t.Fatal("Record should be a struct")
	}
	base := fieldByName(info.Fields, "Base")
	if base == nil || !base.Embedded {
		t.Fatalf("Base should be an embedded field, got %#v", base)
	}
}

func TestShouldRecurseNestedPackage(t *testing.T) {
	tests := []struct {
		name       string
		nestedPkg  string
		currentPkg string
		modulePath string
		want       bool
	}{
		{
			name:       "same package",
			nestedPkg:  "example.com/mod/a",
			currentPkg: "example.com/mod/a",
			modulePath: "example.com/mod",
			want:       true,
		},
		{
			name:       "same module different package",
			nestedPkg:  "example.com/mod/b",
			currentPkg: "example.com/mod/a",
			modulePath: "example.com/mod",
			want:       true,
		},
		{
			name:       "outside module",
			nestedPkg:  "time",
			currentPkg: "example.com/mod/a",
			modulePath: "example.com/mod",
			want:       false,
		},
		{
			name:       "empty module path only same package allowed",
			nestedPkg:  "example.com/other",
			currentPkg: "example.com/mod/a",
			modulePath: "",
			want:       false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := shouldRecurseNestedPackage(tc.nestedPkg, tc.currentPkg, tc.modulePath)
			if got != tc.want {
				t.Fatalf("shouldRecurseNestedPackage() = %v, want %v", got, tc.want)
			}
		})
	}
}

func fieldByName(fields []FieldInfo, name string) *FieldInfo {
	for i := range fields {
		if fields[i].Name == name {
			return &fields[i]
		}
	}
	return nil
}

func lookupTypeName(t *testing.T, pkg *types.Package, name string) *types.TypeName {
	t.Helper()
	obj, ok := pkg.Scope().Lookup(name).(*types.TypeName)
	if !ok {
		t.Fatalf("type %s not found in %s", name, pkg.Path())
	}
	return obj
}
