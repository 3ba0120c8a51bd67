package parser

import "go/types"

// StructInfo holds the ordered field list of one struct type.
type StructInfo struct {
	Name    string
	PkgPath string
	PkgName string
	Type    types.Type
	Fields  []FieldInfo
}

// FieldInfo describes one struct field in declaration order.
type FieldInfo struct {
	Name       string
	AccessPath string
	TypeStr    string
	Type       types.Type
	Tag        string
	Embedded   bool
	IsExported bool
	EmbedFrom  string
}

// Directive is one `//bitpack:` comment line, with the prefix removed.
type Directive struct {
	Text string
	Pos  string
}

// RootVar is a package-level variable requested for serialization.
type RootVar struct {
	Name string
	Type types.Type
}
