package parser

import (
	"strings"

	"go/types"
)

// FlattenFields lists the fields reachable from st in declaration order,
// descending into embedded structs in place of the embedded field itself.
// This is the field list two structs are compared on when they share a
// common leading layout.
func FlattenFields(st *types.Struct, qualifier types.Qualifier) []FieldInfo {
	var out []FieldInfo
	collectFlattenedFields(st, nil, "", qualifier, &out)
	return out
}

func collectFlattenedFields(
	st *types.Struct,
	prefix []string,
	embedFrom string,
	qualifier types.Qualifier,
	out *[]FieldInfo,
) {
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if f.Embedded() {
			embeddedStruct, embeddedName := resolveEmbeddedStruct(f.Type())
			if embeddedStruct != nil {
				nextEmbedFrom := embeddedName
				if nextEmbedFrom == "" {
					nextEmbedFrom = f.Name()
				}
				collectFlattenedFields(
					embeddedStruct,
					appendPath(prefix, f.Name()),
					nextEmbedFrom,
					qualifier,
					out,
				)
				continue
			}
		}

		*out = append(*out, FieldInfo{
			Name:       f.Name(),
			AccessPath: buildAccessPath(prefix, f.Name()),
			TypeStr:    types.TypeString(f.Type(), qualifier),
			Type:       f.Type(),
			Tag:        st.Tag(i),
			Embedded:   f.Embedded(),
			IsExported: f.Exported(),
			EmbedFrom:  embedFrom,
		})
	}
}

func appendPath(prefix []string, part string) []string {
	next := make([]string, 0, len(prefix)+1)
	next = append(next, prefix...)
	next = append(next, part)
	return next
}

func buildAccessPath(prefix []string, fieldName string) string {
	if len(prefix) == 0 {
		return fieldName
	}
	parts := appendPath(prefix, fieldName)
	return strings.Join(parts, ".")
}

func resolveEmbeddedStruct(t types.Type) (*types.Struct, string) {
	switch v := t.(type) {
	case *types.Alias:
		return resolveEmbeddedStruct(v.Rhs())
	case *types.Named:
		if st, ok := v.Underlying().(*types.Struct); ok {
			return st, v.Obj().Name()
		}
	}
	return nil, ""
}
