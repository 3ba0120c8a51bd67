package matcher

import (
	"go/types"

	"github.com/seitarof/gen-bitpack/internal/parser"
)

// PrefixMatcher finds the leading fields that several structs share.
type PrefixMatcher interface {
	// CommonPrefix returns the longest run of leading fields, in order,
	// whose names and types agree across every list.
	CommonPrefix(lists [][]parser.FieldInfo) []parser.FieldInfo
}

// TagLocator finds a field by name within a matched prefix.
type TagLocator interface {
	Locate(prefix []parser.FieldInfo, name string) (int, bool)
}

type prefixMatcherImpl struct{}

type tagLocatorImpl struct{}

// NewPrefixMatcher returns default prefix matcher.
func NewPrefixMatcher() PrefixMatcher {
	return &prefixMatcherImpl{}
}

// NewTagLocator returns default tag locator.
func NewTagLocator() TagLocator {
	return &tagLocatorImpl{}
}

func (m *prefixMatcherImpl) CommonPrefix(lists [][]parser.FieldInfo) []parser.FieldInfo {
	if len(lists) == 0 {
		return nil
	}
	prefix := append([]parser.FieldInfo(nil), lists[0]...)
	for _, fields := range lists[1:] {
		if len(prefix) == 0 {
			break
		}
		n := 0
		for n < len(prefix) && n < len(fields) && sameField(prefix[n], fields[n]) {
			n++
		}
		prefix = prefix[:n]
	}
	return prefix
}

func (m *tagLocatorImpl) Locate(prefix []parser.FieldInfo, name string) (int, bool) {
	for i, f := range prefix {
		if f.AccessPath == name || f.Name == name {
			return i, true
		}
	}
	return -1, false
}

func sameField(a, b parser.FieldInfo) bool {
	if a.AccessPath != b.AccessPath {
		return false
	}
	if a.Type == nil || b.Type == nil {
		return a.TypeStr == b.TypeStr
	}
	return types.Identical(types.Unalias(a.Type), types.Unalias(b.Type))
}
