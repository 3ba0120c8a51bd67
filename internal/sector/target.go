package sector

import (
	"fmt"
	"strconv"
	"strings"
)

// Span is a contiguous run of array elements.
type Span struct {
	Start int
	Count int
}

// End returns the index one past the run.
func (s Span) End() int {
	return s.Start + s.Count
}

// Target names a value from both sides of a serialization: the
// expression read code assigns to and the one save code takes from.
// It owns nothing and is passed by value.
type Target struct {
	read string
	save string
	path string
	span *Span
}

// Var targets a package-level variable.
func Var(name string) Target {
	return Target{read: name, save: name, path: name}
}

// Dual targets a value reached through different expressions on each
// side, such as the dst and src parameters of a whole-struct function.
func Dual(read, save, path string) Target {
	return Target{read: read, save: save, path: path}
}

// Read returns the expression read code assigns to.
func (t Target) Read() string { return t.read }

// Save returns the expression save code takes values from.
func (t Target) Save() string { return t.save }

// Path returns the logical path used in reports and diagnostics.
func (t Target) Path() string {
	if t.span != nil {
		return fmt.Sprintf("%s[%d:%d]", t.path, t.span.Start, t.span.End())
	}
	return t.path
}

// Span returns the element run of a sliced target.
func (t Target) Span() (Span, bool) {
	if t.span == nil {
		return Span{}, false
	}
	return *t.span, true
}

// AccessMember narrows to a struct field.
func (t Target) AccessMember(name string) Target {
	return Target{
		read: t.read + "." + name,
		save: t.save + "." + name,
		path: t.path + "." + name,
	}
}

// Sibling moves to another field of the struct holding t. t must have
// been reached through AccessMember.
func (t Target) Sibling(name string) Target {
	trim := func(s string) string {
		if i := strings.LastIndexByte(s, '.'); i >= 0 {
			return s[:i+1] + name
		}
		return name
	}
	return Target{read: trim(t.read), save: trim(t.save), path: trim(t.path)}
}

// AccessNth narrows to one array element.
func (t Target) AccessNth(i int) Target {
	return t.AccessIndex(strconv.Itoa(i))
}

// AccessIndex narrows to the element selected by an index expression.
func (t Target) AccessIndex(expr string) Target {
	suffix := "[" + expr + "]"
	return Target{
		read: t.read + suffix,
		save: t.save + suffix,
		path: t.path + suffix,
	}
}

// AccessSlice narrows to count elements starting at start.
func (t Target) AccessSlice(start, count int) Target {
	return Target{
		read: t.read,
		save: t.save,
		path: t.path,
		span: &Span{Start: start, Count: count},
	}
}
