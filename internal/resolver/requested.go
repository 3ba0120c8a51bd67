package resolver

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/seitarof/gen-bitpack/internal/diag"
)

// TagKey is the struct tag key holding per-field options.
const TagKey = "bitpack"

// Level says where a set of options was written.
type Level int

const (
	// LevelField is a `bitpack:"..."` struct tag.
	LevelField Level = iota
	// LevelType is a `//bitpack:` directive on a type declaration.
	LevelType
	// LevelHeritable is the body of a named heritable option set.
	LevelHeritable
)

// Shape is the family of options a request implies.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeIntegral
	ShapeString
	ShapeBuffer
)

func (s Shape) String() string {
	switch s {
	case ShapeIntegral:
		return "integer"
	case ShapeString:
		return "string"
	case ShapeBuffer:
		return "buffer"
	default:
		return "none"
	}
}

// Transform names the pre-pack and post-unpack functions of a field.
type Transform struct {
	PrePack    string
	PostUnpack string
}

// Requested is the sparse set of options written at one place.
type Requested struct {
	Omit        bool
	Bits        *int
	Min         *int64
	Max         *int64
	String      bool
	Length      *int
	Terminator  *bool
	Buffer      bool
	Transform   *Transform
	Inherit     string
	Union       bool
	Tag         string
	InternalTag string
	When        []int64
	Default     string
}

// Shape returns the single shape the request implies. ok is false when
// options of more than one shape are present.
func (r Requested) Shape() (shape Shape, ok bool) {
	var shapes []Shape
	if r.Bits != nil || r.Min != nil || r.Max != nil {
		shapes = append(shapes, ShapeIntegral)
	}
	if r.String || r.Length != nil || r.Terminator != nil {
		shapes = append(shapes, ShapeString)
	}
	if r.Buffer {
		shapes = append(shapes, ShapeBuffer)
	}
	switch len(shapes) {
	case 0:
		return ShapeNone, true
	case 1:
		return shapes[0], true
	default:
		return shapes[0], false
	}
}

// IsZero reports whether nothing was requested.
func (r Requested) IsZero() bool {
	return reflect.DeepEqual(r, Requested{})
}

func (r Requested) terminated() bool {
	return r.Terminator != nil && *r.Terminator
}

// Overlay returns base with every option set in top taking precedence.
// When top implies a different shape than base, base's shape-specific
// options are dropped.
func Overlay(base, top Requested) Requested {
	out := base
	topShape, _ := top.Shape()
	baseShape, _ := base.Shape()
	if topShape != ShapeNone && baseShape != ShapeNone && topShape != baseShape {
		out.Bits, out.Min, out.Max = nil, nil, nil
		out.String, out.Length, out.Terminator = false, nil, nil
		out.Buffer = false
	}
	out.Omit = out.Omit || top.Omit
	if top.Bits != nil {
		out.Bits = top.Bits
	}
	if top.Min != nil {
		out.Min = top.Min
	}
	if top.Max != nil {
		out.Max = top.Max
	}
	out.String = out.String || top.String
	if top.Length != nil {
		out.Length = top.Length
	}
	if top.Terminator != nil {
		out.Terminator = top.Terminator
	}
	out.Buffer = out.Buffer || top.Buffer
	if top.Transform != nil {
		out.Transform = top.Transform
	}
	if top.Inherit != "" {
		out.Inherit = top.Inherit
	}
	out.Union = out.Union || top.Union
	if top.Tag != "" {
		out.Tag = top.Tag
	}
	if top.InternalTag != "" {
		out.InternalTag = top.InternalTag
	}
	if len(top.When) > 0 {
		out.When = top.When
	}
	if top.Default != "" {
		out.Default = top.Default
	}
	return out
}

// ParseTag reads the `bitpack` key of a raw struct tag.
func ParseTag(structTag string, subject string) (Requested, error) {
	value, ok := reflect.StructTag(structTag).Lookup(TagKey)
	if !ok {
		return Requested{}, nil
	}
	return ParseOptions(value, subject, LevelField)
}

// ParseOptions parses a comma or space separated option list. Separators
// inside double quotes belong to the option value.
func ParseOptions(text string, subject string, level Level) (Requested, error) {
	var req Requested
	items, err := splitOptions(text)
	if err != nil {
		return Requested{}, malformed(subject, "default", err.Error())
	}
	for _, item := range items {
		key, value, hasValue := strings.Cut(item, "=")
		if err := req.apply(key, value, hasValue, subject, level); err != nil {
			return Requested{}, err
		}
	}
	if _, ok := req.Shape(); !ok {
		return Requested{}, conflictingShapes(subject, req)
	}
	return req, nil
}

func (r *Requested) apply(key, value string, hasValue bool, subject string, level Level) error {
	needValue := func() error {
		if !hasValue || value == "" {
			return malformed(subject, key, "expects a value")
		}
		return nil
	}
	noValue := func() error {
		if hasValue {
			return malformed(subject, key, "takes no value")
		}
		return nil
	}

	switch key {
	case "-", "omit":
		if err := noValue(); err != nil {
			return err
		}
		r.Omit = true
	case "bits":
		if err := needValue(); err != nil {
			return err
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return malformed(subject, key, "is not an integer: "+value)
		}
		r.Bits = &n
	case "min", "max":
		if err := needValue(); err != nil {
			return err
		}
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return malformed(subject, key, "is not an integer: "+value)
		}
		if key == "min" {
			r.Min = &v
		} else {
			r.Max = &v
		}
	case "range":
		if err := needValue(); err != nil {
			return err
		}
		lo, hi, ok := strings.Cut(value, ":")
		if !ok {
			return malformed(subject, key, "must be written as min:max")
		}
		minV, err1 := strconv.ParseInt(lo, 0, 64)
		maxV, err2 := strconv.ParseInt(hi, 0, 64)
		if err1 != nil || err2 != nil {
			return malformed(subject, key, "bounds must be integers: "+value)
		}
		r.Min, r.Max = &minV, &maxV
	case "string":
		if err := noValue(); err != nil {
			return err
		}
		r.String = true
	case "length":
		if err := needValue(); err != nil {
			return err
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return malformed(subject, key, "is not an integer: "+value)
		}
		r.Length = &n
	case "terminator":
		t := true
		if hasValue {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return malformed(subject, key, "is not a boolean: "+value)
			}
			t = b
		}
		r.Terminator = &t
	case "buffer":
		if err := noValue(); err != nil {
			return err
		}
		r.Buffer = true
	case "transform":
		if err := needValue(); err != nil {
			return err
		}
		pre, post, ok := strings.Cut(value, ":")
		if !ok || pre == "" || post == "" {
			return malformed(subject, key, "must be written as PrePack:PostUnpack")
		}
		r.Transform = &Transform{PrePack: pre, PostUnpack: post}
	case "inherit":
		if level == LevelHeritable {
			return unknownOption(subject, key, level)
		}
		if err := needValue(); err != nil {
			return err
		}
		r.Inherit = value
	case "union":
		if level != LevelType {
			return unknownOption(subject, key, level)
		}
		if err := noValue(); err != nil {
			return err
		}
		r.Union = true
	case "tag", "internal_tag":
		if level != LevelField {
			return unknownOption(subject, key, level)
		}
		if err := needValue(); err != nil {
			return err
		}
		if key == "tag" {
			r.Tag = value
		} else {
			r.InternalTag = value
		}
	case "default":
		if level != LevelField {
			return unknownOption(subject, key, level)
		}
		if err := needValue(); err != nil {
			return err
		}
		r.Default = value
	case "when":
		if level != LevelField {
			return unknownOption(subject, key, level)
		}
		if err := needValue(); err != nil {
			return err
		}
		for _, part := range strings.Split(value, "|") {
			v, err := strconv.ParseInt(part, 0, 64)
			if err != nil {
				return malformed(subject, key, "arm values must be integers: "+value)
			}
			r.When = append(r.When, v)
		}
	default:
		return unknownOption(subject, key, level)
	}
	return nil
}

func splitOptions(text string) ([]string, error) {
	var items []string
	var cur strings.Builder
	quoted, escaped := false, false
	flush := func() {
		if cur.Len() > 0 {
			items = append(items, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ',' || unicode.IsSpace(r)):
			flush()
			continue
		}
		cur.WriteRune(r)
	}
	if quoted {
		return nil, errors.New("has an unterminated string")
	}
	flush()
	return items, nil
}

func malformed(subject, key, detail string) error {
	return diag.Configuration(diag.ReasonMalformedOption, subject, "option %q %s", key, detail)
}

func unknownOption(subject, key string, level Level) error {
	where := "field tag"
	switch level {
	case LevelType:
		where = "type directive"
	case LevelHeritable:
		where = "heritable option set"
	}
	return diag.Configuration(diag.ReasonUnknownOption, subject, "unknown option %q in %s", key, where)
}

func conflictingShapes(subject string, req Requested) error {
	var names []string
	if req.Bits != nil || req.Min != nil || req.Max != nil {
		names = append(names, ShapeIntegral.String())
	}
	if req.String || req.Length != nil || req.Terminator != nil {
		names = append(names, ShapeString.String())
	}
	if req.Buffer {
		names = append(names, ShapeBuffer.String())
	}
	return diag.New(diag.KindConfiguration, diag.ReasonConflictingShapes).
		Subject(subject).
		Detailf("%s options cannot be combined", strings.Join(names, " and ")).
		Build()
}
