package resolver

import (
	"reflect"
	"sort"
	"strings"

	"github.com/seitarof/gen-bitpack/internal/config"
	"github.com/seitarof/gen-bitpack/internal/diag"
)

// Heritable is a named option set fields and types may inherit from.
type Heritable struct {
	Name    string
	Shape   Shape
	Options Requested
	Origin  string
}

// Registry holds the heritable option sets of one generation run.
type Registry struct {
	sets     map[string]Heritable
	reporter *diag.Reporter
}

// NewRegistry creates an empty registry reporting through reporter.
func NewRegistry(reporter *diag.Reporter) *Registry {
	if reporter == nil {
		reporter = diag.NewReporter(nil)
	}
	return &Registry{sets: map[string]Heritable{}, reporter: reporter}
}

// Define registers h. Redefining a name with identical content is a
// warning; any other redefinition is an error.
func (r *Registry) Define(h Heritable) error {
	subject := "heritable " + h.Name
	prev, exists := r.sets[h.Name]
	if !exists {
		r.sets[h.Name] = h
		return nil
	}
	if prev.Shape != h.Shape {
		return diag.New(diag.KindConfiguration, diag.ReasonHeritableShapeMismatch).
			Subject(subject).
			Detailf("redefined as %s, previously %s", h.Shape, prev.Shape).
			Note("previous definition at %s", prev.Origin).
			Build()
	}
	if !reflect.DeepEqual(prev.Options, h.Options) {
		return diag.New(diag.KindConfiguration, diag.ReasonHeritableRedefined).
			Subject(subject).
			Detail("redefined with different options").
			Note("previous definition at %s", prev.Origin).
			Build()
	}
	r.reporter.Warn(diag.ReasonHeritableRedefined, subject,
		"identical redefinition at "+h.Origin+" ignored")
	return nil
}

// Lookup finds a heritable set by name.
func (r *Registry) Lookup(name string) (Heritable, bool) {
	h, ok := r.sets[name]
	return h, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HeritableFromConfig converts a `[heritable.<name>]` table.
func HeritableFromConfig(name string, c config.HeritableConfig) (Heritable, error) {
	subject := "heritable " + name
	shape, err := parseHeritableKind(c.Kind, subject)
	if err != nil {
		return Heritable{}, err
	}
	req := Requested{
		Bits:       c.Bits,
		Min:        c.Min,
		Max:        c.Max,
		Length:     c.Length,
		Terminator: c.Terminator,
	}
	if shape == ShapeString {
		req.String = true
	}
	if c.PrePack != "" || c.PostUnpack != "" {
		if c.PrePack == "" || c.PostUnpack == "" {
			return Heritable{}, diag.Configuration(diag.ReasonMalformedOption, subject,
				"pre_pack and post_unpack must be given together")
		}
		req.Transform = &Transform{PrePack: c.PrePack, PostUnpack: c.PostUnpack}
	}
	return newHeritable(name, shape, req, "config")
}

// ParseHeritableDirective reads `heritable <integer|string> <name> opts`.
func ParseHeritableDirective(text, pos string) (Heritable, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 || fields[0] != "heritable" {
		return Heritable{}, diag.Configuration(diag.ReasonMalformedOption, pos,
			"heritable directive must read `heritable <integer|string> <name> [options]`")
	}
	name := fields[2]
	subject := "heritable " + name
	shape, err := parseHeritableKind(fields[1], subject)
	if err != nil {
		return Heritable{}, err
	}
	req, err := ParseOptions(strings.Join(fields[3:], ","), subject, LevelHeritable)
	if err != nil {
		return Heritable{}, err
	}
	if shape == ShapeString {
		req.String = true
	}
	return newHeritable(name, shape, req, pos)
}

func newHeritable(name string, shape Shape, req Requested, origin string) (Heritable, error) {
	subject := "heritable " + name
	got, ok := req.Shape()
	if !ok {
		return Heritable{}, conflictingShapes(subject, req)
	}
	if got != ShapeNone && got != shape {
		return Heritable{}, diag.Configuration(diag.ReasonHeritableShapeMismatch, subject,
			"declared %s but carries %s options", shape, got)
	}
	return Heritable{Name: name, Shape: shape, Options: req, Origin: origin}, nil
}

func parseHeritableKind(kind, subject string) (Shape, error) {
	switch kind {
	case "integer":
		return ShapeIntegral, nil
	case "string":
		return ShapeString, nil
	default:
		return ShapeNone, diag.Configuration(diag.ReasonMalformedOption, subject,
			"kind must be \"integer\" or \"string\" (seen: %q)", kind)
	}
}
