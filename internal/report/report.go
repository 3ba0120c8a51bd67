// Package report describes a finished generation run: the computed
// options of every described type and the content of every sector.
package report

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/seitarof/gen-bitpack/internal/config"
	"github.com/seitarof/gen-bitpack/internal/descriptor"
	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/resolver"
	"github.com/seitarof/gen-bitpack/internal/sector"
)

// Document is the top-level report.
type Document struct {
	Package     string    `json:"package"`
	SectorCount int       `json:"sector_count"`
	SectorBits  int       `json:"sector_bits"`
	Heritables  []string  `json:"heritables,omitempty"`
	Types       []Type    `json:"types"`
	Sectors     []Sector  `json:"sectors"`
	Warnings    []Warning `json:"warnings,omitempty"`
}

// Type is one described struct.
type Type struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Bits    int      `json:"bits"`
	Members []Member `json:"members"`
}

// Member is one serialized field and its computed options.
type Member struct {
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Extents    []int      `json:"extents,omitempty"`
	Elements   int        `json:"elements,omitempty"`
	Bits       int        `json:"bits"`
	Bitcount   int        `json:"bitcount,omitempty"`
	Min        *int64     `json:"min,omitempty"`
	Max        *int64     `json:"max,omitempty"`
	Signed     bool       `json:"signed,omitempty"`
	Length     int        `json:"length,omitempty"`
	Terminated bool       `json:"terminated,omitempty"`
	Bytecount  int        `json:"bytecount,omitempty"`
	Default    string     `json:"default,omitempty"`
	Transform  *Transform `json:"transform,omitempty"`
	Type       string     `json:"type,omitempty"`
	Union      *Union     `json:"union,omitempty"`
	When       []int64    `json:"when,omitempty"`
}

// Transform names the functions converting a member around packing.
type Transform struct {
	PrePack    string `json:"pre_pack"`
	PostUnpack string `json:"post_unpack"`
}

// Union describes a tagged union member.
type Union struct {
	Tag        string   `json:"tag"`
	Internal   bool     `json:"internal"`
	SharedBits int      `json:"shared_bits,omitempty"`
	Arms       []Member `json:"arms"`
}

// Sector lists the values stored in one sector.
type Sector struct {
	ID       int    `json:"id"`
	Capacity int    `json:"capacity"`
	Used     int    `json:"used"`
	Items    []Item `json:"items"`
}

// Item is one placed value.
type Item struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Bits  int    `json:"bits"`
	Start *int   `json:"start,omitempty"`
	Count *int   `json:"count,omitempty"`
}

// Warning is a non-fatal diagnostic raised during the run.
type Warning struct {
	Reason  string `json:"reason"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

// Build assembles the report from the run's read-only results.
// heritables names the option sets defined for the run.
func Build(pkg string, global config.Global, heritables []string, structs []*descriptor.Struct, layout *sector.Layout, warnings []diag.Warning) Document {
	doc := Document{
		Package:     pkg,
		SectorCount: global.SectorCount,
		SectorBits:  global.SectorBits,
		Heritables:  heritables,
		Types:       make([]Type, 0, len(structs)),
		Sectors:     make([]Sector, 0, len(layout.Sectors)),
	}
	for _, s := range structs {
		t := Type{ID: s.ID, Name: s.Name, Bits: s.Bits, Members: make([]Member, 0, len(s.Members))}
		for _, m := range s.Members {
			t.Members = append(t.Members, member(m))
		}
		doc.Types = append(doc.Types, t)
	}
	for _, s := range layout.Sectors {
		out := Sector{ID: s.ID, Capacity: s.Capacity, Used: s.Used, Items: make([]Item, 0, len(s.Items))}
		for _, it := range s.Items {
			item := Item{Path: it.Target.Path(), Kind: it.Kind.String(), Bits: it.Bits}
			if span, ok := it.Target.Span(); ok {
				item.Start, item.Count = &span.Start, &span.Count
			}
			out.Items = append(out.Items, item)
		}
		doc.Sectors = append(doc.Sectors, out)
	}
	for _, w := range warnings {
		doc.Warnings = append(doc.Warnings, Warning{Reason: string(w.Reason), Subject: w.Subject, Detail: w.Detail})
	}
	return doc
}

func member(m *descriptor.Member) Member {
	c := m.Options
	out := Member{
		Name:    m.Name,
		Kind:    c.Kind.String(),
		Extents: m.Extents,
		Bits:    m.SizeInBits(),
		When:    m.When,
	}
	if len(m.Extents) > 0 {
		out.Elements = m.Count()
	}
	switch c.Kind {
	case resolver.KindInteger, resolver.KindPointer:
		out.Bitcount = c.Bitcount
		out.Signed = c.Signed
		minV, maxV := c.Min, c.Max
		out.Min, out.Max = &minV, &maxV
	case resolver.KindString:
		out.Length = c.Length
		out.Terminated = c.Terminated
	case resolver.KindBuffer:
		out.Bytecount = c.Bytecount
	case resolver.KindDefaulted:
		out.Default = c.Default
	case resolver.KindStructure:
		out.Type = m.Struct.ID
	case resolver.KindUnionExternal, resolver.KindUnionInternal:
		u := &Union{Tag: c.TagField, Internal: m.Union.Internal, SharedBits: m.Union.SharedBits()}
		for _, arm := range m.Union.Arms {
			u.Arms = append(u.Arms, member(arm))
		}
		out.Union = u
	}
	if tr := c.Transform; tr != nil {
		out.Transform = &Transform{PrePack: tr.PrePack, PostUnpack: tr.PostUnpack}
	}
	return out
}

// Marshal encodes doc as indented JSON.
func Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report encode failed: %w", err)
	}
	return append(data, '\n'), nil
}

// Write encodes doc to path.
func Write(path string, doc Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("report write failed (%s): %w", path, err)
	}
	return nil
}
