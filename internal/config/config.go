package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/seitarof/gen-bitpack/internal/diag"
)

// DefaultBitstreamImport is the runtime package generated code calls into.
const DefaultBitstreamImport = "github.com/seitarof/gen-bitpack/bitstream"

// Funcs names the stream primitives generated code calls.
type Funcs struct {
	Initialize            string `toml:"initialize"`
	ReadBool              string `toml:"read_bool"`
	ReadU8                string `toml:"read_u8"`
	ReadU16               string `toml:"read_u16"`
	ReadU32               string `toml:"read_u32"`
	ReadU64               string `toml:"read_u64"`
	ReadS8                string `toml:"read_s8"`
	ReadS16               string `toml:"read_s16"`
	ReadS32               string `toml:"read_s32"`
	ReadS64               string `toml:"read_s64"`
	ReadString            string `toml:"read_string"`
	ReadStringTerminated  string `toml:"read_string_terminated"`
	ReadBuffer            string `toml:"read_buffer"`
	WriteBool             string `toml:"write_bool"`
	WriteU8               string `toml:"write_u8"`
	WriteU16              string `toml:"write_u16"`
	WriteU32              string `toml:"write_u32"`
	WriteU64              string `toml:"write_u64"`
	WriteS8               string `toml:"write_s8"`
	WriteS16              string `toml:"write_s16"`
	WriteS32              string `toml:"write_s32"`
	WriteS64              string `toml:"write_s64"`
	WriteString           string `toml:"write_string"`
	WriteStringTerminated string `toml:"write_string_terminated"`
	WriteBuffer           string `toml:"write_buffer"`
}

// HeritableConfig is one named option set as written in the config file.
type HeritableConfig struct {
	Kind       string `toml:"kind"`
	Bits       *int   `toml:"bits"`
	Min        *int64 `toml:"min"`
	Max        *int64 `toml:"max"`
	Length     *int   `toml:"length"`
	Terminator *bool  `toml:"terminator"`
	PrePack    string `toml:"pre_pack"`
	PostUnpack string `toml:"post_unpack"`
}

// File mirrors the TOML document.
type File struct {
	SectorCount     int                        `toml:"sector_count"`
	SectorSize      int                        `toml:"sector_size"`
	SectorSizeBits  int                        `toml:"sector_size_bits"`
	BoolType        string                     `toml:"bool_type"`
	BufferByteType  string                     `toml:"buffer_byte_type"`
	StringCharType  string                     `toml:"string_char_type"`
	StateType       string                     `toml:"state_type"`
	BitstreamImport string                     `toml:"bitstream_import"`
	Funcs           Funcs                      `toml:"funcs"`
	Heritable       map[string]HeritableConfig `toml:"heritable"`
}

// Global is the resolved, immutable set of global options for one run.
type Global struct {
	SectorCount     int
	SectorBits      int
	BoolType        string
	BufferByteType  string
	StringCharType  string
	StateType       string
	BitstreamImport string
	Funcs           Funcs
}

// Default returns the options used when no config file is given.
func Default() Global {
	return Global{
		SectorCount:     1,
		SectorBits:      4096 * 8,
		BoolType:        "bool",
		BufferByteType:  "uint8",
		StateType:       "*bitstream.State",
		BitstreamImport: DefaultBitstreamImport,
		Funcs:           defaultFuncs("bitstream"),
	}
}

func defaultFuncs(pkg string) Funcs {
	q := func(name string) string { return pkg + "." + name }
	return Funcs{
		Initialize:            q("New"),
		ReadBool:              q("ReadBool"),
		ReadU8:                q("ReadU8"),
		ReadU16:               q("ReadU16"),
		ReadU32:               q("ReadU32"),
		ReadU64:               q("ReadU64"),
		ReadS8:                q("ReadS8"),
		ReadS16:               q("ReadS16"),
		ReadS32:               q("ReadS32"),
		ReadS64:               q("ReadS64"),
		ReadString:            q("ReadString"),
		ReadStringTerminated:  q("ReadStringTerminated"),
		ReadBuffer:            q("ReadBuffer"),
		WriteBool:             q("WriteBool"),
		WriteU8:               q("WriteU8"),
		WriteU16:              q("WriteU16"),
		WriteU32:              q("WriteU32"),
		WriteU64:              q("WriteU64"),
		WriteS8:               q("WriteS8"),
		WriteS16:              q("WriteS16"),
		WriteS32:              q("WriteS32"),
		WriteS64:              q("WriteS64"),
		WriteString:           q("WriteString"),
		WriteStringTerminated: q("WriteStringTerminated"),
		WriteBuffer:           q("WriteBuffer"),
	}
}

// Load reads a TOML config file and resolves it against Default.
func Load(path string) (Global, map[string]HeritableConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Global{}, nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a TOML document and resolves it against Default.
func Parse(data []byte) (Global, map[string]HeritableConfig, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return Global{}, nil, fmt.Errorf("config parse failed: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Global{}, nil, diag.Configuration(
			diag.ReasonInvalidGlobalOptions,
			"global options",
			"unknown keys: %s", strings.Join(keys, ", "),
		)
	}
	g, err := Resolve(f)
	if err != nil {
		return Global{}, nil, err
	}
	return g, f.Heritable, nil
}

// Resolve fills unset fields from Default and validates the result.
func Resolve(f File) (Global, error) {
	g := Default()
	if f.SectorCount != 0 {
		g.SectorCount = f.SectorCount
	}
	switch {
	case f.SectorSizeBits != 0:
		g.SectorBits = f.SectorSizeBits
	case f.SectorSize != 0:
		g.SectorBits = f.SectorSize * 8
	}
	setIfNotEmpty(&g.BoolType, f.BoolType)
	setIfNotEmpty(&g.BufferByteType, f.BufferByteType)
	setIfNotEmpty(&g.StringCharType, f.StringCharType)
	setIfNotEmpty(&g.StateType, f.StateType)
	setIfNotEmpty(&g.BitstreamImport, f.BitstreamImport)
	mergeFuncs(&g.Funcs, f.Funcs)

	if err := Validate(g); err != nil {
		return Global{}, err
	}
	return g, nil
}

// Validate checks a fully resolved option set.
func Validate(g Global) error {
	if g.SectorCount <= 0 {
		return diag.Configuration(diag.ReasonInvalidGlobalOptions, "global options",
			"sector_count must be positive (seen: %d)", g.SectorCount)
	}
	if g.SectorBits <= 0 {
		return diag.Configuration(diag.ReasonInvalidGlobalOptions, "global options",
			"sector size must be positive (seen: %d bits)", g.SectorBits)
	}
	if strings.TrimSpace(g.StateType) == "" {
		return diag.Configuration(diag.ReasonInvalidGlobalOptions, "global options", "state_type is required")
	}
	for name, id := range g.Funcs.byName() {
		if strings.TrimSpace(id) == "" {
			return diag.Configuration(diag.ReasonInvalidGlobalOptions, "global options",
				"function identifier %q is empty", name)
		}
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func mergeFuncs(dst *Funcs, src Funcs) {
	d := dst.pointers()
	for name, v := range src.byName() {
		setIfNotEmpty(d[name], v)
	}
}

func (f *Funcs) pointers() map[string]*string {
	return map[string]*string{
		"initialize":              &f.Initialize,
		"read_bool":               &f.ReadBool,
		"read_u8":                 &f.ReadU8,
		"read_u16":                &f.ReadU16,
		"read_u32":                &f.ReadU32,
		"read_u64":                &f.ReadU64,
		"read_s8":                 &f.ReadS8,
		"read_s16":                &f.ReadS16,
		"read_s32":                &f.ReadS32,
		"read_s64":                &f.ReadS64,
		"read_string":             &f.ReadString,
		"read_string_terminated":  &f.ReadStringTerminated,
		"read_buffer":             &f.ReadBuffer,
		"write_bool":              &f.WriteBool,
		"write_u8":                &f.WriteU8,
		"write_u16":               &f.WriteU16,
		"write_u32":               &f.WriteU32,
		"write_u64":               &f.WriteU64,
		"write_s8":                &f.WriteS8,
		"write_s16":               &f.WriteS16,
		"write_s32":               &f.WriteS32,
		"write_s64":               &f.WriteS64,
		"write_string":            &f.WriteString,
		"write_string_terminated": &f.WriteStringTerminated,
		"write_buffer":            &f.WriteBuffer,
	}
}

func (f Funcs) byName() map[string]string {
	out := map[string]string{}
	for name, p := range f.pointers() {
		out[name] = *p
	}
	return out
}

// ReadUnsigned returns the unsigned read primitive wide enough for bits.
func (f Funcs) ReadUnsigned(bits int) (fn string, width int) {
	switch {
	case bits <= 8:
		return f.ReadU8, 8
	case bits <= 16:
		return f.ReadU16, 16
	case bits <= 32:
		return f.ReadU32, 32
	default:
		return f.ReadU64, 64
	}
}

// ReadSigned returns the signed read primitive wide enough for bits.
func (f Funcs) ReadSigned(bits int) (fn string, width int) {
	switch {
	case bits <= 8:
		return f.ReadS8, 8
	case bits <= 16:
		return f.ReadS16, 16
	case bits <= 32:
		return f.ReadS32, 32
	default:
		return f.ReadS64, 64
	}
}

// WriteUnsigned returns the unsigned write primitive wide enough for bits.
func (f Funcs) WriteUnsigned(bits int) (fn string, width int) {
	switch {
	case bits <= 8:
		return f.WriteU8, 8
	case bits <= 16:
		return f.WriteU16, 16
	case bits <= 32:
		return f.WriteU32, 32
	default:
		return f.WriteU64, 64
	}
}

// WriteSigned returns the signed write primitive wide enough for bits.
func (f Funcs) WriteSigned(bits int) (fn string, width int) {
	switch {
	case bits <= 8:
		return f.WriteS8, 8
	case bits <= 16:
		return f.WriteS16, 16
	case bits <= 32:
		return f.WriteS32, 32
	default:
		return f.WriteS64, 64
	}
}
