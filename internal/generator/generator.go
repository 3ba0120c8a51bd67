package generator

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/seitarof/gen-bitpack/internal/sector"
)

//go:embed templates/*.go.tmpl
var templateFS embed.FS

// Generator writes the serialization file for an allocated layout.
type Generator interface {
	Generate(cfg Config, layout *sector.Layout, backend *Backend) error
}

// Config is the minimum config contract required by generator.
type Config interface {
	OutputFilename() string
	ReadFuncName() string
	SaveFuncName() string
}

// Formatter formats generated Go code and organizes imports.
type Formatter interface {
	Format(filename string, src []byte) ([]byte, error)
}

// FileWriter writes generated code to disk.
type FileWriter interface {
	Write(filename string, data []byte) error
}

type generatorImpl struct {
	formatter Formatter
	writer    FileWriter
	tmpl      *template.Template
}

type goimportsFormatter struct{}

type fileWriter struct{}

type templateData struct {
	Package    string
	Imports    []string
	ReadName   string
	SaveName   string
	StateType  string
	Initialize string
	Sectors    []sectorTemplateData
	Wholes     []wholeTemplateData
}

type sectorTemplateData struct {
	ID       int
	Used     int
	Capacity int
	Read     []string
	Save     []string
}

type wholeTemplateData struct {
	ReadFunc string
	SaveFunc string
	Type     string
	Read     []string
	Save     []string
}

// New creates a code generator.
func New(f Formatter, w FileWriter) Generator {
	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"renderBody": renderBody,
	}).ParseFS(templateFS, "templates/*.go.tmpl"))
	return &generatorImpl{formatter: f, writer: w, tmpl: tmpl}
}

// NewGoimportsFormatter creates a formatter backed by goimports.
func NewGoimportsFormatter() Formatter {
	return &goimportsFormatter{}
}

// NewFileWriter creates a plain file writer.
func NewFileWriter() FileWriter {
	return &fileWriter{}
}

func (g *generatorImpl) Generate(cfg Config, layout *sector.Layout, backend *Backend) error {
	if layout == nil || len(layout.Sectors) == 0 {
		return fmt.Errorf("no sectors to generate")
	}

	data, err := buildTemplateData(cfg, layout, backend)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, "bitpack.go.tmpl", data); err != nil {
		return fmt.Errorf("template: %w", err)
	}

	formatted, err := g.formatter.Format(cfg.OutputFilename(), buf.Bytes())
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if err := g.writer.Write(cfg.OutputFilename(), formatted); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (f *goimportsFormatter) Format(filename string, src []byte) ([]byte, error) {
	return imports.Process(filename, src, nil)
}

func (w *fileWriter) Write(filename string, data []byte) error {
	return os.WriteFile(filename, data, 0o644)
}

func buildTemplateData(cfg Config, layout *sector.Layout, backend *Backend) (templateData, error) {
	data := templateData{
		Package:    backend.pkg.Name,
		ReadName:   cfg.ReadFuncName(),
		SaveName:   cfg.SaveFuncName(),
		StateType:  backend.global.StateType,
		Initialize: backend.global.Funcs.Initialize,
	}

	for _, s := range layout.Sectors {
		data.Sectors = append(data.Sectors, sectorTemplateData{
			ID:       s.ID,
			Used:     s.Used,
			Capacity: s.Capacity,
			Read:     s.Read,
			Save:     s.Save,
		})
	}

	for _, s := range layout.Wholes {
		read, save, err := backend.Whole(s)
		if err != nil {
			return templateData{}, fmt.Errorf("whole %s: %w", s.Name, err)
		}
		data.Wholes = append(data.Wholes, wholeTemplateData{
			ReadFunc: backend.ReadFunc(s),
			SaveFunc: backend.SaveFunc(s),
			Type:     backend.TypeName(s.Type),
			Read:     read,
			Save:     save,
		})
	}

	data.Imports = backend.Imports()
	return data, nil
}

func renderBody(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " ")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		b.WriteString("\t")
		b.WriteString(trimmed)
		b.WriteString("\n")
	}
	return b.String()
}
