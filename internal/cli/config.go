package cli

import "path/filepath"

const (
	defaultReadName = "BitpackRead"
	defaultSaveName = "BitpackSave"
	defaultFilename = "bitpack_gen.go"
)

// Config stores CLI options for a single generation run.
type Config struct {
	PkgPath     string
	Data        []string
	ConfigPath  string
	ReadName    string
	SaveName    string
	Filename    string
	ReportPath  string
	Verbose     bool
	ShowVersion bool

	outputDir string
}

// OutputFilename returns destination file path for generator layer.
// Relative names land in the package directory.
func (c *Config) OutputFilename() string {
	if c.outputDir == "" || filepath.IsAbs(c.Filename) {
		return c.Filename
	}
	return filepath.Join(c.outputDir, c.Filename)
}

// ReadFuncName returns the name of the generated read dispatcher.
func (c *Config) ReadFuncName() string {
	return c.ReadName
}

// SaveFuncName returns the name of the generated save dispatcher.
func (c *Config) SaveFuncName() string {
	return c.SaveName
}
