package cli

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/spf13/pflag"
)

// ParseArgs parses command line arguments into Config.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}
	var dataRaw string

	fs := pflag.NewFlagSet("bitpack-gen", pflag.ContinueOnError)
	fs.StringVarP(&cfg.PkgPath, "pkg", "p", ".", "package holding the data variables")
	fs.StringVarP(&dataRaw, "data", "d", "", "comma-separated package-level variables to serialize")
	fs.StringVarP(&cfg.ConfigPath, "config", "c", "", "TOML file with global options")
	fs.StringVar(&cfg.ReadName, "read-name", defaultReadName, "name of the generated read function")
	fs.StringVar(&cfg.SaveName, "save-name", defaultSaveName, "name of the generated save function")
	fs.StringVarP(&cfg.Filename, "filename", "o", defaultFilename, "output file name")
	fs.StringVar(&cfg.ReportPath, "report", "", "write a JSON layout report to this file")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "log every generation step")
	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.ShowVersion {
		return cfg, nil
	}

	if strings.TrimSpace(cfg.PkgPath) == "" {
		return nil, fmt.Errorf("--pkg is required")
	}
	cfg.Data = splitCommaList(dataRaw)
	if len(cfg.Data) == 0 {
		return nil, fmt.Errorf("--data is required")
	}
	for _, name := range []string{cfg.ReadName, cfg.SaveName} {
		if !token.IsIdentifier(name) {
			return nil, fmt.Errorf("invalid function name %q", name)
		}
	}
	if cfg.ReadName == cfg.SaveName {
		return nil, fmt.Errorf("--read-name and --save-name must differ")
	}
	if strings.TrimSpace(cfg.Filename) == "" {
		return nil, fmt.Errorf("--filename is required")
	}
	return cfg, nil
}

func splitCommaList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
