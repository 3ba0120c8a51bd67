package cli

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seitarof/gen-bitpack/internal/config"
	"github.com/seitarof/gen-bitpack/internal/descriptor"
	"github.com/seitarof/gen-bitpack/internal/diag"
	"github.com/seitarof/gen-bitpack/internal/generator"
	"github.com/seitarof/gen-bitpack/internal/parser"
	"github.com/seitarof/gen-bitpack/internal/report"
	"github.com/seitarof/gen-bitpack/internal/resolver"
	"github.com/seitarof/gen-bitpack/internal/sector"
)

// Runner orchestrates parser/resolver/descriptor/sector/generator layers.
type Runner interface {
	Run(cfg *Config) error
}

type runnerImpl struct {
	parser    parser.Parser
	resolver  resolver.Resolver
	generator generator.Generator
	logger    *zap.Logger
}

// NewRunner creates a default runner implementation.
func NewRunner(
	p parser.Parser,
	r resolver.Resolver,
	g generator.Generator,
	logger *zap.Logger,
) Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &runnerImpl{
		parser:    p,
		resolver:  r,
		generator: g,
		logger:    logger,
	}
}

// Run executes a single generation cycle.
func (r *runnerImpl) Run(cfg *Config) error {
	reporter := diag.NewReporter(r.logger)
	err := r.run(cfg, reporter)
	var de *diag.Error
	if errors.As(err, &de) {
		reporter.Error(de)
	}
	return err
}

func (r *runnerImpl) run(cfg *Config, reporter *diag.Reporter) error {
	global := config.Default()
	var heritables map[string]config.HeritableConfig
	if cfg.ConfigPath != "" {
		var err error
		global, heritables, err = config.Load(cfg.ConfigPath)
		if err != nil {
			return err
		}
	}

	pkg, err := r.parser.Load(cfg.PkgPath)
	if err != nil {
		return fmt.Errorf("parse package: %w", err)
	}
	cfg.outputDir = pkg.Dir

	ctx, err := resolver.NewContext(global, heritables, pkg, reporter)
	if err != nil {
		return err
	}
	builder := descriptor.NewBuilder(ctx, r.resolver)

	roots := make([]sector.Root, 0, len(cfg.Data))
	for _, name := range cfg.Data {
		v, err := pkg.LookupVar(name)
		if err != nil {
			return diag.New(diag.KindConfiguration, diag.ReasonUnknownRoot).
				Subject(name).
				Detail("no package-level variable with this name").
				Cause(err).
				Build()
		}
		s, err := builder.Build(v.Type)
		if err != nil {
			return err
		}
		r.logger.Debug("root described",
			zap.String("var", name),
			zap.String("type", s.ID),
			zap.Int("bits", s.Bits))
		roots = append(roots, sector.Root{Name: name, Struct: s})
	}

	backend := generator.NewBackend(global, pkg)
	layout, err := sector.NewAllocator(global, backend, r.logger).Allocate(roots)
	if err != nil {
		return err
	}

	if err := r.generator.Generate(cfg, layout, backend); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	r.logger.Info("generated",
		zap.String("file", cfg.OutputFilename()),
		zap.Int("sectors", len(layout.Sectors)),
		zap.Int("whole_functions", len(layout.Wholes)))

	if cfg.ReportPath != "" {
		doc := report.Build(pkg.Path, global, ctx.Heritables.Names(), builder.Structs(), layout, reporter.Warnings())
		if err := report.Write(cfg.ReportPath, doc); err != nil {
			return err
		}
	}
	return nil
}
