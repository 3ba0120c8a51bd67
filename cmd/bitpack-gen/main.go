package main

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/seitarof/gen-bitpack/internal/cli"
	"github.com/seitarof/gen-bitpack/internal/generator"
	"github.com/seitarof/gen-bitpack/internal/parser"
	"github.com/seitarof/gen-bitpack/internal/resolver"
)

var version = "dev"

func main() {
	cfg, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		return
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	p := parser.New()
	r := resolver.New(resolver.DefaultRules()...)
	f := generator.NewGoimportsFormatter()
	w := generator.NewFileWriter()
	g := generator.New(f, w)

	runner := cli.NewRunner(p, r, g, logger)
	if err := runner.Run(cfg); err != nil {
		_ = logger.Sync()
		log.Fatal(err)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	zc.Encoding = "console"
	zc.DisableStacktrace = true
	return zc.Build()
}
