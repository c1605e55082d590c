// Package lister drives a single run of the disassembler: a program image to
// a listing, or a communication trace to a decoded trace.
package lister

import (
	"fmt"
	"io"
	"os"

	"lmsdisasm/internal/catalog"
	"lmsdisasm/internal/commlink"
	"lmsdisasm/internal/common"
	"lmsdisasm/internal/disasm"
	"lmsdisasm/internal/idec"
	"lmsdisasm/internal/printers"
	"lmsdisasm/internal/rbf"
	"lmsdisasm/internal/tracelog"
)

// Config mirrors the command line arguments.
type Config struct {
	Input        string
	Output       io.Writer // listing destination; trace output always goes to Stdout
	OutputPath   string    // when set, the listing is written to this file instead of Output
	Trace        bool
	CatalogPaths []string // TOML overrides merged over the built-in catalog
	CaptureDir   string
	Stats        bool
	Logger       common.Logger

	// Stdout is the trace destination, os.Stdout when nil.
	Stdout io.Writer
}

// Run processes one input. In program mode any structural error is returned
// and no partial listing is written. In trace mode only a failure to read
// the log is returned; record decode errors are printed in place.
func Run(cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = common.NewNoOpLogger()
	}

	cat := catalog.Default()
	if len(cfg.CatalogPaths) > 0 {
		var err error
		if cat, err = catalog.Load(cfg.CatalogPaths...); err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		logger.Logf(common.SeverityInfo, "catalog: %d opcodes after merging %v", cat.NumOpcodes(), cfg.CatalogPaths)
	}
	dec := idec.NewDecoder(cat, logger)

	if cfg.Trace {
		return runTrace(cfg, dec, logger)
	}
	return runProgram(cfg, dec, logger)
}

func runProgram(cfg Config, dec *idec.Decoder, logger common.Logger) (err error) {
	prog, err := rbf.Open(cfg.Input)
	if err != nil {
		return err
	}
	logger.Logf(common.SeverityInfo, "%s: version %d, %d objects, %d global bytes, %d bytes",
		cfg.Input, prog.Version, prog.NumObjects, prog.GlobalBytes, prog.ImageSize)

	// decode everything before printing anything
	blocks, err := disasm.New(dec, logger).Program(prog)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Input, err)
	}

	w := cfg.Output
	if cfg.OutputPath != "" {
		f, ferr := os.Create(cfg.OutputPath)
		if ferr != nil {
			return common.FileError(cfg.OutputPath, ferr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = common.FileError(cfg.OutputPath, cerr)
			}
		}()
		w = f
	}
	if w == nil {
		w = os.Stdout
	}

	p := printers.NewListingPrinter(w)
	if cfg.Stats {
		p.SetCollectStats()
	}
	p.PrintPreamble(cfg.Input, prog.ProgramHeader)
	for _, b := range blocks {
		p.PrintBlock(b)
	}
	if cfg.Stats {
		p.PrintStats()
	}
	if err := p.Err(); err != nil {
		return fmt.Errorf("error writing listing: %w", err)
	}
	return nil
}

func runTrace(cfg Config, dec *idec.Decoder, logger common.Logger) error {
	w := cfg.Stdout
	if w == nil {
		w = os.Stdout
	}

	records, err := tracelog.ReadFile(cfg.Input)
	if err != nil {
		return err
	}
	logger.Logf(common.SeverityInfo, "%s: %d records", cfg.Input, len(records))

	p := printers.NewTracePrinter(w, dec.Catalog())
	p.SetMessageLogger(logger)
	commlink.NewParser(dec, cfg.CaptureDir, logger).Run(records, p.PrintReport)
	if err := p.Err(); err != nil {
		logger.Logf(common.SeverityWarning, "error writing trace: %v", err)
	}
	return nil
}
