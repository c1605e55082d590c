// Command lmsdisasm disassembles lms2012 program files (.rbf) and decodes
// recorded brick communication logs.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lmsdisasm/internal/common"
	"lmsdisasm/internal/lister"
)

func main() {
	var (
		output     string
		escape     bool
		catalogs   []string
		captureDir string
		stats      bool
		logLevel   string
		logFile    string
	)

	rootCmd := &cobra.Command{
		Use:   "lmsdisasm <input>",
		Short: "Disassemble lms2012 byte codes",
		Long: `Disassembles an lms2012 program file into assembler source.

With -e the input is a communication log instead: a YAML list of
{sent, hexdata} records. Each record is decoded to stdout and downloads
seen in the log are written to the capture directory.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := common.ParseSeverity(logLevel)
			if err != nil {
				return err
			}

			var extra []slog.Handler
			if logFile != "" {
				f, err := os.Create(logFile)
				if err != nil {
					return fmt.Errorf("failed to create log file: %w", err)
				}
				defer f.Close()
				extra = append(extra, common.NewJSONHandler(f, sev))
			}
			logger := common.NewSlogLogger(os.Stderr, sev, extra...)
			slog.SetDefault(logger.Slog())

			cfg := lister.Config{
				Input:        args[0],
				Output:       os.Stdout,
				Trace:        escape,
				CatalogPaths: catalogs,
				CaptureDir:   captureDir,
				Stats:        stats,
				Logger:       logger,
			}
			if output != "-" {
				cfg.OutputPath = output
			}
			return lister.Run(cfg)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.Flags()
	flags.StringVarP(&output, "output", "o", "-", "The .lms file that will contain the result")
	flags.BoolVarP(&escape, "escape", "e", false, "Decode a communication log instead of a program")
	flags.StringSliceVar(&catalogs, "catalog", nil, "TOML opcode table merged over the built-in one (repeatable)")
	flags.StringVar(&captureDir, "capture-dir", ".", "Directory for files captured from downloads in a communication log")
	flags.BoolVar(&stats, "stats", false, "Append opcode usage counts to the listing")
	flags.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&logFile, "log-file", "", "Also write JSON log records to this file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lmsdisasm: %v\n", err)
		os.Exit(1)
	}
}
