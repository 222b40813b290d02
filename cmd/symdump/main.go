package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	symdumpctx "github.com/grafana/symdump/pkg/context"
	"github.com/grafana/symdump/pkg/symdump"
)

var cfg struct {
	verbose     bool
	configFile  string
	metricsFile string
	symdump     symdump.Config
}

var (
	consoleOutput = os.Stderr
	logger        = log.NewLogfmtLogger(consoleOutput)
)

func main() {
	cfg.symdump = symdump.DefaultConfig()

	app := kingpin.New(filepath.Base(os.Args[0]), "Extracts STABS debugging information from ELF binaries into text symbol files.").UsageWriter(os.Stdout)
	app.Version(version.Print("symdump"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)
	app.Flag("config.file", "YAML configuration file. Values in the file take precedence over flags.").StringVar(&cfg.configFile)
	app.Flag("metrics.file", "Write the collected metrics to this file in the Prometheus text format when done.").StringVar(&cfg.metricsFile)
	addConfigFlags(app, &cfg.symdump)

	dumpCmd := app.Command("dump", "Write the symbol file of a binary to stdout.")
	dumpBinary := dumpCmd.Arg("binary", "ELF binary, optionally gzip or zstd compressed.").Required().String()

	dumpAllCmd := app.Command("dump-all", "Write the symbol files of many binaries into a directory tree.")
	dumpAllDir := dumpAllCmd.Arg("dir", "Output directory.").Required().String()
	dumpAllBinaries := dumpAllCmd.Arg("binary", "ELF binaries.").Required().Strings()

	idCmd := app.Command("id", "Print the identifiers of binaries.")
	idBinaries := idCmd.Arg("binary", "ELF binaries.").Required().Strings()

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// enable verbose logging if requested
	if !cfg.verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	reg := prometheus.NewRegistry()
	ctx := symdumpctx.WithLogger(context.Background(), logger)
	ctx = symdumpctx.WithRegistry(ctx, reg)

	fs := afero.NewOsFs()
	if cfg.configFile != "" {
		if err := symdump.LoadConfig(fs, cfg.configFile, &cfg.symdump); err != nil {
			os.Exit(checkError(err))
		}
	}
	dumper, err := symdump.New(ctx, cfg.symdump, fs)
	if err != nil {
		os.Exit(checkError(err))
	}

	switch parsedCmd {
	case dumpCmd.FullCommand():
		err = dumper.Dump(ctx, *dumpBinary, os.Stdout)
	case dumpAllCmd.FullCommand():
		err = dumper.DumpAll(ctx, *dumpAllBinaries, *dumpAllDir)
	case idCmd.FullCommand():
		err = printIdentifiers(ctx, os.Stdout, dumper, *idBinaries)
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}

	// metrics are written even when the command failed
	if cfg.metricsFile != "" {
		if werr := writeMetrics(cfg.metricsFile, reg); werr != nil {
			level.Error(logger).Log("msg", "failed to write metrics", "file", cfg.metricsFile, "err", werr)
		}
	}
	os.Exit(checkError(err))
}

func writeMetrics(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

func addConfigFlags(app *kingpin.Application, c *symdump.Config) {
	app.Flag("os", "Operating system written to the MODULE record.").Default(c.OS).StringVar(&c.OS)
	app.Flag("arch", "Architecture written to the MODULE record. Derived from the ELF header when empty.").StringVar(&c.Arch)
	app.Flag("demangle", "Demangle C++ function names.").Default(fmt.Sprint(c.Demangle)).BoolVar(&c.Demangle)
	app.Flag("compress", "Write zstd compressed symbol files.").BoolVar(&c.Compress)
	app.Flag("max-input-size", "Maximum size of a binary, after decompression.").Default(c.MaxInputSize.String()).SetValue(&c.MaxInputSize)
	app.Flag("max-concurrency", "Maximum number of binaries processed at the same time.").Default(fmt.Sprint(c.MaxConcurrency)).IntVar(&c.MaxConcurrency)
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, color.RedString("error: ")+err.Error())
	return 1
}
