// Package symdump turns ELF binaries carrying STABS debugging information
// into text symbol files.
package symdump

import (
	"bytes"
	"context"
	"debug/elf"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	symdumpctx "github.com/grafana/symdump/pkg/context"
	"github.com/grafana/symdump/pkg/fileid"
	"github.com/grafana/symdump/pkg/stabs"
	"github.com/grafana/symdump/pkg/symbols"
)

var (
	ErrTooLarge      = errors.New("binary exceeds the maximum input size")
	ErrStabsRejected = errors.New("stabs stream rejected")
)

type identified struct {
	id     fileid.Identifier
	source fileid.Source
}

// Dumper extracts symbol files from binaries stored on fs.
type Dumper struct {
	cfg     Config
	logger  log.Logger
	fs      afero.Fs
	ids     *lru.Cache[uint64, identified]
	metrics *metrics
}

// New creates a Dumper. The logger and metrics registry are taken from ctx.
func New(ctx context.Context, cfg Config, fs afero.Fs) (*Dumper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ids, err := lru.New[uint64, identified](cfg.IdentifierCacheSize)
	if err != nil {
		return nil, err
	}
	return &Dumper{
		cfg:     cfg,
		logger:  symdumpctx.Logger(ctx),
		fs:      fs,
		ids:     ids,
		metrics: newMetrics(symdumpctx.Registry(ctx)),
	}, nil
}

// Identify loads the binary at path and returns its identifier.
func (d *Dumper) Identify(ctx context.Context, path string) (fileid.Identifier, fileid.Source, error) {
	if err := ctx.Err(); err != nil {
		return fileid.Identifier{}, "", err
	}
	data, err := d.load(path)
	if err != nil {
		return fileid.Identifier{}, "", err
	}
	res, err := d.identify(data)
	if err != nil {
		return fileid.Identifier{}, "", errors.Wrapf(err, "identifying %s", path)
	}
	return res.id, res.source, nil
}

func (d *Dumper) identify(data []byte) (identified, error) {
	key := xxhash.Sum64(data)
	if res, ok := d.ids.Get(key); ok {
		d.metrics.identifierCacheHit.Inc()
		return res, nil
	}
	id, source, err := fileid.ComputeIdentifierWithSource(data)
	if err != nil {
		return identified{}, err
	}
	d.metrics.identifiersTotal.WithLabelValues(string(source)).Inc()
	res := identified{id: id, source: source}
	d.ids.Add(key, res)
	return res, nil
}

func (d *Dumper) load(path string) ([]byte, error) {
	data, err := LoadBinary(d.fs, path, d.cfg.MaxInputSize)
	if err != nil {
		return nil, errors.Wrap(err, "loading binary")
	}
	d.metrics.inputBytes.Observe(float64(len(data)))
	return data, nil
}

// Dump writes the symbol file of the binary at path to w.
func (d *Dumper) Dump(ctx context.Context, path string, w io.Writer) error {
	m, err := d.extractFile(ctx, path)
	if err != nil {
		return err
	}
	return d.write(m, w)
}

func (d *Dumper) extractFile(ctx context.Context, path string) (m *symbols.Module, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		d.metrics.binariesTotal.WithLabelValues(status).Inc()
		d.metrics.dumpDuration.Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = symdumpctx.WithBinary(symdumpctx.WithLogger(ctx, d.logger), path)
	data, err := d.load(path)
	if err != nil {
		return nil, err
	}
	return d.Extract(ctx, filepath.Base(path), data)
}

// Extract builds the symbol module of the ELF image in data. name is the
// module name written to the MODULE record.
func (d *Dumper) Extract(ctx context.Context, name string, data []byte) (*symbols.Module, error) {
	logger := symdumpctx.Logger(ctx)

	ident, err := d.identify(data)
	if err != nil {
		return nil, errors.Wrap(err, "computing identifier")
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parsing ELF")
	}
	defer f.Close()

	arch := d.cfg.Arch
	if arch == "" {
		arch = archName(f.Machine)
	}
	module := symbols.NewModule(name, d.cfg.OS, arch, ident.id.ModuleID())
	h := stabs.NewDumpHandler(logger, module,
		stabs.WithDemangle(d.cfg.Demangle),
		stabs.WithMetrics(d.metrics.stabs),
	)
	ok, err := stabs.ReadELF(f, h)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStabsRejected
	}
	h.Finalize()

	level.Debug(logger).Log(
		"msg", "extracted symbols",
		"id", ident.id,
		"id_source", ident.source,
		"functions", len(module.Functions()),
		"size", humanize.Bytes(uint64(len(data))),
	)
	return module, nil
}

func (d *Dumper) write(m *symbols.Module, w io.Writer) error {
	if !d.cfg.Compress {
		return m.Write(w)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := m.Write(zw); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// OutputPath is where DumpAll stores the symbol file of m below dir:
// <dir>/<name>/<module id>/<name>.sym, with a .zst suffix when compressing.
func (d *Dumper) OutputPath(dir string, m *symbols.Module) string {
	file := strings.TrimSuffix(m.Name, ".debug") + ".sym"
	if d.cfg.Compress {
		file += ".zst"
	}
	return filepath.Join(dir, m.Name, m.ID, file)
}

// DumpAll dumps every binary in paths into dir, processing up to
// MaxConcurrency binaries at a time. A failing binary does not stop the
// others; all failures are returned together.
func (d *Dumper) DumpAll(ctx context.Context, paths []string, dir string) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs *multierror.Error
	)
	g.SetLimit(d.cfg.MaxConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			if err := d.dumpTo(ctx, path, dir); err != nil {
				level.Warn(d.logger).Log("msg", "failed to dump binary", "binary", path, "err", err)
				mu.Lock()
				errs = multierror.Append(errs, errors.Wrap(err, path))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs.ErrorOrNil()
}

func (d *Dumper) dumpTo(ctx context.Context, path, dir string) error {
	m, err := d.extractFile(ctx, path)
	if err != nil {
		return err
	}
	out := d.OutputPath(dir, m)
	if err := d.fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := d.fs.Create(out)
	if err != nil {
		return err
	}
	if err := d.write(m, f); err != nil {
		_ = f.Close()
		_ = d.fs.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		_ = d.fs.Remove(out)
		return err
	}
	level.Info(d.logger).Log("msg", "symbol file written", "binary", path, "output", out)
	return nil
}

var archNames = map[elf.Machine]string{
	elf.EM_386:     "x86",
	elf.EM_X86_64:  "x86_64",
	elf.EM_ARM:     "arm",
	elf.EM_AARCH64: "arm64",
	elf.EM_PPC:     "ppc",
	elf.EM_PPC64:   "ppc64",
	elf.EM_MIPS:    "mips",
	elf.EM_SPARC:   "sparc",
	elf.EM_SPARCV9: "sparcv9",
	elf.EM_RISCV:   "riscv",
	elf.EM_S390:    "s390",
}

func archName(m elf.Machine) string {
	if name, ok := archNames[m]; ok {
		return name
	}
	return strings.ToLower(strings.TrimPrefix(m.String(), "EM_"))
}
