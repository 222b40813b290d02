package symdump

import (
	"bytes"
	"flag"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/grafana/symdump/pkg/util/bytesize"
)

type Config struct {
	OS                  string            `yaml:"os"`
	Arch                string            `yaml:"arch"`
	Demangle            bool              `yaml:"demangle"`
	Compress            bool              `yaml:"compress"`
	MaxInputSize        bytesize.ByteSize `yaml:"max_input_size" category:"advanced"`
	MaxConcurrency      int               `yaml:"max_concurrency"`
	IdentifierCacheSize int               `yaml:"identifier_cache_size" category:"advanced"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.MaxInputSize = 1 * bytesize.GB
	f.StringVar(&cfg.OS, "symdump.os", "Linux", "Operating system written to the MODULE record.")
	f.StringVar(&cfg.Arch, "symdump.arch", "", "Architecture written to the MODULE record. Derived from the ELF header when empty.")
	f.BoolVar(&cfg.Demangle, "symdump.demangle", true, "Demangle C++ function names.")
	f.BoolVar(&cfg.Compress, "symdump.compress", false, "Write zstd compressed symbol files.")
	f.Var(&cfg.MaxInputSize, "symdump.max-input-size", "Maximum size of a binary, after decompression.")
	f.IntVar(&cfg.MaxConcurrency, "symdump.max-concurrency", 4, "Maximum number of binaries processed at the same time.")
	f.IntVar(&cfg.IdentifierCacheSize, "symdump.identifier-cache-size", 1024, "Number of computed identifiers kept in memory.")
}

func (cfg *Config) Validate() error {
	if cfg.OS == "" {
		return fmt.Errorf("os must not be empty")
	}
	if cfg.MaxConcurrency < 1 {
		return fmt.Errorf("invalid max-concurrency value, must be positive")
	}
	if cfg.IdentifierCacheSize < 1 {
		return fmt.Errorf("invalid identifier-cache-size value, must be positive")
	}
	if cfg.MaxInputSize == 0 {
		return fmt.Errorf("max-input-size must not be zero")
	}
	return nil
}

// DefaultConfig returns the configuration the flags default to.
func DefaultConfig() Config {
	var cfg Config
	cfg.RegisterFlags(flag.NewFlagSet("", flag.ContinueOnError))
	return cfg
}

// LoadConfig overlays the YAML file at path onto cfg. Unknown keys are an
// error.
func LoadConfig(fs afero.Fs, path string, cfg *Config) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg.Validate()
}
