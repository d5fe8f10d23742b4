package srvp

import (
	"encoding/json"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/nkiyohara/srvpfd/pkg/support/sets"
	"github.com/pkg/errors"
)

// Config holds the hyperparameters of an SRVP model, as stored in its "config.json".
//
// Only Archi, NX, NC, NF and NHX shape the encoder, the others are validated and kept for reference.
type Config struct {
	NX         int    `json:"nx"`
	NC         int    `json:"nc"`
	NF         int    `json:"nf"`
	NHX        int    `json:"nhx"`
	NY         int    `json:"ny"`
	NZ         int    `json:"nz"`
	SkipCo     bool   `json:"skipco"`
	NTInf      int    `json:"nt_inf"`
	NHInf      int    `json:"nh_inf"`
	NLayersInf int    `json:"nlayers_inf"`
	NHRes      int    `json:"nh_res"`
	NLayersRes int    `json:"nlayers_res"`
	Archi      string `json:"archi"`
}

// ConfigKeys lists the keys every "config.json" must define.
var ConfigKeys = []string{
	"nx", "nc", "nf", "nhx", "ny", "nz", "skipco", "nt_inf", "nh_inf", "nlayers_inf", "nh_res", "nlayers_res", "archi",
}

// ParseConfig parses and validates the contents of a "config.json".
func ParseConfig(data []byte) (Config, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, errors.Wrapf(ErrInvalidInput, "malformed model configuration: %v", err)
	}
	missing := sets.Collect(maps.Keys(raw)).Missing(ConfigKeys...)
	if len(missing) > 0 {
		return Config{}, errors.Wrapf(ErrInvalidInput, "model configuration is missing keys: %s",
			strings.Join(missing, ", "))
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(ErrInvalidInput, "malformed model configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and validates a "config.json" file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrapf(ErrNotFound, "config file not found at %s", path)
		}
		return Config{}, errors.Wrapf(err, "failed to read config file %q", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "config file %q", path)
	}
	return cfg, nil
}

// Validate checks the parameters used to build the encoder.
func (c Config) Validate() error {
	if !slices.Contains(Architectures(), Architecture(c.Archi)) {
		return errors.Wrapf(ErrInvalidInput, "unknown encoder architecture %q, expected one of %v", c.Archi, Architectures())
	}
	if c.NX != 64 {
		return errors.Wrapf(ErrInvalidInput, "only 64x64 frames (nx=64) are supported, got nx=%d", c.NX)
	}
	if c.NC <= 0 || c.NF <= 0 || c.NHX <= 0 {
		return errors.Wrapf(ErrInvalidInput, "nc, nf and nhx must be positive, got nc=%d, nf=%d, nhx=%d", c.NC, c.NF, c.NHX)
	}
	return nil
}
