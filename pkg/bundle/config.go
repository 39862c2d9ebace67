package bundle

import (
	"os"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
	"github.com/kitup-dev/kitup/pkg/paths"
	"github.com/kitup-dev/kitup/pkg/types"
)

// Config is the optional per-bundle configuration, read from a
// .kitup.toml at the bundle root.
type Config struct {
	// Document is the instruction document's filename at the bundle
	// root. Defaults to paths.DocumentName.
	Document string

	// Ignore lists glob patterns for top-level entries that are not
	// resources (editor droppings, CI config, and the like).
	Ignore []string

	// ModeOverrides maps a resource name to a placement mode that wins
	// over the global mode for that resource only.
	ModeOverrides map[string]types.PlacementMode
}

// DefaultConfig returns the configuration used when the bundle carries
// no .kitup.toml.
func DefaultConfig() Config {
	return Config{
		Document:      paths.DocumentName,
		Ignore:        nil,
		ModeOverrides: map[string]types.PlacementMode{},
	}
}

// LoadConfig reads the bundle configuration file at configPath,
// returning defaults when the file does not exist.
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, kerrors.Wrapf(err, kerrors.ErrConfigLoad, "failed to access bundle config at %s", configPath)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
		return cfg, kerrors.Wrapf(err, kerrors.ErrConfigParse, "failed to parse bundle config at %s", configPath)
	}

	if doc := k.String("document"); doc != "" {
		cfg.Document = doc
	}
	cfg.Ignore = append(cfg.Ignore, k.Strings("ignore")...)

	for name, raw := range k.StringMap("mode") {
		mode, err := types.ParsePlacementMode(raw)
		if err != nil {
			return cfg, kerrors.Wrapf(err, kerrors.ErrConfigParse, "invalid mode override for resource %q", name)
		}
		cfg.ModeOverrides[name] = mode
	}

	return cfg, nil
}
