package extension

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// LoadFile decodes a Config from a TOML file for hosts that do not run
// Forge. Unknown keys are rejected and zero fields take their defaults.
//
//	user_id      = "user-42"
//	sqlite_path  = "/var/lib/app/wordledger.db"
//	grace_window = "168h"
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("wordledger/extension: decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("wordledger/extension: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return withDefaults(cfg), nil
}
