package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/formprobe/internal/verdict"
)

// LoadKeywords reads the verdict keyword sets. An empty path yields the
// built-in defaults; a set missing from the file keeps its default.
func LoadKeywords(path string) (verdict.Keywords, error) {
	def := verdict.DefaultKeywords()
	if path == "" {
		return def, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return verdict.Keywords{}, fmt.Errorf("keywords config: %w", err)
	}
	var k verdict.Keywords
	if err := yaml.Unmarshal(data, &k); err != nil {
		return verdict.Keywords{}, fmt.Errorf("keywords config: %w", err)
	}
	if len(k.Success) == 0 {
		k.Success = def.Success
	}
	if len(k.Error) == 0 {
		k.Error = def.Error
	}
	return k, nil
}
