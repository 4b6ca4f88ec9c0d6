package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/landirector2008-wq/ha-deepseek-control/internal/domain"
)

// LoadActionTable returns the domain/action whitelist. With an empty path the
// built-in table is used; otherwise the YAML file replaces it wholesale. The
// table is loaded once at startup and treated as read-only afterwards.
func LoadActionTable(path string) (domain.ActionTable, error) {
	if path == "" {
		return domain.DefaultActionTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.LoadActionTable: %w", err)
	}
	var table domain.ActionTable
	if err := yaml.Unmarshal(b, &table); err != nil {
		return nil, fmt.Errorf("op=config.LoadActionTable: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("op=config.LoadActionTable: %w: empty action table in %s", domain.ErrInvalidArgument, path)
	}
	return table, nil
}
