package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/2beens/gymtracker/internal/workouts"

	"gopkg.in/yaml.v3"
)

// LoadCatalog reads a catalog file, JSON or YAML depending on the extension.
func LoadCatalog(path string) (workouts.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var catalog workouts.Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &catalog)
	default:
		err = json.Unmarshal(data, &catalog)
	}
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}
