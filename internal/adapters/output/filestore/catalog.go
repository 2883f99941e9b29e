package filestore

import (
	"errors"
	"fmt"
	"os"

	"lingua-stream/internal/domain"
	"lingua-stream/pkg/validator"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// catalogFile is the layout of the optional catalog override file
type catalogFile struct {
	Models []domain.CatalogEntry `yaml:"models"`
}

// LoadCatalog func - Returns the built-in catalog with the entries of path
// merged over it. A missing file leaves the built-in catalog unchanged.
func LoadCatalog(path string, v validator.Validator) ([]domain.CatalogEntry, error) {
	if v == nil {
		v = validator.New()
	}
	overrides, err := readCatalogFile(path)
	if err != nil {
		return nil, err
	}
	merged := domain.MergeCatalog(domain.BuiltinCatalog, overrides)
	for _, entry := range merged {
		if err := validateEntry(v, entry); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func readCatalogFile(path string) ([]domain.CatalogEntry, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Catalog file %s not found, using built-in catalog", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	logrus.Infof("Loaded %d catalog entries from %s", len(file.Models), path)
	return file.Models, nil
}

func validateEntry(v validator.Validator, entry domain.CatalogEntry) error {
	if err := v.ValidateStruct(entry); err != nil {
		return fmt.Errorf("invalid catalog entry %q: %w", entry.ID, err)
	}
	if !entry.HasSafeFileName() {
		return fmt.Errorf("invalid catalog entry %q: file name %q must be a bare file name", entry.ID, entry.FileName)
	}
	return nil
}
