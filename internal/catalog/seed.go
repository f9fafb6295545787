package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/research-platform/imagedesc-core/internal/db"
)

// SeedImage is one entry in a catalog seed manifest.
type SeedImage struct {
	ImageID         string `yaml:"image_id"`
	URL             string `yaml:"url"`
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	AttentionKeyword string `yaml:"attention_keyword"`
	AttentionStrict bool   `yaml:"attention_strict"`
}

// Manifest is the top-level shape of a catalog seed YAML file.
type Manifest struct {
	Images []SeedImage `yaml:"images"`
}

// LoadManifest parses a catalog seed YAML file from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse catalog manifest: %w", err)
	}
	return &m, nil
}

// Seed idempotently inserts every image (and its attention-check binding,
// if any) from the manifest into the catalog. This is a convenience
// bootstrap only — spec.md §4.6's unknown-image policy means the catalog
// grows at submission time regardless of whether a manifest was ever
// loaded.
func Seed(ctx context.Context, database *db.Database, m *Manifest) error {
	for _, img := range m.Images {
		if _, err := database.EnsureImage(ctx, img.ImageID, img.URL); err != nil {
			return fmt.Errorf("seed image %s: %w", img.ImageID, err)
		}
		if img.AttentionKeyword != "" {
			if err := database.EnsureAttentionCheck(ctx, img.ImageID, img.AttentionKeyword, img.AttentionStrict); err != nil {
				return fmt.Errorf("seed attention check for %s: %w", img.ImageID, err)
			}
		}
	}
	return nil
}
