package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// bootstrapFile is the YAML shape of an optional seed file registering
// sources on first start.
type bootstrapFile struct {
	Sources []bootstrapSource `yaml:"sources"`
}

type bootstrapSource struct {
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"`
	Endpoint       string `yaml:"endpoint"`
	CredentialsRef string `yaml:"credentials_ref"`
	Priority       int    `yaml:"priority"`
}

// Bootstrap registers the sources listed in the YAML file at path.
// A missing file is not an error, and nothing happens when the registry
// already has sources: the file seeds a fresh install only.
func (s *Service) Bootstrap(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	existing, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read bootstrap file: %w", err)
	}

	var file bootstrapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse bootstrap file: %w", err)
	}

	for _, b := range file.Sources {
		_, err := s.Add(ctx, AddInput{
			Name:           b.Name,
			Kind:           Kind(b.Kind),
			Endpoint:       b.Endpoint,
			CredentialsRef: b.CredentialsRef,
			Priority:       b.Priority,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("name", b.Name).Msg("skipping invalid bootstrap source")
			continue
		}
	}

	s.logger.Info().Int("count", len(file.Sources)).Str("path", path).Msg("registry seeded from bootstrap file")
	return nil
}
