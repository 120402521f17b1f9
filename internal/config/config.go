// Package config loads spiral client settings from YAML files.
//
// Every value is routed through spiral.Options, so a config file is held to
// the same validation rules as flags and programmatic settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/spiral/spiral"
)

// File mirrors the YAML config file layout.
type File struct {
	Store           string `yaml:"store"`
	Root            string `yaml:"root"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Compression     string `yaml:"compression"`
	AppID           string `yaml:"app_id"`
	CredentialsFile string `yaml:"credentials_file"`
	CABundle        string `yaml:"ca_bundle"`
	PathStyle       *bool  `yaml:"path_style"`
}

// Load reads and parses the config file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes YAML config data. name is used in error messages.
func Parse(data []byte, name string) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config parse failed (%s): %w", name, err)
	}
	if f.Store == "" {
		f.Store = "s3"
	}
	if err := Validate(f); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the fields that are not client options.
func Validate(f File) error {
	switch f.Store {
	case "s3", "memory":
	case "fs":
		if f.Root == "" {
			return fmt.Errorf("config: store %q requires root", f.Store)
		}
	default:
		return fmt.Errorf("config: unknown store %q", f.Store)
	}
	return nil
}

// Apply assigns every non-empty field to opts. The first rejected value
// stops the assignment and is returned.
func (f File) Apply(opts *spiral.Options) error {
	values := []struct {
		id  spiral.OptionID
		raw string
	}{
		{spiral.OptionRegion, f.Region},
		{spiral.OptionEndpoint, f.Endpoint},
		{spiral.OptionBucket, f.Bucket},
		{spiral.OptionPrefix, f.Prefix},
		{spiral.OptionCompression, f.Compression},
		{spiral.OptionAppID, f.AppID},
		{spiral.OptionCredentialsFile, f.CredentialsFile},
		{spiral.OptionCABundle, f.CABundle},
	}
	for _, v := range values {
		if v.raw == "" {
			continue
		}
		if err := opts.Set(v.id, v.raw); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if f.PathStyle != nil {
		if err := opts.Set(spiral.OptionPathStyle, strconv.FormatBool(*f.PathStyle)); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}
