// Package config loads the geometry and location of a nufs image.
//
// Configuration comes from a single YAML file layered over Default. Command
// line flags may override individual fields after loading.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mit-pdos/go-nufs/addr"
	"github.com/mit-pdos/go-nufs/common"
)

// Config describes one image.
type Config struct {
	// Image is the path of the backing file.
	Image string `yaml:"image"`

	// Capacity is the size of the image in bytes, a multiple of the block
	// size.
	Capacity uint64 `yaml:"capacity"`

	// MaxInodes is the number of inode slots.
	MaxInodes uint64 `yaml:"max_inodes"`

	// Debug is the util.DPrintf level.
	Debug uint64 `yaml:"debug"`
}

// Default is the classic 1 MiB image with 256 inodes.
func Default() *Config {
	return &Config{
		Image:     "data.nufs",
		Capacity:  common.DefaultCapacity,
		MaxInodes: common.DefaultMaxInodes,
	}
}

// Load reads the YAML file at path over Default and validates the result.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) NumBlocks() uint64 {
	return c.Capacity / common.BlockSize
}

// Validate checks that the geometry describes a usable image.
func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("image path is empty: %w", common.ErrInvalid)
	}
	if c.Capacity == 0 || c.Capacity%common.BlockSize != 0 {
		return fmt.Errorf("capacity %d is not a positive multiple of %d: %w",
			c.Capacity, common.BlockSize, common.ErrInvalid)
	}
	if _, err := addr.MkLayout(c.NumBlocks(), c.MaxInodes); err != nil {
		return err
	}
	return nil
}

// Write stores c as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
