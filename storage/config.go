package storage

import (
	"fmt"
	"os"
)

// BlobConfig holds Azure Blob Storage connection parameters for the
// artifact mirror.
type BlobConfig struct {
	ContainerName    string `yaml:"container_name" json:"container_name"`
	ConnectionString string `yaml:"connection_string" json:"connection_string"`
	Prefix           string `yaml:"prefix" json:"prefix"`
}

// BlobEnv maps config fields to environment variable names for override
// injection.
type BlobEnv struct {
	ContainerName    string
	ConnectionString string
	Prefix           string
}

// Enabled reports whether a mirror should be created.
func (c *BlobConfig) Enabled() bool {
	return c != nil && c.ConnectionString != ""
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *BlobConfig) Finalize(env *BlobEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *BlobConfig) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "controlled-documents"
	}
}

func (c *BlobConfig) loadEnv(env *BlobEnv) {
	if env.ContainerName != "" {
		if v := os.Getenv(env.ContainerName); v != "" {
			c.ContainerName = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
	if env.Prefix != "" {
		if v := os.Getenv(env.Prefix); v != "" {
			c.Prefix = v
		}
	}
}

// validate accepts an empty connection string: the mirror is then disabled.
func (c *BlobConfig) validate() error {
	if c.ConnectionString != "" && c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	return nil
}
