package syncengine

import "fmt"

// Config tunes paging.
type Config struct {
	// PageSize is requested for every page of a directional loop.
	PageSize int `json:"page_size"`
	// MaxPageSize is requested for the seed fetch of an empty series.
	MaxPageSize int `json:"max_page_size"`
	// MaxPages aborts a directional loop that has not converged after this
	// many pages. Zero disables the limit.
	MaxPages int `json:"max_pages"`
}

// SetDefaults applies the page sizes used against the Octopus API.
func (c *Config) SetDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = 1500
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 25000
	}
}

// Validate checks the paging bounds.
func (c Config) Validate() error {
	if c.PageSize <= 0 || c.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.MaxPageSize < c.PageSize {
		return fmt.Errorf("max_page_size %d below page_size %d", c.MaxPageSize, c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must not be negative")
	}
	return nil
}
