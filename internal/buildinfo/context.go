// Package buildinfo carries build-time metadata that is not part of the
// user configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// Context holds build metadata and the persistent system identifier
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext returns build metadata. Empty values report UnknownValue.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{version: version, buildDate: buildDate, systemID: systemID}
}

// Version returns the build version
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// SystemID returns the system identifier used for telemetry
func (c *Context) SystemID() string {
	if c == nil || c.systemID == "" {
		return UnknownValue
	}
	return c.systemID
}

// WithSystemID returns a copy with the system identifier set
func (c *Context) WithSystemID(id string) *Context {
	if c == nil {
		return NewContext("", "", id)
	}
	cp := *c
	cp.systemID = id
	return &cp
}

// String implements fmt.Stringer
func (c *Context) String() string {
	return fmt.Sprintf("eegstream %s (built %s)", c.Version(), c.BuildDate())
}
