package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       *Context
		version   string
		buildDate string
		systemID  string
	}{
		{"nil context", nil, UnknownValue, UnknownValue, UnknownValue},
		{"empty values", NewContext("", "", ""), UnknownValue, UnknownValue, UnknownValue},
		{"populated", NewContext("1.2.0", "2026-10-01", "ABCD-EF01-2345"), "1.2.0", "2026-10-01", "ABCD-EF01-2345"},
		{"pre-release", NewContext("1.2.0-rc.1+build.7", "", ""), "1.2.0-rc.1+build.7", UnknownValue, UnknownValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.Version())
			assert.Equal(t, tt.buildDate, tt.ctx.BuildDate())
			assert.Equal(t, tt.systemID, tt.ctx.SystemID())
		})
	}
}

func TestWithSystemID(t *testing.T) {
	t.Parallel()

	base := NewContext("1.0.0", "2026-10-01", "")
	withID := base.WithSystemID("AAAA-BBBB-CCCC")

	assert.Equal(t, "AAAA-BBBB-CCCC", withID.SystemID())
	assert.Equal(t, "1.0.0", withID.Version())
	assert.Equal(t, UnknownValue, base.SystemID(), "original must not change")

	var nilCtx *Context
	assert.Equal(t, "AAAA-BBBB-CCCC", nilCtx.WithSystemID("AAAA-BBBB-CCCC").SystemID())
	assert.Equal(t, "eegstream 1.0.0 (built 2026-10-01)", base.String())
}
