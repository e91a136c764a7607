package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestInitWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	InitWriter(&buf, false)
	assert.False(t, DebugEnabled())
	log.Debug().Msg("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	InitWriter(&buf, true)
	assert.True(t, DebugEnabled())
	shellLog := Component("shell")
	shellLog.Debug().Msg("visible")
	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "component=shell")
}
