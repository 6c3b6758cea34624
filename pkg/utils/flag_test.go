package utils

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTestFlag(t *testing.T) {
	previous := flag.Lookup("log_level").Value.String()
	t.Run("override", func(t *testing.T) {
		SetTestFlag(t, "log_level", "debug")
		assert.Equal(t, "debug", *logLevelFlag)
	})
	assert.Equal(t, previous, *logLevelFlag, "Flag should be restored after the subtest")
}
