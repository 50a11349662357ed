package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLineFormatter(t *testing.T) {
	entry := log.NewEntry(log.New()).WithField("target", "ignored")
	entry.Message = "Processed 2 of 2 tasks"

	out, err := (&CommandLineFormatter{}).Format(entry)

	require.NoError(t, err)
	assert.Equal(t, "Processed 2 of 2 tasks\n", string(out))
}
