package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/celeralabs/stx-orbital/internal/logging"
)

func TestSetLogger_NilInstallsNoOpLogger(t *testing.T) {
	defer logging.SetLogger(nil)

	called := false
	logging.SetLogger(func(format string, v ...interface{}) { called = true })
	logging.SetLogger(nil)
	logging.Logf("should not panic or call the previous logger: %d", 1)
	assert.False(t, called)
}

func TestSetLogger_ReplacesLoggerAndForwardsArgs(t *testing.T) {
	defer logging.SetLogger(nil)

	var gotFormat string
	var gotArgs []interface{}
	logging.SetLogger(func(format string, v ...interface{}) {
		gotFormat = format
		gotArgs = v
	})

	logging.Logf("job %s failed: %v", "abc-123", "boom")
	assert.Equal(t, "job %s failed: %v", gotFormat)
	assert.Equal(t, []interface{}{"abc-123", "boom"}, gotArgs)
}
