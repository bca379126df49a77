package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewApp_Commands(t *testing.T) {
	a := newApp()
	for _, name := range []string{"indexer", "reaper", "balance", "serve"} {
		assert.NotNil(t, a.Command(name), name)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	err := newApp().Run([]string{"purgatory", "--config", "/nonexistent/config.yaml", "serve"})
	assert.Error(t, err)
}
