package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/config"
)

func TestClassifyExitCodeConfigError(t *testing.T) {
	err := &config.ConfigError{Reason: "bad yaml"}
	assert.Equal(t, 1, classifyExitCode(err))
}

func TestClassifyExitCodeGenericErrorIsTwo(t *testing.T) {
	assert.Equal(t, 2, classifyExitCode(errors.New("transport failed")))
}

func TestClassifyExitCodeHonorsExplicitCoder(t *testing.T) {
	err := &exitCodeError{code: 0, err: errors.New("best-node printed")}
	assert.Equal(t, 0, classifyExitCode(err))
}
