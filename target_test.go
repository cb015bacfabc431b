package bminor_test

import (
	"bminor"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTarget(t *testing.T) {
	target := bminor.DefaultTarget()
	assert.Equal(t, []string{"rbx", "r10", "r11", "r12", "r13", "r14", "r15"}, target.Scratch)
	assert.Equal(t, []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}, target.Arguments)
	assert.Equal(t, []string{"r10", "r11"}, target.CallerSaved)
	assert.Equal(t, []string{"rbx", "r12", "r13", "r14", "r15"}, target.CalleeSaved)
	assert.Equal(t, "integer_power", target.PowFunc)
	assert.Equal(t, "print_", target.PrintPrefix)
}

func TestLoadTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.properties")
	src := "scratch = rbx, r12\n" +
		"arguments = rdi, rsi, rdx, rcx, r8, r9\n" +
		"callee_saved = rbx, r12\n" +
		"runtime.pow = ipow\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))

	target, err := bminor.LoadTarget(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rbx", "r12"}, target.Scratch)
	assert.Empty(t, target.CallerSaved)
	assert.Equal(t, "ipow", target.PowFunc)
	assert.Equal(t, "print_", target.PrintPrefix)
}

func TestParseTargetErrors(t *testing.T) {
	_, err := bminor.ParseTarget("arguments = rdi, rsi, rdx, rcx, r8, r9\n")
	assert.Error(t, err)

	_, err = bminor.ParseTarget("scratch = rbx\narguments = rdi, rsi\n")
	assert.EqualError(t, err, "target has 2 argument registers, the frame layout needs 6")

	_, err = bminor.LoadTarget(filepath.Join(t.TempDir(), "missing.properties"))
	assert.Error(t, err)
}
