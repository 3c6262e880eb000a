package maincmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/mtkrol/loxvm/internal/maincmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.lox")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunFileSuccess(t *testing.T) {
	path := writeScript(t, `print 1 + 2;`)
	var out, errOut bytes.Buffer
	c := maincmd.Cmd{}
	code := c.Main([]string{"loxvm", path}, mainer.Stdio{Stdout: &out, Stderr: &errOut})
	assert.Equal(t, mainer.Success, code)
	assert.Equal(t, "3\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestRunFileCompileError(t *testing.T) {
	path := writeScript(t, `var x = ;`)
	var out, errOut bytes.Buffer
	c := maincmd.Cmd{}
	code := c.Main([]string{"loxvm", path}, mainer.Stdio{Stdout: &out, Stderr: &errOut})
	assert.NotEqual(t, mainer.Success, code)
	assert.Contains(t, errOut.String(), path)
}

func TestRunFileRuntimeError(t *testing.T) {
	path := writeScript(t, `print undefinedThing;`)
	var out, errOut bytes.Buffer
	c := maincmd.Cmd{}
	code := c.Main([]string{"loxvm", path}, mainer.Stdio{Stdout: &out, Stderr: &errOut})
	assert.NotEqual(t, mainer.Success, code)
	assert.Contains(t, errOut.String(), "undefined variable")
}

func TestTokenizeCommand(t *testing.T) {
	path := writeScript(t, `var x = 1;`)
	var out, errOut bytes.Buffer
	c := maincmd.Cmd{}
	code := c.Main([]string{"loxvm", "tokenize", path}, mainer.Stdio{Stdout: &out, Stderr: &errOut})
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, out.String(), "\"var\"")
	assert.Contains(t, out.String(), "\"x\"")
}

func TestDisassembleCommand(t *testing.T) {
	path := writeScript(t, `print 1 + 2;`)
	var out, errOut bytes.Buffer
	c := maincmd.Cmd{}
	code := c.Main([]string{"loxvm", "disassemble", path}, mainer.Stdio{Stdout: &out, Stderr: &errOut})
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, out.String(), "ADD")
	assert.Contains(t, out.String(), "PRINT")
}

func TestHelpFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	c := maincmd.Cmd{}
	code := c.Main([]string{"loxvm", "--help"}, mainer.Stdio{Stdout: &out, Stderr: &errOut})
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, out.String(), "usage:")
}
