package term

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectShellType(t *testing.T) {
	assert.Equal(t, ShellZsh, DetectShellType("/bin/zsh"))
	assert.Equal(t, ShellZsh, DetectShellType("/usr/local/bin/zsh"))
	assert.Equal(t, ShellBash, DetectShellType("/bin/bash"))
	assert.Equal(t, ShellBash, DetectShellType("/usr/bin/bash"))
	assert.Equal(t, ShellFish, DetectShellType("/usr/bin/fish"))
	assert.Equal(t, ShellUnknown, DetectShellType("/bin/sh"))
	assert.Equal(t, ShellUnknown, DetectShellType(""))
}

func TestDetectDefaultShell(t *testing.T) {
	shell := DetectDefaultShell()
	assert.NotEmpty(t, shell)
	assert.True(t, strings.HasPrefix(shell, "/"))
}

func TestZshHooksContainOscSequences(t *testing.T) {
	assert.Contains(t, zshHooks, "633;C")
	assert.Contains(t, zshHooks, "633;D")
	assert.Contains(t, zshHooks, "633;E")
	assert.Contains(t, zshHooks, "633;P;Cwd=")
	assert.Contains(t, zshHooks, "add-zsh-hook")
	assert.Contains(t, zshHooks, "preexec")
	assert.Contains(t, zshHooks, "precmd")
	// The user's real init must load before our hooks install.
	assert.Less(t, strings.Index(zshHooks, ".zshrc"), strings.Index(zshHooks, "add-zsh-hook"))
	assert.Contains(t, zshHooks, "CORTEX_USER_ZDOTDIR")
}

func TestBashHooksContainOscSequences(t *testing.T) {
	assert.Contains(t, bashHooks, "633;C")
	assert.Contains(t, bashHooks, "633;D")
	assert.Contains(t, bashHooks, "633;E")
	assert.Contains(t, bashHooks, "633;P;Cwd=")
	assert.Contains(t, bashHooks, "PROMPT_COMMAND")
	assert.Contains(t, bashHooks, "DEBUG")
	assert.Less(t, strings.Index(bashHooks, ".bashrc"), strings.Index(bashHooks, "trap"))
}

func TestSetupHookDir(t *testing.T) {
	tmp := t.TempDir()
	hookDir, err := SetupHookDir(tmp)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmp, "shell_hooks"), hookDir)
	assert.FileExists(t, filepath.Join(hookDir, ".zshrc"))
	assert.FileExists(t, filepath.Join(hookDir, ".bashrc"))

	// Rewriting is idempotent.
	_, err = SetupHookDir(tmp)
	require.NoError(t, err)
}

func TestBuildShellCommandZsh(t *testing.T) {
	hookDir := t.TempDir()

	t.Setenv("ZDOTDIR", "/home/user/.config/zsh")
	cmd := BuildShellCommand("/bin/zsh", hookDir)
	assert.Equal(t, "/bin/zsh", cmd.Path)
	assert.Empty(t, cmd.Args)
	assert.Contains(t, cmd.Env, "CORTEX_USER_ZDOTDIR=/home/user/.config/zsh")
	assert.Contains(t, cmd.Env, "ZDOTDIR="+hookDir)
}

func TestBuildShellCommandZshNoExistingZdotdir(t *testing.T) {
	hookDir := t.TempDir()
	os.Unsetenv("ZDOTDIR")

	cmd := BuildShellCommand("/bin/zsh", hookDir)
	assert.Contains(t, cmd.Env, "ZDOTDIR="+hookDir)
	for _, kv := range cmd.Env {
		assert.False(t, strings.HasPrefix(kv, "CORTEX_USER_ZDOTDIR="))
	}
}

func TestBuildShellCommandBash(t *testing.T) {
	hookDir := t.TempDir()
	cmd := BuildShellCommand("/bin/bash", hookDir)
	assert.Equal(t, "/bin/bash", cmd.Path)
	assert.Equal(t, []string{"--rcfile", filepath.Join(hookDir, ".bashrc")}, cmd.Args)
	assert.Empty(t, cmd.Env)
}

func TestBuildShellCommandFishUnhooked(t *testing.T) {
	hookDir := t.TempDir()
	cmd := BuildShellCommand("/usr/bin/fish", hookDir)
	assert.Empty(t, cmd.Args)
	assert.Empty(t, cmd.Env)
}
