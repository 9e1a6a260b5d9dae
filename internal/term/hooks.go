package term

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ShellType classifies a shell binary for hook installation.
type ShellType int

const (
	ShellUnknown ShellType = iota
	ShellZsh
	ShellBash
	ShellFish
)

// DetectShellType classifies a shell path like "/bin/zsh".
func DetectShellType(path string) ShellType {
	switch filepath.Base(path) {
	case "zsh":
		return ShellZsh
	case "bash":
		return ShellBash
	case "fish":
		return ShellFish
	default:
		return ShellUnknown
	}
}

// DetectDefaultShell returns $SHELL or the platform default.
func DetectDefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	return "/bin/bash"
}

// zshHooks sources the user's real zshrc first, then installs preexec and
// precmd emitters for the OSC 633 markers.
const zshHooks = `# Cortex shell integration for zsh
# Source user's real zshrc
if [ -n "$CORTEX_USER_ZDOTDIR" ] && [ -f "$CORTEX_USER_ZDOTDIR/.zshrc" ]; then
  ZDOTDIR="$CORTEX_USER_ZDOTDIR" source "$CORTEX_USER_ZDOTDIR/.zshrc"
elif [ -f "$HOME/.zshrc" ]; then
  source "$HOME/.zshrc"
fi

# OSC 633 shell integration
__cortex_preexec() {
  # E: command text
  printf '\e]633;E;%s\a' "$1"
  # C: command start (execution begins)
  printf '\e]633;C\a'
}

__cortex_precmd() {
  local exit_code=$?
  # D: command done with exit code
  printf '\e]633;D;%s\a' "$exit_code"
  # P: property, current working directory
  printf '\e]633;P;Cwd=%s\a' "$PWD"
}

autoload -Uz add-zsh-hook
add-zsh-hook preexec __cortex_preexec
add-zsh-hook precmd __cortex_precmd

# Emit initial CWD
printf '\e]633;P;Cwd=%s\a' "$PWD"
`

// bashHooks sources ~/.bashrc, then installs a DEBUG trap and a
// PROMPT_COMMAND prefix for the OSC 633 markers.
const bashHooks = `# Cortex shell integration for bash
# Source user's real bashrc
if [ -f "$HOME/.bashrc" ]; then
  source "$HOME/.bashrc"
fi

# OSC 633 shell integration
__cortex_cmd=""

__cortex_debug_trap() {
  if [ -z "$__cortex_cmd" ]; then
    __cortex_cmd="$BASH_COMMAND"
    # E: command text
    printf '\e]633;E;%s\a' "$__cortex_cmd"
    # C: command start
    printf '\e]633;C\a'
  fi
}

__cortex_prompt_command() {
  local exit_code=$?
  if [ -n "$__cortex_cmd" ]; then
    # D: command done with exit code
    printf '\e]633;D;%s\a' "$exit_code"
  fi
  # P: property, current working directory
  printf '\e]633;P;Cwd=%s\a' "$PWD"
  __cortex_cmd=""
}

trap '__cortex_debug_trap' DEBUG
PROMPT_COMMAND="__cortex_prompt_command${PROMPT_COMMAND:+;$PROMPT_COMMAND}"

# Emit initial CWD
printf '\e]633;P;Cwd=%s\a' "$PWD"
`

// SetupHookDir writes the generated rc files under appDataDir/shell_hooks
// and returns the hook directory path.
func SetupHookDir(appDataDir string) (string, error) {
	hookDir := filepath.Join(appDataDir, "shell_hooks")
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		return "", fmt.Errorf("create shell hooks directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, ".zshrc"), []byte(zshHooks), 0o644); err != nil {
		return "", fmt.Errorf("write zsh hooks: %w", err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, ".bashrc"), []byte(bashHooks), 0o644); err != nil {
		return "", fmt.Errorf("write bash hooks: %w", err)
	}
	return hookDir, nil
}

// ShellCommand describes how to launch a hooked shell.
type ShellCommand struct {
	Path string
	Args []string
	Env  []string // KEY=VALUE pairs appended to the inherited environment
}

// BuildShellCommand prepares the launch spec for a shell with hook
// integration. Zsh is redirected through ZDOTDIR (preserving the user's
// own as CORTEX_USER_ZDOTDIR); bash gets --rcfile. Fish and unknown shells
// run unhooked.
func BuildShellCommand(shellPath, hookDir string) ShellCommand {
	cmd := ShellCommand{Path: shellPath}

	switch DetectShellType(shellPath) {
	case ShellZsh:
		if existing, ok := os.LookupEnv("ZDOTDIR"); ok {
			cmd.Env = append(cmd.Env, "CORTEX_USER_ZDOTDIR="+existing)
		}
		cmd.Env = append(cmd.Env, "ZDOTDIR="+hookDir)
	case ShellBash:
		cmd.Args = []string{"--rcfile", filepath.Join(hookDir, ".bashrc")}
	default:
	}
	return cmd
}
