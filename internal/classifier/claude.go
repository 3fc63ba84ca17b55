package classifier

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultClaudeTimeout = 60 * time.Second

// Claude classifies by shelling out to the Claude CLI in print mode.
type Claude struct {
	Model   string        // e.g. "haiku", "sonnet"
	Timeout time.Duration // 0 = 60 seconds
	Command string        // executable; "" = "claude"
}

// Classify sends the prompt on stdin and returns stdout without any markdown
// fences the CLI wrapped around it.
func (c *Claude) Classify(ctx context.Context, prompt string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultClaudeTimeout
	}
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	command := c.Command
	if command == "" {
		command = "claude"
	}
	args := []string{"-p", "--tools", "", "--no-session-persistence"}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("claude -p failed: %w\nstderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	text := stripMarkdownFences(stdout.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// stripMarkdownFences removes a ```lang ... ``` wrapping around s.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}

	if strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
