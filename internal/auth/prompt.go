package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when credentials cannot be asked for.
var ErrNoTerminal = errors.New("stdin is not a terminal")

// Credentials for one login method. They are held in memory only.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether either half is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// Prompter asks the user for credentials that were not configured.
type Prompter interface {
	Prompt(ctx context.Context, method Method) (Credentials, error)
}

// TerminalPrompter reads credentials from a terminal, hiding the password.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stdin and stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) Prompt(ctx context.Context, method Method) (Credentials, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return Credentials{}, ErrNoTerminal
	}

	fmt.Fprintf(p.Out, "%s username: ", method)
	user, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Fprintf(p.Out, "%s password: ", method)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read password: %w", err)
	}

	return Credentials{Username: strings.TrimSpace(user), Password: string(pass)}, nil
}
