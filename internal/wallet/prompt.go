package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"swapPilot/internal/model"
)

// PromptKey reads a private key from the terminal without echo.
func PromptKey() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("no private key configured and stdin is not a terminal")
	}
	_, _ = fmt.Fprint(os.Stderr, "Private key: ")
	raw, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		zeroBytes(raw)
		return nil, fmt.Errorf("private key input failed: %w", err)
	}
	return raw, nil
}

// TerminalConfirm asks y/N on out and reads the answer from in. Describe
// renders the request for the prompt.
func TerminalConfirm(in io.Reader, out io.Writer, describe func(model.TxRequest) string) ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, req model.TxRequest) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		summary := string(req.Kind)
		if describe != nil {
			summary = describe(req)
		}
		_, _ = fmt.Fprintf(out, "Sign %s? [y/N]: ", summary)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

// Interactive reports whether stdin is attached to a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
