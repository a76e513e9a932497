package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	auth "github.com/goliatone/go-credentials"
)

// prompter reads secrets without echo on a terminal and plain lines
// otherwise, so piped input works in scripts.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{
		in:  cmd.InOrStdin(),
		out: cmd.ErrOrStderr(),
	}
}

func (p *prompter) secret(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printValidation lists field errors in a stable order
func printValidation(cmd *cobra.Command, err error) {
	fields := auth.ValidationFields(err)
	if len(fields) == 0 {
		return
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd.PrintErrf("  %s: %s\n", name, fields[name])
	}
}
