// Package cmdline converts compilation database command strings to argument
// lists and back.
//
// Splitting follows POSIX shell word rules. Escaping follows the rules
// downstream consumers of compile_commands.json expect: only '"' and '\' are
// special, and a token is quoted when it was escaped or contains a space.
package cmdline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/go-shellwords"
)

// ErrEmptyCommand is returned by Split for a command without any words
var ErrEmptyCommand = errors.New("command is empty")

// ParseError reports a command string that cannot be split into words
type ParseError struct {
	Command string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to split command %q: %v", e.Command, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// ErrShellOperator is returned by Split for an unquoted ;, &, |, < or >
var ErrShellOperator = errors.New("unquoted shell operator")

// Split splits a shell-style command string into its arguments
func Split(command string) ([]string, error) {
	p := shellwords.NewParser()
	args, err := p.Parse(posixDoubleQuotes(command))
	if err != nil {
		return nil, &ParseError{Command: command, Err: err}
	}

	// the parser stops at the first operator and reports where
	if p.Position != -1 {
		return nil, &ParseError{Command: command, Err: ErrShellOperator}
	}

	if len(args) == 0 {
		return nil, &ParseError{Command: command, Err: ErrEmptyCommand}
	}

	return args, nil
}

// posixDoubleQuotes doubles every backslash inside double quotes that does
// not precede $, `, ", \ or a newline. A POSIX shell keeps such backslashes,
// while shellwords treats a backslash as an escape before any character.
func posixDoubleQuotes(command string) string {
	if !strings.Contains(command, `\`) {
		return command
	}

	var b strings.Builder
	var single, double, escaped bool
	for i := 0; i < len(command); i++ {
		c := command[i]

		switch {
		case escaped:
			escaped = false
		case single:
			single = c != '\''
		case c == '\\':
			if double && (i+1 == len(command) || !strings.ContainsRune("$`\"\\\n", rune(command[i+1]))) {
				b.WriteByte('\\')
			} else {
				escaped = true
			}
		case c == '"':
			double = !double
		case c == '\'' && !double:
			single = true
		}

		b.WriteByte(c)
	}

	return b.String()
}

// Escape returns arg as a token for a compilation database command string
func Escape(arg string) string {
	if arg == "" {
		return `""`
	}

	escaped := escaper.Replace(arg)
	if escaped != arg || strings.Contains(escaped, " ") {
		return `"` + escaped + `"`
	}

	return escaped
}

// EscapeAll escapes every argument, keeping order
func EscapeAll(args []string) []string {
	tokens := make([]string, 0, len(args))
	for _, arg := range args {
		tokens = append(tokens, Escape(arg))
	}

	return tokens
}

// Join escapes every argument and joins them with single spaces
func Join(args []string) string {
	return strings.Join(EscapeAll(args), " ")
}
