// Package patcher rewrites the command of a compilation database entry.
package patcher

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Norgate-AV/cdbpatch/internal/cdb"
	"github.com/Norgate-AV/cdbpatch/internal/cmdline"
	"github.com/Norgate-AV/cdbpatch/internal/language"
	"github.com/Norgate-AV/cdbpatch/internal/toolchain"
)

// IncludeResolver inserts a compiler's implicit include directories into a command
type IncludeResolver interface {
	AddIncludes(ctx context.Context, file string, command []string) ([]string, error)
}

// Options controls how each entry is rewritten
type Options struct {
	// UseCC replaces the compiler of C entries when set
	UseCC string

	// UseCXX replaces the compiler of C++ entries when set
	UseCXX string

	// CcAdd flags are appended verbatim to every command
	CcAdd []string

	// CcDel tokens are removed after escaping, by exact match
	CcDel []string
}

// Patcher rewrites entries. A Patcher is used by one worker at a time.
type Patcher struct {
	opts     Options
	resolver IncludeResolver
}

// New creates a patcher. A nil resolver disables toolchain include resolution.
func New(opts Options, resolver IncludeResolver) *Patcher {
	return &Patcher{
		opts:     opts,
		resolver: resolver,
	}
}

// Patch rewrites entry.Command in place
func (p *Patcher) Patch(ctx context.Context, entry *cdb.Entry) error {
	command, err := cmdline.Split(entry.Command)
	if err != nil {
		return fmt.Errorf("can't split command for %s: %w", entry.File, err)
	}

	switch language.Classify(entry.File) {
	case language.C:
		if p.opts.UseCC != "" {
			command[0] = p.opts.UseCC
		}
	case language.Cxx:
		if p.opts.UseCXX != "" {
			command[0] = p.opts.UseCXX
		}
	}

	if p.resolver != nil {
		command, err = p.resolver.AddIncludes(ctx, entry.File, command)
		if err != nil {
			return fmt.Errorf("can't get toolchain includes for %s: %w", entry.File, err)
		}

		command = toolchain.EnsureNoStdInc(command)
	}

	command = append(command, p.opts.CcAdd...)

	tokens := cmdline.EscapeAll(command)
	if len(p.opts.CcDel) > 0 {
		tokens = slices.DeleteFunc(tokens, func(token string) bool {
			return slices.Contains(p.opts.CcDel, token)
		})
	}

	entry.Command = strings.Join(tokens, " ")
	return nil
}
