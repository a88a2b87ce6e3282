// Package toolchain resolves the implicit system include directories of a
// compiler command and rewrites the command to name them explicitly.
//
// Discovery runs the compiler in a preprocessor-only probe mode (see
// compiler.BuildProbeKey) and is cached per probe key, so commands that differ
// only in flags irrelevant to include search share a single probe.
package toolchain

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/Norgate-AV/cdbpatch/internal/cmdline"
	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

// NoStdInc disables the compiler's built-in include search
const NoStdInc = "-nostdinc"

// SystemIncludeFlag is prefixed to every discovered directory
const SystemIncludeFlag = "-isystem"

// Prober discovers include directories by running a probe command
type Prober interface {
	Probe(ctx context.Context, key compiler.ProbeKey) ([]string, error)
}

// Stats counts probe activity across one or more resolvers
type Stats struct {
	probes atomic.Int64
	hits   atomic.Int64
}

// Probes returns the number of probe processes run
func (s *Stats) Probes() int64 {
	return s.probes.Load()
}

// Hits returns the number of lookups answered from a cache
func (s *Stats) Hits() int64 {
	return s.hits.Load()
}

// Options configures a Resolver. Zero fields take defaults.
type Options struct {
	Prober   Prober
	Store    Store
	DenyList []compiler.DenyRule
	Stats    *Stats

	// Flight collapses concurrent probes of the same key. Only useful when
	// Store is shared between resolvers.
	Flight *singleflight.Group
}

// Resolver resolves toolchain includes for compiler commands
type Resolver struct {
	prober Prober
	store  Store
	deny   []compiler.DenyRule
	stats  *Stats
	flight *singleflight.Group
}

// NewResolver creates a resolver, filling unset options with defaults
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		prober: opts.Prober,
		store:  opts.Store,
		deny:   opts.DenyList,
		stats:  opts.Stats,
		flight: opts.Flight,
	}

	if r.prober == nil {
		r.prober = compiler.NewProber()
	}

	if r.store == nil {
		r.store = NewMemoryStore()
	}

	if r.deny == nil {
		r.deny = compiler.DefaultDenyList
	}

	if r.stats == nil {
		r.stats = &Stats{}
	}

	return r
}

// Stats returns the counters this resolver reports to
func (r *Resolver) Stats() *Stats {
	return r.stats
}

// AddIncludes returns command with the compiler's implicit include
// directories inserted as -isystem flags right after the executable.
// Commands for files of unknown language are returned unchanged.
func (r *Resolver) AddIncludes(ctx context.Context, file string, command []string) ([]string, error) {
	key, ok := compiler.BuildProbeKey(file, command, r.deny)
	if !ok {
		log.Debugf("skipping toolchain includes for %s: unknown language", file)
		return command, nil
	}

	includes, err := r.includes(ctx, key)
	if err != nil {
		return nil, err
	}

	return InsertIncludes(command, includes), nil
}

func (r *Resolver) includes(ctx context.Context, key compiler.ProbeKey) ([]string, error) {
	includes, ok, err := r.store.Lookup(key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up probe cache: %w", err)
	}

	if ok {
		r.stats.hits.Add(1)
		return includes, nil
	}

	if r.flight == nil {
		return r.probe(ctx, key)
	}

	leader := false
	v, err, _ := r.flight.Do(key.String(), func() (any, error) {
		leader = true

		// a flight for key may have completed since the lookup above
		if includes, ok, err := r.store.Lookup(key); err == nil && ok {
			r.stats.hits.Add(1)
			return includes, nil
		}

		return r.probe(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	if !leader {
		r.stats.hits.Add(1)
	}

	return v.([]string), nil
}

func (r *Resolver) probe(ctx context.Context, key compiler.ProbeKey) ([]string, error) {
	log.Debugf("probing toolchain: %s", cmdline.Join(key))
	r.stats.probes.Add(1)

	includes, err := r.prober.Probe(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := r.store.Save(key, includes); err != nil {
		return nil, fmt.Errorf("failed to save probe cache: %w", err)
	}

	return includes, nil
}

// InsertIncludes inserts a system include flag for each directory at index 1
// of command. Each insertion lands next to the executable, so the flags end
// up in reverse discovery order ahead of the original arguments.
func InsertIncludes(command []string, includes []string) []string {
	for _, include := range includes {
		command = slices.Insert(command, 1, SystemIncludeFlag+include)
	}

	return command
}

// EnsureNoStdInc appends -nostdinc unless command already has it
func EnsureNoStdInc(command []string) []string {
	if slices.Contains(command, NoStdInc) {
		return command
	}

	return append(command, NoStdInc)
}
