package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/singleflight"

	"github.com/Norgate-AV/cdbpatch/internal/cache"
	"github.com/Norgate-AV/cdbpatch/internal/cdb"
	"github.com/Norgate-AV/cdbpatch/internal/codes"
	"github.com/Norgate-AV/cdbpatch/internal/compiler"
	"github.com/Norgate-AV/cdbpatch/internal/config"
	"github.com/Norgate-AV/cdbpatch/internal/patcher"
	"github.com/Norgate-AV/cdbpatch/internal/toolchain"
)

func runPatch(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.LoadForPatch(cmd, args)
	if err != nil {
		return &codes.UsageError{Err: err}
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	entries, err := cdb.Load(cfg.Input)
	if err != nil {
		return err
	}

	log.Debugf("Loaded %d entries from %s", len(entries), cfg.Input)

	w := &workers{
		opts: patcher.Options{
			UseCC:  cfg.UseCC,
			UseCXX: cfg.UseCXX,
			CcAdd:  cfg.CcAdd,
			CcDel:  cfg.CcDel,
		},
		resolve: cfg.ResolveToolchainIncludes,
		deny:    cfg.DenyList(),
		stats:   &toolchain.Stats{},
	}

	if cfg.SharedCache {
		w.shared = toolchain.NewSharedStore()
		w.flight = &singleflight.Group{}
	}

	if cfg.ResolveToolchainIncludes && cfg.ProbeCache != "" {
		probeCache, err := cache.New(cfg.ProbeCache)
		if err != nil {
			return err
		}
		defer probeCache.Close()

		w.persistent = probeCache
	}

	if err := cdb.Process(cmd.Context(), entries, cfg.Jobs, w.newWorker); err != nil {
		return err
	}

	if cfg.ResolveToolchainIncludes {
		log.Debugf("Toolchain probes: %d, cache hits: %d", w.stats.Probes(), w.stats.Hits())
	}

	if err := cdb.Write(cfg.Output, entries); err != nil {
		return err
	}

	log.Debugf("Wrote %s", cfg.Output)

	return nil
}

// workers builds one patcher per worker
type workers struct {
	opts    patcher.Options
	resolve bool
	deny    []compiler.DenyRule
	stats   *toolchain.Stats

	// shared and flight are set when workers share one probe cache
	shared *toolchain.SharedStore
	flight *singleflight.Group

	persistent toolchain.Store
}

func (w *workers) newWorker() cdb.PatchFunc {
	if !w.resolve {
		return patcher.New(w.opts, nil).Patch
	}

	resolver := toolchain.NewResolver(toolchain.Options{
		Store:    w.store(),
		DenyList: w.deny,
		Stats:    w.stats,
		Flight:   w.flight,
	})

	return patcher.New(w.opts, resolver).Patch
}

func (w *workers) store() toolchain.Store {
	var front toolchain.Store = toolchain.NewMemoryStore()
	if w.shared != nil {
		front = w.shared
	}

	if w.persistent == nil {
		return front
	}

	return &toolchain.LayeredStore{Front: front, Back: w.persistent}
}
