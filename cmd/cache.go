package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/dailywx/internal/model"
	"github.com/derickschaefer/dailywx/internal/render"
	"github.com/derickschaefer/dailywx/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the local data store",
	Long: `Commands for inspecting and clearing the local bbolt database.

The database holds raw pulls (fetch --store), daily tables (clean --store)
and run records. Nothing expires: entries stay until you clear them.`,
}

// ─── cache stats ──────────────────────────────────────────────────────────────

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and sizes for each bucket",
	Example: `  dailywx cache stats
  dailywx cache stats --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}
		info, err := deps.Store.Info()
		if err != nil {
			return fmt.Errorf("reading store metadata: %w", err)
		}

		format := resolveFormat(deps.Config.Format)
		if format == render.FormatTable {
			fmt.Fprintf(cmd.OutOrStdout(), "Database: %s (schema v%s, created %s)\n\n",
				deps.Store.Path(), info["schema_version"], info["created_at"])
		}
		return emit(cmd, newResult("cache stats", model.KindStats, statsGrid(stats), len(stats), start), format)
	},
}

// statsGrid lists buckets in AllBuckets order with both exact and
// human-readable sizes.
func statsGrid(stats []store.BucketStats) *model.Grid {
	g := &model.Grid{Columns: []string{"bucket", "entries", "bytes", "size"}}
	for _, s := range stats {
		g.Cells = append(g.Cells, []string{
			s.Name,
			strconv.Itoa(s.Count),
			strconv.FormatInt(s.Bytes, 10),
			humanBytes(s.Bytes),
		})
	}
	return g
}

// ─── cache clear ──────────────────────────────────────────────────────────────

var (
	cacheClearAll    bool
	cacheClearBucket string
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local store",
	Long: `Delete every entry in one bucket, or in all of them.

bbolt reuses freed pages on later writes but never shrinks the file on its
own. Run 'dailywx cache compact' afterwards to give the space back.`,
	Example: `  dailywx cache clear --all
  dailywx cache clear --bucket raw
  dailywx cache clear --bucket tables`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkClearTarget(cacheClearAll, cacheClearBucket); err != nil {
			return err
		}

		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		target := fmt.Sprintf("bucket %q", cacheClearBucket)
		if cacheClearAll {
			target = "all buckets"
			err = deps.Store.ClearAll()
		} else {
			err = deps.Store.ClearBucket(cacheClearBucket)
		}
		if err != nil {
			return fmt.Errorf("clearing %s: %w", target, err)
		}
		say(cmd.OutOrStdout(), "✓ Cleared %s\n  Run 'dailywx cache compact' to reclaim disk space.\n", target)
		return nil
	},
}

// checkClearTarget rejects a clear with no target, with both targets, or
// with an unknown bucket before the database is opened.
func checkClearTarget(all bool, bucket string) error {
	switch {
	case all && bucket != "":
		return fmt.Errorf("--all and --bucket are mutually exclusive")
	case !all && bucket == "":
		return fmt.Errorf("specify --all or --bucket <name> (one of: %s)", bucketList())
	case bucket != "" && !slices.Contains(store.AllBuckets, bucket):
		return fmt.Errorf("unknown bucket %q (one of: %s)", bucket, bucketList())
	}
	return nil
}

func bucketList() string { return strings.Join(store.AllBuckets, ", ") }

// ─── cache compact ────────────────────────────────────────────────────────────

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim freed disk space",
	Long: `Compact copies every live entry into a fresh database file and swaps it
in place of the old one, dropping the pages freed by earlier clears and
deletes. The store stays usable afterwards.`,
	Example: `  dailywx cache compact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := openStore(cmd)
		if err != nil {
			return err
		}
		// Compact reopens the underlying bolt.DB; the handle stays valid.
		defer deps.Close()

		say(cmd.OutOrStdout(), "Compacting %s ...\n", deps.Store.Path())
		before, after, err := deps.Store.Compact()
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}
		out := cmd.OutOrStdout()
		say(out, "✓ Compacted: %s -> %s\n", humanBytes(before), humanBytes(after))
		if before <= after {
			say(out, "  Nothing to reclaim.\n")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheCompactCmd)

	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "clear every bucket")
	cacheClearCmd.Flags().StringVar(&cacheClearBucket, "bucket", "", "clear one bucket: raw|tables|runs")
}

func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	v, suffix := float64(b)/unit, "KB"
	if v >= unit {
		v, suffix = v/unit, "MB"
	}
	return fmt.Sprintf("%.1f %s", v, suffix)
}
