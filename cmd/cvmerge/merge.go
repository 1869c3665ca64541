package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/merge"
	"github.com/skdltmxn/cvmerge/objfile"
)

var (
	mergeWorkers    int
	mergeLibPaths   []string
	mergeDeepVerify bool
	mergeRadix      int
	mergeList       bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <obj-file>...",
	Short: "Merge the type records of object files",
	Long: `Merge the CodeView type records of the given object files and of the
type servers they reference, and report what was deduplicated.

Use --list to print the merged TPI and IPI leaves.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().IntVarP(&mergeWorkers, "workers", "j", 0, "number of workers (0 = GOMAXPROCS)")
	mergeCmd.Flags().StringSliceVarP(&mergeLibPaths, "lib", "L", nil, "directory searched for type-server PDBs")
	mergeCmd.Flags().BoolVar(&mergeDeepVerify, "deep-verify", false, "compare leaf contents on equal hashes")
	mergeCmd.Flags().IntVar(&mergeRadix, "radix-threshold", 0, "leaf count from which the radix sort is used")
	mergeCmd.Flags().BoolVarP(&mergeList, "list", "l", false, "list the merged leaves")
}

// mergeOptions combines the config file with the command line; flags win.
func mergeOptions(cmd *cobra.Command) merge.Options {
	opts := merge.Options{
		Workers:    conf.Workers,
		LibPaths:   append(conf.LibPaths, mergeLibPaths...),
		DeepVerify: conf.DeepVerify || mergeDeepVerify,
	}
	if conf.RadixThreshold != nil {
		opts.RadixThreshold = *conf.RadixThreshold
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = mergeWorkers
	}
	if cmd.Flags().Changed("radix-threshold") {
		opts.RadixThreshold = mergeRadix
	}
	return opts
}

func runMerge(cmd *cobra.Command, args []string) error {
	opts := mergeOptions(cmd)

	objs, err := objfile.OpenAll(args, opts.Workers)
	if err != nil {
		return fmt.Errorf("failed to read objects: %w", err)
	}

	res, err := merge.Merge(objs, opts)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	for _, w := range multierr.Errors(res.Warnings) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", w)
	}

	st := res.Stats
	fmt.Fprintf(output, "Objects: %s (%d discarded)\n", english.Plural(st.Objects, "object", ""), st.Discarded)
	fmt.Fprintf(output, "Type Servers: %d\n", st.TypeServers)
	for _, ts := range res.TypeServers {
		fmt.Fprintf(output, "  %s %s\n", formatGUID(ts.GUID), ts.Path)
	}
	printCounts("Types", st.InputLeaves[cv.SpaceTPI], res.Types)
	printCounts("IDs", st.InputLeaves[cv.SpaceIPI], res.IDs)

	if mergeList {
		printLeaves("TPI", res.Types)
		printLeaves("IPI", res.IDs)
	}
	return nil
}

func printCounts(title string, in int, recs []cv.Record) {
	var size uint64
	for _, rec := range recs {
		size += uint64(len(rec))
	}
	fmt.Fprintf(output, "%s: %s -> %s (%s)\n", title,
		humanize.Comma(int64(in)), humanize.Comma(int64(len(recs))), humanize.IBytes(size))
}

func printLeaves(title string, recs []cv.Record) {
	fmt.Fprintf(output, "\n%s\n", title)
	fmt.Fprintf(output, "%-8s %-20s %s\n", "INDEX", "KIND", "SIZE")
	fmt.Fprintf(output, "%s\n", strings.Repeat("-", 40))
	for i, rec := range recs {
		fmt.Fprintf(output, "0x%04X   %-20s %d\n",
			uint32(cv.MinComplexIndex)+uint32(i), rec.LeafKind().String(), len(rec))
	}
}
