package main

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/tpi"
	"github.com/skdltmxn/cvmerge/pdb"
)

var infoKinds int

var infoCmd = &cobra.Command{
	Use:   "info <pdb-file>",
	Short: "Display type server information",
	Long: `Display the identity of a type-server PDB (version, GUID, age) and a
summary of its TPI and IPI streams, including the most frequent leaf kinds.`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().IntVar(&infoKinds, "kinds", 5, "number of leaf kinds to show per stream")
}

func runInfo(cmd *cobra.Command, args []string) error {
	f, err := pdb.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open PDB: %w", err)
	}
	defer f.Close()

	info, err := f.Info()
	if err != nil {
		return fmt.Errorf("failed to read PDB info: %w", err)
	}

	fmt.Fprintf(output, "Type Server: %s\n", args[0])
	fmt.Fprintf(output, "  Version: %d  Age: %d\n", info.Version, info.Age)
	fmt.Fprintf(output, "  GUID: %s\n", formatGUID(info.GUID))
	fmt.Fprintf(output, "  Streams: %d of %s blocks\n", f.NumStreams(), humanize.IBytes(uint64(f.BlockSize())))

	types, err := f.Types()
	if err != nil {
		return fmt.Errorf("failed to read TPI: %w", err)
	}
	printStream("TPI", types)
	// Older type servers carry no IPI stream.
	if ids, err := f.IDs(); err == nil {
		printStream("IPI", ids)
	}
	return nil
}

func printStream(name string, s *tpi.Stream) {
	fmt.Fprintf(output, "%s: %s leaves [0x%X, 0x%X), %s\n", name,
		humanize.Comma(int64(len(s.Records))),
		uint32(s.Header.TypeIndexBegin), uint32(s.Header.TypeIndexEnd),
		humanize.IBytes(uint64(s.Header.TypeRecordBytes)))

	counts := make(map[cv.LeafKind]int)
	for _, rec := range s.Records {
		counts[rec.LeafKind()]++
	}
	kinds := make([]cv.LeafKind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b cv.LeafKind) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, k := range kinds[:min(max(infoKinds, 0), len(kinds))] {
		fmt.Fprintf(output, "  %-20s %s\n", k, humanize.Comma(int64(counts[k])))
	}
}

// formatGUID renders guid in registry format; the first three groups are
// stored little endian.
func formatGUID(guid [16]byte) string {
	return fmt.Sprintf("{%08X-%04X-%04X-%X-%X}",
		uint32(guid[0])|uint32(guid[1])<<8|uint32(guid[2])<<16|uint32(guid[3])<<24,
		uint16(guid[4])|uint16(guid[5])<<8,
		uint16(guid[6])|uint16(guid[7])<<8,
		guid[8:10], guid[10:])
}
