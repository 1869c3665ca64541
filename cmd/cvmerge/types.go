package main

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skdltmxn/cvmerge/internal/cv"
	"github.com/skdltmxn/cvmerge/internal/tpi"
	"github.com/skdltmxn/cvmerge/pdb"
)

var (
	typesKind  string
	typesLimit int
	typesIDs   bool
	typesIndex uint32
)

var typesCmd = &cobra.Command{
	Use:   "types <pdb-file>",
	Short: "List the leaves of a type server",
	Long: `List the TPI leaves of a type-server PDB, or its IPI leaves with --ids.

Use --kind to filter by leaf kind (for example LF_STRUCTURE).`,
	Args: cobra.ExactArgs(1),
	RunE: runTypes,
}

func init() {
	typesCmd.Flags().StringVarP(&typesKind, "kind", "k", "", "filter by leaf kind (LF_POINTER, LF_STRUCTURE, ...)")
	typesCmd.Flags().IntVarP(&typesLimit, "limit", "n", 0, "limit number of leaves shown (0 = unlimited)")
	typesCmd.Flags().BoolVar(&typesIDs, "ids", false, "list the IPI stream instead of the TPI stream")
	typesCmd.Flags().Uint32VarP(&typesIndex, "index", "i", 0, "show the type index fields of a single leaf")
}

func runTypes(cmd *cobra.Command, args []string) error {
	pdbPath := args[0]

	f, err := pdb.Open(pdbPath)
	if err != nil {
		return fmt.Errorf("failed to open PDB: %w", err)
	}
	defer f.Close()

	load := f.Types
	if typesIDs {
		load = f.IDs
	}
	s, err := load()
	if err != nil {
		return fmt.Errorf("failed to get types: %w", err)
	}

	if cmd.Flags().Changed("index") {
		return showLeaf(s, cv.TypeIndex(typesIndex))
	}

	fmt.Fprintf(output, "%-8s %-20s %s\n", "INDEX", "KIND", "SIZE")
	fmt.Fprintf(output, "%s\n", strings.Repeat("-", 40))

	count := 0
	for i, rec := range s.Records {
		if typesKind != "" && !strings.EqualFold(rec.LeafKind().String(), typesKind) {
			continue
		}
		ti := s.Header.TypeIndexBegin + cv.TypeIndex(i)
		fmt.Fprintf(output, "0x%04X   %-20s %d\n", uint32(ti), rec.LeafKind().String(), len(rec))
		count++
		if typesLimit > 0 && count >= typesLimit {
			break
		}
	}

	fmt.Fprintf(output, "\nTotal: %d leaves\n", count)
	return nil
}

func showLeaf(s *tpi.Stream, ti cv.TypeIndex) error {
	if !s.Contains(ti) {
		return fmt.Errorf("type index 0x%X outside [0x%X, 0x%X)", uint32(ti),
			uint32(s.Header.TypeIndexBegin), uint32(s.Header.TypeIndexEnd))
	}
	rec := s.Records[ti-s.Header.TypeIndexBegin]
	refs, err := cv.LeafTIRefs(rec)
	if err != nil {
		return fmt.Errorf("leaf 0x%X: %w", uint32(ti), err)
	}
	fmt.Fprintf(output, "0x%04X %s (%d bytes)\n", uint32(ti), rec.LeafKind(), len(rec))
	for _, r := range refs {
		fmt.Fprintf(output, "  +0x%02X %s 0x%04X\n", r.Offset, r.Space,
			binary.LittleEndian.Uint32(rec[r.Offset:]))
	}
	return nil
}
