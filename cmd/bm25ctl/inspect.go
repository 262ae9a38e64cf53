package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vela-storage/bm25idx"
	"github.com/vela-storage/bm25idx/fspage"
)

// metaBlock is the well-known root: Create allocates the meta page before
// anything else, and a freshly opened store's very first page allocation
// always lands on block 0 (an empty free-space bitmap hands out slot 0
// first), so Create/Build never need to persist the meta block number
// anywhere else for this single-index-per-file CLI.
const metaBlock = bm25idx.BlockNumber(0)

func inspectCmd() *cobra.Command {
	var pageSize uint32

	c := &cobra.Command{
		Use:   "inspect <index-file>",
		Short: "print meta-page and corpus statistics for an index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := fspage.Open(args[0], pageSize)
			if err != nil {
				return err
			}
			defer pm.Close()

			meta, err := bm25idx.ReadMetaPageData(pm, metaBlock)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version:              %d\n", meta.Version)
			fmt.Fprintf(out, "live documents:       %d\n", meta.DocCnt)
			fmt.Fprintf(out, "total posted terms:   %d\n", meta.DocTermCnt)
			fmt.Fprintf(out, "distinct term-ids:    %d\n", meta.TermIDCnt)
			fmt.Fprintf(out, "next doc-id:          %d\n", meta.CurrentDocID)
			fmt.Fprintf(out, "sealed up to doc-id:  %d\n", meta.SealedDocID)
			fmt.Fprintf(out, "growing full pages:   %d\n", meta.Growing.GrowingFullPageCount)
			fmt.Fprintf(out, "sealed term-ids:      %d\n", meta.Sealed.TermIDCnt)
			fmt.Fprintf(out, "sealed term info blk: %d\n", meta.Sealed.TermInfoBlkno)

			if meta.DocCnt > 0 {
				termStat, err := bm25idx.OpenTermStatStore(pm, meta.TermStatBlkno)
				if err != nil {
					return err
				}
				deleteBitmap, err := bm25idx.OpenDeleteBitmapStore(pm, meta.DeleteBitmapBlkno, uint32(meta.CurrentDocID))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tombstoned documents: %d\n", deleteBitmap.DeletedCount())
				printTopTerms(out, termStat, meta.Sealed.TermIDCnt)
			}
			return nil
		},
	}

	c.Flags().Uint32Var(&pageSize, "page-size", fspage.DefaultPageSize, "page size in bytes")
	return c
}

func printTopTerms(out interface{ Write([]byte) (int, error) }, termStat *bm25idx.TermStatStore, termIDCnt uint32) {
	limit := termIDCnt
	if limit > 20 {
		limit = 20
	}
	fmt.Fprintf(out, "document frequency of the first %d term-ids:\n", limit)
	for t := bm25idx.TermID(0); uint32(t) < limit; t++ {
		df, err := termStat.DocFreq(t)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "  term %-8d df=%d\n", t, df)
	}
}
