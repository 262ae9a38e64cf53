package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vela-storage/bm25idx"
	"github.com/vela-storage/bm25idx/config"
	"github.com/vela-storage/bm25idx/fspage"
)

func queryCmd() *cobra.Command {
	var pageSize uint32
	var k int

	c := &cobra.Command{
		Use:   "query <index-file> <term[:boost]>...",
		Short: "run a top-k query against an index file and print locators",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, err := parseQueryTerms(args[1:])
			if err != nil {
				return err
			}

			pm, err := fspage.Open(args[0], pageSize)
			if err != nil {
				return err
			}
			defer pm.Close()

			idx, err := bm25idx.Open(pm, metaBlock, config.Default())
			if err != nil {
				return err
			}

			results, err := idx.Query(terms, k, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, r := range results {
				fmt.Fprintf(out, "%2d. locator=%-10d score=%.4f\n", i+1, uint64(r.Locator), r.Score)
			}
			return nil
		},
	}

	c.Flags().Uint32Var(&pageSize, "page-size", fspage.DefaultPageSize, "page size in bytes")
	c.Flags().IntVar(&k, "k", 10, "number of results to return")
	return c
}

// parseQueryTerms accepts "term" (boost 1) or "term:boost" tokens.
func parseQueryTerms(tokens []string) ([]bm25idx.QueryTerm, error) {
	out := make([]bm25idx.QueryTerm, len(tokens))
	for i, tok := range tokens {
		term, boostStr, hasBoost := strings.Cut(tok, ":")
		t, err := strconv.ParseUint(term, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid term %q: %w", tok, err)
		}
		boost := uint64(1)
		if hasBoost {
			boost, err = strconv.ParseUint(boostStr, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid boost %q: %w", tok, err)
			}
		}
		out[i] = bm25idx.QueryTerm{Term: bm25idx.TermID(t), Boost: uint32(boost)}
	}
	return out, nil
}
