package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vela-storage/bm25idx"
	"github.com/vela-storage/bm25idx/config"
	"github.com/vela-storage/bm25idx/fspage"
)

// docLine is one line of a build input file: a document's external
// locator and its sparse term vector, sorted by term-id.
type docLine struct {
	Locator uint64      `json:"locator"`
	Terms   []termCount `json:"terms"`
}

type termCount struct {
	Term  uint32 `json:"term"`
	Count uint32 `json:"count"`
}

func buildCmd() *cobra.Command {
	var docsPath string
	var pageSize uint32

	c := &cobra.Command{
		Use:   "build <index-file>",
		Short: "bulk-load documents from a JSON-lines file into a new index file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if docsPath == "" {
				return fmt.Errorf("--docs is required")
			}
			docs, err := readDocLines(docsPath)
			if err != nil {
				return err
			}

			pm, err := fspage.Open(args[0], pageSize)
			if err != nil {
				return err
			}
			defer pm.Close()

			opts := config.Default()
			opts.PageSize = pageSize

			idx, err := bm25idx.Build(pm, opts, docs)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "built index with %d documents, meta block %d\n", len(docs), idx.MetaBlock())
			return nil
		},
	}

	c.Flags().StringVar(&docsPath, "docs", "", "path to a JSON-lines file of {\"locator\":N,\"terms\":[{\"term\":N,\"count\":N}]}")
	c.Flags().Uint32Var(&pageSize, "page-size", fspage.DefaultPageSize, "page size in bytes")
	return c
}

func readDocLines(path string) ([]bm25idx.BuildDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []bm25idx.BuildDoc
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var dl docLine
		if err := json.Unmarshal(line, &dl); err != nil {
			return nil, fmt.Errorf("parse doc line: %w", err)
		}
		postings := make([]bm25idx.Posting, len(dl.Terms))
		var docLen uint32
		for i, t := range dl.Terms {
			postings[i] = bm25idx.Posting{Term: bm25idx.TermID(t.Term), Count: t.Count}
			docLen += t.Count
		}
		docs = append(docs, bm25idx.BuildDoc{
			Vector:  bm25idx.Vector{Postings: postings, DocLen: docLen},
			Locator: bm25idx.ExternalLocator(dl.Locator),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
