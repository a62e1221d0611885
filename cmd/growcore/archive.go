package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"growcore/internal/blob"
	"growcore/internal/core"
)

func newArchiveCommand(root *rootOptions) *cobra.Command {
	var opts core.ArchiveOptions
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Copy the event log to the configured blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			dst, err := blob.Open(cmd.Context(), cfg.BlobConfig())
			if err != nil {
				return err
			}
			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.Background()) }()

			manifest, err := a.svc.ArchiveEvents(cmd.Context(), dst, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d events (seq %d..%d) in %d chunks to %s:%s\n",
				manifest.EventCount, manifest.FirstSeq, manifest.LastSeq, len(manifest.Chunks), dst.Driver(), manifest.Prefix)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "object key prefix (default events/<unix>)")
	cmd.Flags().Uint64Var(&opts.AfterSeq, "after-seq", 0, "archive only events after this sequence number")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", core.DefaultArchiveChunkSize, "events per object")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", core.DefaultArchiveConcurrency, "parallel uploads")
	return cmd
}
