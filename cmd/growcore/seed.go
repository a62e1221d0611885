package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"growcore/internal/seed"
)

func newSeedCommand(root *rootOptions) *cobra.Command {
	var (
		file  string
		actor string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create facilities, rooms, strains and tags from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			doc, err := seed.Decode(f)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.Background()) }()

			sum, err := seed.Apply(cmd.Context(), a.svc, doc, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "facilities=%d rooms=%d strains=%d tags=%d tags_skipped=%d existing=%d\n",
				sum.Facilities, sum.Rooms, sum.Strains, sum.TagsCreated, sum.TagsSkipped, sum.Existing)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed YAML file")
	cmd.Flags().StringVar(&actor, "actor", "seed", "actor recorded on created events")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
