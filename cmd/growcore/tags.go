package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"growcore/internal/core"
)

func newImportTagsCommand(root *rootOptions) *cobra.Command {
	var (
		file    string
		tagType string
		actor   string
	)
	cmd := &cobra.Command{
		Use:   "import-tags",
		Short: "Bulk import compliance tag serials, one per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			serials, err := readSerials(r)
			if err != nil {
				return err
			}
			if len(serials) == 0 {
				return fmt.Errorf("no tag serials in %s", file)
			}

			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.close(context.Background()) }()

			res, err := a.svc.ImportMetrcTags(cmd.Context(), core.ImportTagsInput{Tags: serials, TagType: tagType, Actor: actor})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "file with one serial per line, - for stdin")
	cmd.Flags().StringVar(&tagType, "tag-type", "", "tag type (default plant)")
	cmd.Flags().StringVar(&actor, "actor", "", "actor recorded on created events")
	return cmd
}

// readSerials returns non-blank lines; lines starting with # are comments.
func readSerials(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
