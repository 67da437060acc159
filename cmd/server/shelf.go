package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/unalkalkan/ShelfReader/internal/parser"
)

func newShelfCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelf",
		Short: "Inspect and manage the bookshelf without starting the server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the books on the shelf, most recently read first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tPROGRESS\tLAST READ")
			for _, b := range a.catalog.List(cmd.Context()) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\t%s\n", b.ID, b.Title, b.Author, b.Progress, b.LastRead.Format(time.DateTime))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.epub>",
		Short: "Add an EPUB file to the shelf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := filepath.Base(args[0])
			if parser.FormatOf(name) != "epub" {
				return fmt.Errorf("not an .epub file: %s", name)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.session.OpenNew(cmd.Context(), data, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q by %s as %s\n", entry.Title, entry.Author, entry.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a book and its stored file from the shelf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.session.Remove(cmd.Context(), args[0]) {
				return fmt.Errorf("book not found: %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	})

	return cmd
}
