package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/clusters/internal/catalog"
	"github.com/robalobadob/clusters/internal/editor"
	"github.com/robalobadob/clusters/internal/puzzle"
)

var errInvalid = errors.New("puzzle is not valid")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clusters",
		Short:        "Author and share Clusters puzzles",
		SilenceUsage: true,
	}
	root.AddCommand(newSkeletonCmd(), newCheckCmd(), newShareCmd(), newDecodeCmd(), newListCmd())
	return root
}

func newSkeletonCmd() *cobra.Command {
	var groups, size int
	var date string
	cmd := &cobra.Command{
		Use:   "skeleton",
		Short: "Print a template puzzle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("--date: %w", err)
				}
				day = d
			}
			out, err := editor.Pretty(editor.Skeleton(groups, size, day))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().IntVar(&groups, "groups", 4, "number of groups")
	cmd.Flags().IntVar(&size, "size", 4, "items per group")
	cmd.Flags().StringVar(&date, "date", "", "puzzle date (YYYY-MM-DD), today by default")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Check that a puzzle file parses and is playable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			d, _ := editor.Check(raw)
			w := cmd.OutOrStdout()
			switch {
			case !d.Valid:
				fmt.Fprintf(w, "%s:%d:%d: %s\n", args[0], d.Line, d.Col, d.Message)
				return errInvalid
			case d.Problem != "":
				fmt.Fprintf(w, "%s: %s\n", args[0], d.Problem)
				return errInvalid
			}
			fmt.Fprintf(w, "%s: ok (save as %s)\n", args[0], editor.Filename(raw))
			return nil
		},
	}
}

func newShareCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "share <file>",
		Short: "Print a play link carrying the puzzle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			link, err := editor.ShareURL(base, raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "http://localhost:5173/", "site the link points at")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <payload>",
		Short: "Print the puzzle inside a ?custom= payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := puzzle.Decode(args[0])
			if err != nil {
				return err
			}
			out, err := editor.Pretty(def)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newListCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the puzzles of a catalog (the bundled pack by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := catalog.Open(dir).List()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", os.Getenv("PUZZLES_DIR"), "puzzle directory with manifest.json")
	return cmd
}
