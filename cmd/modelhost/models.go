package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"modelhost/internal/common/fsutil"
	"modelhost/internal/registry"
	"modelhost/internal/store"
)

func newModelsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage registered models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("models requires a subcommand: add|ls|rm|scan")
		},
	}

	openDB := func(cmd *cobra.Command) (*store.DB, string, error) {
		cfg, err := resolveConfig(g, cmd.Flags().Changed, os.LookupEnv)
		if err != nil {
			return nil, "", err
		}
		dir, err := fsutil.ResolveDir(cfg.DataDir, true)
		if err != nil {
			return nil, "", err
		}
		db, err := store.Open(dir)
		return db, cfg.ModelsDir, err
	}

	var name string
	var uncensored bool
	add := &cobra.Command{
		Use:     "add <id> <dir>",
		Short:   "Register a directory holding .gguf weights",
		Example: "  modelhost models add qwen3-0.6b ~/models/qwen3-0.6b --name 'Qwen3 0.6B'",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := fsutil.ResolveDir(args[1], false)
			if err != nil {
				return err
			}
			e, ok, err := registry.Inspect(dir)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no .gguf weights in %s", dir)
			}
			db, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			m := store.Model{ModelID: args[0], Name: name, Quantized: e.Quantized, Uncensored: uncensored}
			if err := db.RegisterModel(cmd.Context(), m, dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", args[0], dir)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "Display name (defaults to the id)")
	add.Flags().BoolVar(&uncensored, "uncensored", false, "Mark the model as an uncensored variant")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List registered models and where they are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			models, err := db.Models(cmd.Context())
			if err != nil {
				return err
			}
			statuses, err := db.StorageStatuses(cmd.Context())
			if err != nil {
				return err
			}
			paths := make(map[string]store.StorageStatus, len(statuses))
			for _, s := range statuses {
				paths[s.ModelID] = s
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tQUANTIZED\tSTATUS\tPATH")
			for _, m := range models {
				s := paths[m.ModelID]
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", m.ModelID, m.Name, m.Quantized, s.Status, s.LocalPath)
			}
			return tw.Flush()
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Forget a registered model; files on disk are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.DeleteModel(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("remove %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}

	scan := &cobra.Command{
		Use:   "scan",
		Short: "Register every model directory under the models dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, modelsDir, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			found, err := registry.Sync(cmd.Context(), db, modelsDir)
			if err != nil {
				return err
			}
			for _, e := range found {
				fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", e.ID, e.Dir)
			}
			return nil
		},
	}

	cmd.AddCommand(add, ls, rm, scan)
	return cmd
}
