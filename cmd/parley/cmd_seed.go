package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/parley/internal/seed"
)

func seedCmd() *cobra.Command {
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "seed <world.yaml>",
		Short: "Load a world file into an empty database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := seed.LoadFile(args[0])
			if err != nil {
				return err
			}
			if validateOnly {
				fmt.Printf("%s is valid: %d people, %d nouns, %d beliefs\n", args[0], len(w.People), len(w.Nouns), len(w.Lore))
				return nil
			}

			log := newLogger()
			store, err := openStore(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed: opening store: %w", err)
			}
			defer func() { _ = store.Close() }()

			res, err := seed.Apply(cmd.Context(), store, w, log)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Printf("Seeded %s into %s\n", w.Name, cfg.Storage.Path)
			fmt.Printf("  people:    %d\n  nouns:     %d\n  beliefs:   %d\n  knowledge: %d\n  desires:   %d\n",
				res.People, res.Nouns, res.Beliefs, res.Knowledge, res.Desires)
			return nil
		},
	}

	cmd.Flags().BoolVar(&validateOnly, "validate", false, "Check the file without writing anything")
	return cmd
}
