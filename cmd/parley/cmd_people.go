package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/parley/pkg/personality"
)

func peopleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "people",
		Short: "List everyone in the world with their strongest traits",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, newLogger(), false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			agents, err := a.roster.All(ctx)
			if err != nil {
				return fmt.Errorf("people: %w", err)
			}
			if len(agents) == 0 {
				fmt.Println("Nobody lives here yet. Try: parley seed data/worlds/village.yaml")
				return nil
			}

			for _, ag := range agents {
				p, err := ag.Personality(ctx)
				if err != nil {
					return fmt.Errorf("people: %w", err)
				}
				owes, err := ag.Obligations(ctx)
				if err != nil {
					return fmt.Errorf("people: %w", err)
				}
				fmt.Printf("%-12s %-40s owes %d\n", ag.Name, topTraits(p, 3), len(owes))
			}
			return nil
		},
	}
}

// topTraits names the n strongest traits, immaturity excluded
func topTraits(p personality.Personality, n int) string {
	traits := make([]personality.Trait, 0, personality.Count-1)
	for i := 1; i < personality.Count; i++ {
		traits = append(traits, personality.Trait(i))
	}
	sort.SliceStable(traits, func(i, j int) bool {
		return p.Trait(traits[i]) > p.Trait(traits[j])
	})

	out := ""
	for i, t := range traits[:n] {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s %.2f", t, p.Trait(t))
	}
	return out
}
