package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func tickCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "tick [n]",
		Short: "Advance the clock and expire overdue obligations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := int64(1)
			if len(args) == 1 {
				var err error
				n, err = strconv.ParseInt(args[0], 10, 64)
				if err != nil || n < 1 {
					return fmt.Errorf("tick: %q is not a positive number of ticks", args[0])
				}
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, newLogger(), false)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			date, err := a.store.AdvanceClock(ctx, n, description)
			if err != nil {
				return fmt.Errorf("tick: %w", err)
			}
			fmt.Printf("Tick %d: %s\n", date.Tick, date.Description)

			agents, err := a.roster.All(ctx)
			if err != nil {
				return fmt.Errorf("tick: %w", err)
			}
			names := make(map[int64]string, len(agents))
			for _, ag := range agents {
				names[ag.ID] = ag.Name
			}

			expired := 0
			for _, ag := range agents {
				lapsed, err := ag.Tick(ctx)
				if err != nil {
					return fmt.Errorf("tick: %s: %w", ag.Name, err)
				}
				for _, o := range lapsed {
					item, err := a.store.GetNoun(ctx, o.ItemID)
					if err != nil {
						return fmt.Errorf("tick: %w", err)
					}
					fmt.Printf("  %s failed to give %s %d %s\n", ag.Name, names[o.OwedID], o.Amount, item.Name)
					expired++
				}
			}
			if expired == 0 {
				fmt.Println("  Every promise is still on time.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "date", "", "New description of the date")
	return cmd
}
