package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gen2brain/alsahal"
	"github.com/gen2brain/alsahal/internal/logging"
	"github.com/gen2brain/alsahal/internal/mixer"
)

func createMixerCmd(opts *globalOptions) *cobra.Command {
	var (
		devDir string
		card   uint
	)

	cmd := &cobra.Command{
		Use:   "mixer",
		Short: "List the switch controls of a card",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			m, err := mixer.Open(devDir, card)
			if err != nil {
				return err
			}
			defer m.Close()

			fmt.Printf("Card %d: %s\n", card, m.Name())

			for _, name := range m.Controls() {
				states, err := m.Switch(name)
				if err != nil {
					continue
				}

				fmt.Printf("  %-40s %v\n", name, states)
			}

			return nil
		},
	}

	apply := &cobra.Command{
		Use:   "apply <out-routing> <in-routing>",
		Short: "Set the configured mixer paths for a pair of routing values",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			var routes [2]alsahal.Route
			for i, arg := range args {
				n, err := strconv.ParseUint(arg, 0, 32)
				if err != nil {
					return fmt.Errorf("routing %q: %w", arg, err)
				}

				routes[i] = alsahal.Route(n)
			}

			a := alsahal.NewMixerApplier(devDir, cfg.Mixer, logging.GetLogger("mixer"))

			return a.ApplyRoutes(routes[0], routes[1]&^alsahal.InBit)
		},
	}

	cmd.PersistentFlags().StringVar(&devDir, "dev", "/dev/snd", "Control device directory")
	cmd.Flags().UintVar(&card, "card", 0, "Card number")
	cmd.AddCommand(apply)

	return cmd
}
