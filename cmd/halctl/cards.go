package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gen2brain/alsahal"
	"github.com/gen2brain/alsahal/internal/logging"
	"github.com/gen2brain/alsahal/internal/pcm"
)

func createCardsCmd(opts *globalOptions) *cobra.Command {
	var (
		procDir string
		devDir  string
	)

	cmd := &cobra.Command{
		Use:   "cards",
		Short: "List sound cards and the endpoint chosen for every route class",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			cards, err := pcm.Cards(procDir)
			if err != nil {
				return err
			}

			for _, card := range cards {
				fmt.Print(card)
			}

			backend := &alsahal.ALSA{Dir: devDir, Logger: logging.GetLogger("alsa")}
			resolver := alsahal.NewCardResolver(backend, cfg, logging.GetLogger("card"))

			fmt.Println("\nRoute classes:")

			for _, c := range []struct {
				dir   alsahal.Direction
				route alsahal.Route
			}{
				{alsahal.Output, alsahal.OutSpeaker},
				{alsahal.Output, alsahal.OutWiredHeadphone},
				{alsahal.Output, alsahal.OutAnalogDock},
				{alsahal.Output, alsahal.OutAuxDigital},
				{alsahal.Input, alsahal.InBuiltinMic},
				{alsahal.Input, alsahal.InWiredHeadset},
				{alsahal.Input, alsahal.InAuxDigital},
			} {
				ep, err := resolver.Resolve(c.dir, c.route)
				if err != nil {
					fmt.Printf("  %-3s %-16s -\n", c.dir, c.route.Describe(c.dir))

					continue
				}

				fmt.Printf("  %-3s %-16s %s\n", c.dir, c.route.Describe(c.dir), ep)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&procDir, "proc", "/proc/asound", "asound procfs directory")
	cmd.Flags().StringVar(&devDir, "dev", "/dev/snd", "PCM device directory")

	return cmd
}
