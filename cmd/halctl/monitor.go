package main

import (
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsahal"
)

func createMonitorCmd(opts *globalOptions) *cobra.Command {
	var devDir string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch configuration and device nodes and log HAL events",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, logger, err := opts.openDevice()
			if err != nil {
				return err
			}
			defer dev.Close()

			unsubs := []func(){
				alsahal.Subscribe(dev, func(ev alsahal.StreamStateEvent) {
					logger.Info("Stream state", "direction", ev.Direction.String(), "active", ev.Active, "node", ev.Node, "rate", ev.Rate)
				}),
				alsahal.Subscribe(dev, func(ev alsahal.UnderrunEvent) {
					logger.Warn("Underrun", "node", ev.Node)
				}),
				alsahal.Subscribe(dev, func(ev alsahal.RouteChangedEvent) {
					logger.Info("Route changed", "direction", ev.Direction.String(),
						"from", ev.Old.Describe(ev.Direction), "to", ev.New.Describe(ev.Direction))
				}),
				alsahal.Subscribe(dev, func(ev alsahal.ConfigReloadedEvent) {
					logger.Info("Configuration reloaded", "path", ev.Path, "hdmi", ev.Config.HDMI)
				}),
			}
			defer func() {
				for _, unsub := range unsubs {
					unsub()
				}
			}()

			if opts.configFile != "" {
				if err := dev.WatchConfig(opts.configFile); err != nil {
					return err
				}
			}

			if err := dev.WatchHotplug(devDir); err != nil {
				return err
			}

			logger.Info("Monitoring", "config", opts.configFile, "dev", devDir)

			ctx, cancel := signalContext()
			defer cancel()

			<-ctx.Done()

			return nil
		},
	}

	cmd.Flags().StringVar(&devDir, "dev", "/dev/snd", "PCM device directory to watch")

	return cmd
}
