package alsahal

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandRunner runs a hardware bring-up command.
type CommandRunner interface {
	Run(ctx context.Context, command string) error
}

// ShellRunner runs commands with sh -c.
type ShellRunner struct{}

func (ShellRunner) Run(ctx context.Context, command string) error {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%q: %w: %s", command, err, out)
	}

	return nil
}

// RouteApplier pushes routing changes to the mixer.
type RouteApplier interface {
	ApplyRoutes(out, in Route) error
}

// MixerPaths returns the mixer path names enabled by a pair of routes.
func MixerPaths(out, in Route) []string {
	var paths []string

	if out&OutSpeaker != 0 {
		paths = append(paths, "speaker")
	}

	if out&outHeadphoneFamily != 0 {
		paths = append(paths, "headphone")
	}

	if out&OutAnalogDock != 0 {
		paths = append(paths, "dock")
	}

	if in&InBuiltinMic != 0 {
		paths = append(paths, "main-mic")
	}

	if in&InWiredHeadset != 0 {
		paths = append(paths, "headset-mic")
	}

	return paths
}

// bringUp runs the configured commands for every active class of the route and returns the
// hardware format of the last class in bring-up order. It must be called with d.mu held.
func (d *Device) bringUp(dir Direction, route Route) SampleFormat {
	format := FormatS16

	classes := ActiveClasses(dir, route)
	if d.cfg.HDMI.Wanted(dir, route) {
		classes = append([]Slot{HDMISlot(dir)}, classes...)
	}

	for _, class := range classes {
		rc := d.cfg.Route(class)

		if rc.Command != "" {
			d.logger.Info("Running bring-up command", "class", class.String(), "command", rc.Command)

			d.cmdMu.Lock()
			err := d.runner.Run(context.Background(), rc.Command)
			d.cmdMu.Unlock()

			if err != nil {
				d.logger.Warn("Bring-up command failed", "class", class.String(), "error", err)
			}
		}

		format = rc.Format
	}

	return format
}
