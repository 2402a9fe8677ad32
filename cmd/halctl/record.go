package main

import (
	"encoding/binary"
	"os"
	"strconv"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsahal"
)

// gainEffect scales every sample of a quantum.
type gainEffect struct {
	gain float64
}

func (g gainEffect) Process(in, out *alsahal.AudioBuffer) error {
	n := min(in.FrameCount, out.FrameCount)

	for i := range n {
		v := float64(in.S16[i]) * g.gain
		out.S16[i] = int16(max(min(v, 32767), -32768))
	}

	in.FrameCount = n
	out.FrameCount = n

	return nil
}

func createRecordCmd(opts *globalOptions) *cobra.Command {
	var (
		rate     int
		duration time.Duration
		gain     float64
		route    uint32
	)

	cmd := &cobra.Command{
		Use:   "record <file.wav>",
		Short: "Record mono audio from the input stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dev, logger, err := opts.openDevice()
			if err != nil {
				return err
			}
			defer dev.Close()

			in, err := dev.OpenInputStream(audio.Format{NumChannels: 1, SampleRate: rate})
			if err != nil {
				return err
			}
			defer in.Close()

			if route != 0 {
				if err := in.SetParameters("routing=" + formatUint(route)); err != nil {
					return err
				}
			}

			if gain != 1 {
				if err := in.AddEffect(gainEffect{gain: gain}); err != nil {
					return err
				}
			}

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			enc := wav.NewEncoder(f, rate, 16, 1, 1)

			ctx, cancel := signalContext()
			defer cancel()

			total := int(duration.Seconds() * float64(rate))
			raw := make([]byte, in.BufferSize())
			buf := &audio.IntBuffer{
				Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
				SourceBitDepth: 16,
			}

			logger.Info("Recording", "file", args[0], "rate", rate, "duration", duration, "gain", gain)

			captured := 0
			for captured < total && ctx.Err() == nil {
				n, err := in.Read(raw)
				if err != nil {
					logger.Warn("Read failed", "error", err)

					continue
				}

				frames := min(n/2, total-captured)

				buf.Data = buf.Data[:0]
				for i := range frames {
					buf.Data = append(buf.Data, int(int16(binary.LittleEndian.Uint16(raw[2*i:]))))
				}

				if err := enc.Write(buf); err != nil {
					return err
				}

				captured += frames
			}

			logger.Info("Recording finished", "frames", captured)

			return enc.Close()
		},
	}

	cmd.Flags().IntVarP(&rate, "rate", "r", 16000, "Sample rate in Hz, a multiple of 100")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 5*time.Second, "Recording length")
	cmd.Flags().Float64Var(&gain, "gain", 1, "Linear gain applied as a capture effect")
	cmd.Flags().Uint32Var(&route, "route", 0, "Input route mask, e.g. 16 for the wired headset mic")

	return cmd
}

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
