package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/spf13/cobra"

	"github.com/gen2brain/alsahal"
)

func createPlayCmd(opts *globalOptions) *cobra.Command {
	var screenOff bool

	cmd := &cobra.Command{
		Use:   "play <file.wav|file.mp3>",
		Short: "Play a file through the output stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			dec, err := openDecoder(f)
			if err != nil {
				return err
			}

			dev, logger, err := opts.openDevice()
			if err != nil {
				return err
			}
			defer dev.Close()

			if screenOff {
				if err := dev.SetParameters("screen_state=off"); err != nil {
					return err
				}
			}

			out, err := dev.OpenOutputStream()
			if err != nil {
				return err
			}
			defer out.Close()

			var rs *alsahal.Resampler
			if dec.SampleRate() != out.SampleRate() {
				rs, err = alsahal.NewResampler(uint32(dec.SampleRate()), uint32(out.SampleRate()), 2)
				if err != nil {
					return err
				}
			}

			logger.Info("Playing", "file", args[0], "rate", dec.SampleRate(), "channels", dec.NumChans(),
				"bits", dec.BitDepth(), "latency", out.Latency())

			ctx, cancel := signalContext()
			defer cancel()

			chans := dec.NumChans()
			chunk := out.BufferSize() / 4
			buf := &audio.IntBuffer{
				Format: &audio.Format{NumChannels: chans, SampleRate: dec.SampleRate()},
				Data:   make([]int, chunk*chans),
			}

			var (
				stereo    []int16
				resampled []int16
				pcm       []byte
				played    int
			)

			start := time.Now()

			for ctx.Err() == nil {
				n, err := dec.PCMBuffer(buf)
				if n == 0 || errors.Is(err, io.EOF) {
					break
				}

				if err != nil {
					return fmt.Errorf("decode: %w", err)
				}

				stereo = toStereo(stereo[:0], buf.Data[:n], chans, dec.BitDepth())
				frames := stereo

				if rs != nil {
					need := rs.MaxOutput(len(stereo)/2) * 2
					if cap(resampled) < need {
						resampled = make([]int16, need)
					}

					_, k := rs.Resample(stereo, resampled[:need])
					frames = resampled[:k*2]
				}

				pcm = encode(pcm[:0], frames)

				if _, err := out.Write(pcm); err != nil {
					if errors.Is(err, alsahal.ErrUnderrun) {
						logger.Warn("Underrun")

						continue
					}

					return err
				}

				played += len(frames) / 2
			}

			logger.Info("Playback finished", "frames", played, "elapsed", time.Since(start).Round(time.Millisecond))

			return nil
		},
	}

	cmd.Flags().BoolVar(&screenOff, "screen-off", false, "Use long buffering, as with the screen off")

	return cmd
}

// toStereo converts interleaved decoded samples to 16-bit stereo. Mono is duplicated and
// channels beyond the second are dropped.
func toStereo(dst []int16, samples []int, chans, bitDepth int) []int16 {
	for i := 0; i+chans <= len(samples); i += chans {
		left := to16(samples[i], bitDepth)
		right := left

		if chans > 1 {
			right = to16(samples[i+1], bitDepth)
		}

		dst = append(dst, left, right)
	}

	return dst
}

func encode(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}

	return dst
}
