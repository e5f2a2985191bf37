package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearsaylabs/hearsay/pkg/audio"
	"github.com/hearsaylabs/hearsay/pkg/cli"
)

var calibrateFlags struct {
	user  string
	name  string
	audio string
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Register a speaker's voice from an audio sample",
	Long: `Calibrate registers a speaker for later identification.

The sample must be a mono WAV file of at least 4 seconds of clean speech.
Calibrating a user again replaces their previous voice profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		sample, err := loadAudio(calibrateFlags.audio)
		if err != nil {
			return err
		}
		result, err := app.core.Calibrate(cmd.Context(), calibrateFlags.user, calibrateFlags.name, sample)
		if err != nil {
			return err
		}
		cli.PrintSuccess("calibrated %s (%s)", result.UserID, result.Status)
		if result.Transcript != "" {
			fmt.Printf("  heard: %q\n", result.Transcript)
		}
		return nil
	},
}

func init() {
	calibrateCmd.Flags().StringVarP(&calibrateFlags.user, "user", "u", "", "user id (required)")
	calibrateCmd.Flags().StringVarP(&calibrateFlags.name, "name", "n", "", "display name")
	calibrateCmd.Flags().StringVarP(&calibrateFlags.audio, "audio", "a", "", "path to a WAV sample (required)")
	calibrateCmd.MarkFlagRequired("user")
	calibrateCmd.MarkFlagRequired("audio")
	rootCmd.AddCommand(calibrateCmd)
}

// loadAudio reads a WAV file into a validated sample.
func loadAudio(path string) (audio.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return audio.Sample{}, fmt.Errorf("read audio: %w", err)
	}
	return audio.FromWAV(data)
}
