package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hearsaylabs/hearsay/pkg/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run and manage transcription sessions",
}

var sessionRunFlags struct {
	id    string
	audio string
}

var sessionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream an audio file through a transcription session",
	Long: `Run starts a session, streams the audio file to the transcription
provider in chunks, stops the session, and prints the resulting analysis.
Segments stay stored under the session id for later 'hearsay analysis'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		sample, err := loadAudio(sessionRunFlags.audio)
		if err != nil {
			return err
		}
		pcm := sample.PCMData()
		if len(pcm) == 0 {
			return fmt.Errorf("no PCM audio in %s", sessionRunFlags.audio)
		}

		sessionID := sessionRunFlags.id
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		ctx := cmd.Context()
		if err := app.core.StartSession(ctx, sessionID); err != nil {
			return err
		}
		fmt.Printf("session %s\n", sessionID)

		// 100ms chunks, lightly paced so the outbound queue never fills.
		chunkBytes := app.cfg.SampleRate / 10 * 2
		for off := 0; off < len(pcm); off += chunkBytes {
			end := min(off+chunkBytes, len(pcm))
			if err := app.core.SendAudio(ctx, sessionID, pcm[off:end]); err != nil {
				app.core.StopSession(ctx, sessionID)
				return err
			}
			time.Sleep(5 * time.Millisecond)
		}
		if err := app.core.StopSession(ctx, sessionID); err != nil {
			return err
		}

		return printAnalysis(ctx, app, sessionID)
	},
}

var sessionPurgeCmd = &cobra.Command{
	Use:   "purge <session-id>",
	Short: "Delete a stopped session's stored segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.core.PurgeSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("purged session %s", args[0])
		return nil
	},
}

func init() {
	sessionRunCmd.Flags().StringVar(&sessionRunFlags.id, "id", "", "session id (default: random)")
	sessionRunCmd.Flags().StringVarP(&sessionRunFlags.audio, "audio", "a", "", "path to a WAV file (required)")
	sessionRunCmd.MarkFlagRequired("audio")
	sessionCmd.AddCommand(sessionRunCmd)
	sessionCmd.AddCommand(sessionPurgeCmd)
	rootCmd.AddCommand(sessionCmd)
}
