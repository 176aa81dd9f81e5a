package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/framecast/framecast-agent/internal/config"
	"github.com/framecast/framecast-agent/internal/encode"
	"github.com/framecast/framecast-agent/internal/exporter"
	"github.com/framecast/framecast-agent/internal/logging"
	"github.com/framecast/framecast-agent/internal/media"
	"github.com/framecast/framecast-agent/internal/project"
)

// newRenderCommand exports a project in-process, without the daemon.
func newRenderCommand() *cobra.Command {
	var outputFlag string
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "render <project.json>",
		Short: "Render a project to a video or GIF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cfg.LogLevel())

			proj, err := project.Load(args[0])
			if err != nil {
				return err
			}
			if formatFlag != "" {
				proj.Output.Format = project.Format(formatFlag)
			}

			outputPath := outputFlag
			if outputPath == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				outputPath = fmt.Sprintf("%s.%s", base, proj.Output.Format)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			decoder := media.NewFFmpeg(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
			newEncoder := func() encode.VideoEncoder {
				return encode.NewFFmpegEncoder(cfg.FFmpegPath(), logger)
			}
			exp := exporter.New(decoder, newEncoder, logger)

			res := exp.Export(ctx, exporter.Config{
				Project: proj,
				OnProgress: func(p exporter.Progress) {
					if p.IsHeartbeat {
						return
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%s %5.1f%% (frame %d/%d)",
						p.Phase, p.Percentage, p.CurrentFrame, p.TotalFrames)
				},
			})
			fmt.Fprintln(cmd.ErrOrStderr())

			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			if !res.Success {
				return res.Err
			}

			if err := os.WriteFile(outputPath, res.Blob, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outputPath, len(res.Blob))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file path (default <project>.<format>)")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Override output format (mp4 or gif)")

	return cmd
}
