package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"video-converter/internal/startup"
	"video-converter/internal/transcoder"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

type serveOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	root := &cobra.Command{
		Use:   "video-converter",
		Short: "Video conversion service",
		Long: "HTTP service that accepts video uploads, converts them to H.264/AAC MP4 with ffmpeg " +
			"and serves the result from a per-upload session directory.",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServer(opts.configFile, opts.envFile)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to .env file (default: ./.env if present)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newConvertCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd(opts *serveOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service (default)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServer(opts.configFile, opts.envFile)
		},
	}
}

func newConvertCmd() *cobra.Command {
	var (
		ffmpegPath string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "convert SRC DST",
		Short: "Convert a local file with the same settings as the service",
		Long: "Convert a local file with the same settings as the service.\n\n" +
			"Exit status is 0 on success, 2 when ffmpeg cannot be found and 1 when the conversion fails.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConvert(ctx, cmd, transcoder.New(transcoder.Config{Binary: ffmpegPath, Timeout: timeout}), args[0], args[1])
		},
	}

	defaultBinary := os.Getenv("FFMPEG_PATH")
	if defaultBinary == "" {
		defaultBinary = transcoder.DefaultBinary
	}
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", defaultBinary, "ffmpeg executable name or path")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the conversion after this long (0 = no limit)")
	return cmd
}

// Converter is the part of the transcoder the convert command needs.
type Converter interface {
	Transcode(ctx context.Context, src, dst string) transcoder.Result
}

func runConvert(ctx context.Context, cmd *cobra.Command, conv Converter, src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return &exitError{code: 1, err: fmt.Errorf("source: %w", err)}
	}

	res := conv.Transcode(ctx, src, dst)
	switch res.Outcome {
	case transcoder.OutcomeSuccess:
		fmt.Fprintf(cmd.OutOrStdout(), "Converted %s -> %s in %v\n", src, res.Path, res.Duration.Round(time.Millisecond))
		return nil
	case transcoder.OutcomeToolMissing:
		return &exitError{code: 2, err: res.Err()}
	default:
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), stderr)
		}
		return &exitError{code: 1, err: res.Err()}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "video-converter %s\n", info.Version)
			fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(out, "  go version: %s\n", info.GoVersion)
			fmt.Fprintf(out, "  platform:   %s/%s\n", info.OS, info.Arch)
		},
	}
}
