package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/slideshow-api/internal/bootstrap"
	"github.com/maauso/slideshow-api/internal/config"
	"github.com/maauso/slideshow-api/internal/job"
	"github.com/maauso/slideshow-api/internal/transition"
)

// errNoImages is returned when the arguments name no image files.
var errNoImages = errors.New("no image files given")

// imageExtensions are picked up when a directory is passed.
var imageExtensions = []string{".jpg", ".jpeg", ".png"}

type renderOptions struct {
	audio      string
	transition string
	duration   time.Duration
	fps        int
	caption    string
	noCover    bool
	output     string
	verbose    bool
}

func newRenderCommand() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render <image|dir>...",
		Short: "Render images into an MP4 slideshow",
		Long: "Render images into a 1080x1920 MP4 slideshow. Directories are expanded to the\n" +
			"jpg and png files they contain, in name order. Settings not given as flags\n" +
			"come from the same environment variables the server reads.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			captionSet := cmd.Flags().Changed("caption")
			return runRender(ctx, cmd.OutOrStdout(), args, opts, captionSet)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.audio, "audio", "a", "", "Soundtrack (mp3 or wav), looped or cut to the video length")
	flags.StringVarP(&opts.transition, "transition", "t", "fade", "Transition: 1|fade, 2|slide-right, 3|slide-down")
	flags.DurationVarP(&opts.duration, "duration", "d", 0, "How long each image is shown (default from FRAME_DURATION)")
	flags.IntVar(&opts.fps, "fps", 0, "Output frame rate (default from FPS)")
	flags.StringVarP(&opts.caption, "caption", "c", "", "Cover caption; an empty value draws none (default from COVER_TEXT)")
	flags.BoolVar(&opts.noCover, "no-cover", false, "Do not prepend a cover frame")
	flags.StringVarP(&opts.output, "output", "o", "output.mp4", "Output video path")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every pipeline step")
	return cmd
}

func runRender(ctx context.Context, out io.Writer, args []string, opts renderOptions, captionSet bool) error {
	kind, err := transition.ParseKind(opts.transition)
	if err != nil {
		return err
	}

	paths, err := collectImages(args)
	if err != nil {
		return err
	}

	outputPath, err := filepath.Abs(opts.output)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Stage the video next to its destination so the final move is a rename.
	cfg.OutputDir = filepath.Dir(outputPath)
	cfg.LogLevel = "warn"
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	input := job.RenderInput{
		Transition:     kind,
		FrameDuration:  opts.duration,
		FPS:            opts.fps,
		DisableCover:   opts.noCover,
		OutputFilename: filepath.Base(outputPath),
	}
	if captionSet {
		input.CoverText = &opts.caption
	}
	for _, p := range paths {
		data, err := os.ReadFile(p) // #nosec G304 - paths are given on the command line
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		input.Images = append(input.Images, job.Upload{Name: filepath.Base(p), Data: data})
	}
	if opts.audio != "" {
		data, err := os.ReadFile(opts.audio) // #nosec G304 - path is given on the command line
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		input.Audio = &job.Upload{Name: filepath.Base(opts.audio), Data: data}
	}

	result, err := deps.RenderService.Render(ctx, input)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}

	finalPath := filepath.Join(cfg.OutputDir, filepath.Base(result.VideoPath))
	if err := os.Rename(result.VideoPath, finalPath); err != nil {
		return fmt.Errorf("move video into place: %w", err)
	}
	_ = os.Remove(filepath.Dir(result.VideoPath))

	fmt.Fprintf(out, "wrote %s (%d frames, %s, %s)\n",
		finalPath, result.Frames, result.Duration.Round(time.Millisecond), kind)
	return nil
}

// collectImages expands directories to their image files in name order.
// Plain files are taken as given, whatever their extension.
func collectImages(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("image input: %w", err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read image directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return nil, errNoImages
	}
	return paths, nil
}

func newTransitionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "List the supported transitions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, k := range transition.Kinds() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", int(k), k)
			}
		},
	}
}
