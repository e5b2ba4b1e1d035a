package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"nbview/internal/kernel"
	"nbview/internal/layout"
	"nbview/internal/notebook"
	"nbview/internal/picture"
)

// ---------- flags ----------

type startFlags struct {
	style       string
	width       int
	height      int
	images      string
	kernel      string
	run         bool
	listKernels bool
	pager       bool
	verbose     bool

	protocol picture.Protocol
	auto     bool
}

// ---------- kernels ----------

func listKernels(w io.Writer, dirs []string) error {
	green := lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color("2"))
	for _, dir := range dirs {
		fmt.Fprintf(w, "%s:\n", dir)
		entries, err := kernel.List(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(w, "   %s (%s)\n", green.Render(e.Name), e.Spec.DisplayName)
		}
	}
	return nil
}

// ---------- rendering ----------

func layoutOptions(path string, nb *notebook.Notebook, flags startFlags, out io.Writer) (layout.Options, error) {
	opts := layout.Options{
		FileName: path,
		Style:    flags.style,
		Images:   flags.protocol,
		Renderer: lipgloss.NewRenderer(out),
	}

	if flags.kernel != "" {
		e, err := kernel.Find(kernel.Directories(), flags.kernel)
		if err != nil {
			return opts, err
		}
		slog.Debug("kernel override", "name", e.Name, "dir", e.Dir)
		opts.Kernel = e.Spec.DisplayName
		opts.Language = e.Spec.Language
	}

	opts.Geometry = layout.Geometry{Width: layout.DefaultWidth, Height: layout.DefaultHeight}
	f, isFile := out.(*os.File)
	tty := isFile && layout.IsTerminal(f)
	if tty {
		opts.Geometry = layout.DetectGeometry(f)
	} else {
		opts.Renderer.SetColorProfile(termenv.Ascii)
	}
	if flags.auto {
		opts.Images = picture.None
		if tty {
			opts.Images = picture.DetectProtocol(os.Getenv)
		}
	}

	if flags.width > 0 {
		opts.Geometry.Width = flags.width
	}
	if flags.height > 0 {
		opts.Geometry.Height = flags.height
	}
	slog.Debug("render setup", "width", opts.Geometry.Width, "height", opts.Geometry.Height,
		"images", opts.Images, "tty", tty, "cells", len(nb.Cells))
	return opts, nil
}

func printNotebook(w io.Writer, path string, flags startFlags) error {
	nb, err := notebook.ParseFile(path)
	if err != nil {
		return err
	}
	opts, err := layoutOptions(path, nb, flags, w)
	if err != nil {
		return err
	}

	if flags.pager {
		f, ok := w.(*os.File)
		if !ok || !layout.IsTerminal(f) {
			return errors.New("stdout is not a TTY (refusing to start the pager)")
		}
		return runPager(path, nb, opts)
	}

	engine, err := layout.New(w, opts)
	if err != nil {
		return err
	}
	return engine.Render(nb)
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// ---------- cobra CLI ----------

func newCommand() *cobra.Command {
	var flags startFlags

	cmd := &cobra.Command{
		Use:           "nbview [file.ipynb]",
		Short:         "Display a Jupyter notebook and its saved outputs in the terminal",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.listKernels {
				if len(args) > 0 || flags.kernel != "" || flags.run {
					return errors.New("--list-kernels takes no other arguments")
				}
				return listKernels(cmd.OutOrStdout(), kernel.Directories())
			}
			if flags.run {
				return errors.New("--run: executing notebooks is not supported; saved outputs are shown instead")
			}
			if len(args) == 0 {
				return errors.New("please specify a notebook file or --list-kernels")
			}
			return printNotebook(cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.run, "run", "r", false, "run the notebook and show fresh outputs (not supported)")
	cmd.Flags().StringVarP(&flags.kernel, "kernel", "k", "", "override the notebook's kernel by name (see --list-kernels)")
	cmd.Flags().BoolVar(&flags.listKernels, "list-kernels", false, "print the installed kernels and exit")
	cmd.Flags().StringVar(&flags.style, "style", "auto", "glamour style: auto, dark, light, notty, dracula, pink, or a JSON style file path")
	cmd.Flags().IntVar(&flags.width, "width", 0, "terminal width (0 = detect)")
	cmd.Flags().IntVar(&flags.height, "height", 0, "terminal height (0 = detect)")
	cmd.Flags().StringVar(&flags.images, "images", "auto", "image output: auto, kitty, blocks, none")
	cmd.Flags().BoolVarP(&flags.pager, "pager", "p", false, "browse the notebook in a scrollable view")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug information to stderr")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd.ErrOrStderr(), flags.verbose)
		if flags.width < 0 || flags.height < 0 {
			return fmt.Errorf("invalid size: --width %d --height %d", flags.width, flags.height)
		}
		if strings.EqualFold(strings.TrimSpace(flags.images), "auto") {
			flags.auto = true
			return nil
		}
		p, err := picture.ParseProtocol(flags.images)
		if err != nil {
			return err
		}
		flags.protocol = p
		return nil
	}
	return cmd
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
