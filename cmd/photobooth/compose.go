package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/export"
	"github.com/cjeanneret/photobooth/internal/logic/collage"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
)

type composeOptions struct {
	layout  string
	filters []string
	out     string
	quality int
}

func newComposeCmd(root *rootOptions) *cobra.Command {
	opts := &composeOptions{}
	cmd := &cobra.Command{
		Use:   "compose [flags] photo.jpg...",
		Short: "Compose JPEG files into a collage",
		Long: `Renders the given photos into a collage layout, in slot order, the same
way the web interface does. Slots without a photo stay white.`,
		Example: `  photobooth compose --layout 2x2 --filter none,bw,none,vintage a.jpg b.jpg c.jpg d.jpg
  photobooth compose --layout 3x1 --filter warm --out strip.jpg a.jpg b.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if opts.quality == 0 {
				opts.quality = cfg.Export.Quality
			}
			if opts.layout == "" {
				opts.layout = cfg.Defaults.Layout
			}
			out, err := runCompose(cmd, opts, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.layout, "layout", "l", "", "collage layout (2x2, 1+2, 3x1, 2x1)")
	cmd.Flags().StringSliceVarP(&opts.filters, "filter", "f", nil, "filter for all photos, or one per photo")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default collage-<layout>-<ms>.jpg)")
	cmd.Flags().IntVarP(&opts.quality, "quality", "q", 0, "JPEG quality 1-100 (default export.quality)")
	return cmd
}

// frameFilters expands the --filter values to one filter per photo.
func frameFilters(values []string, n int) ([]filter.Filter, error) {
	if len(values) > 1 && len(values) != n {
		return nil, fmt.Errorf("got %d filters for %d photos", len(values), n)
	}
	out := make([]filter.Filter, n)
	for i := range out {
		v := ""
		switch len(values) {
		case 0:
		case 1:
			v = values[0]
		default:
			v = values[i]
		}
		f, err := filter.Lookup(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func runCompose(cmd *cobra.Command, opts *composeOptions, paths []string) (string, error) {
	layout, err := collage.Lookup(opts.layout)
	if err != nil {
		return "", err
	}
	filters, err := frameFilters(opts.filters, len(paths))
	if err != nil {
		return "", err
	}

	frames := make([]collage.Frame, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read photo: %w", err)
		}
		frames[i] = collage.Frame{ID: int64(i + 1), Still: data, Filter: filters[i]}
		debug.Verbose("Slot %d: %s (%s)", i, p, filters[i].Name)
	}

	img, err := collage.Compose(cmd.Context(), frames, layout)
	if err != nil {
		return "", err
	}
	data, err := export.Encode(img, opts.quality)
	if err != nil {
		return "", err
	}

	out := opts.out
	if out == "" {
		out = export.Filename(export.KindCollage, layout.Key, timeNow())
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", fmt.Errorf("write collage: %w", err)
	}
	debug.Info("Collage written to %s (%d bytes)", out, len(data))
	return out, nil
}
