package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/config"
	"github.com/cjeanneret/photobooth/internal/export"
	"github.com/cjeanneret/photobooth/internal/gallery"
)

var timeNow = time.Now

func newGalleryCmd(root *rootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Inspect the persisted gallery",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "gallery file (default gallery.path from config)")

	open := func() (gallery.Store, error) {
		cfg, err := root.load()
		if err != nil {
			return nil, err
		}
		return galleryAt(cfg, path)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List gallery entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tLAYOUT\tCREATED\tSIZE")
			for _, e := range entries {
				kind := "photo"
				if e.IsCollage {
					kind = "collage"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", e.ID, kind, e.Layout, e.CreatedAt, len(e.URL))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID...",
		Short: "Remove gallery entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				if err := store.Remove(id); err != nil {
					return err
				}
			}
			return nil
		},
	})

	var out string
	get := &cobra.Command{
		Use:   "get ID",
		Short: "Write a gallery entry to a JPEG file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := store.Get(id)
			if err != nil {
				return fmt.Errorf("entry %d: %w", id, err)
			}
			data, err := export.ParseDataURL(e.URL)
			if err != nil {
				return fmt.Errorf("entry %d: %w", id, err)
			}
			name := out
			if name == "" {
				name = export.Filename(export.KindGallery, "", timeNow())
			}
			if err := os.WriteFile(name, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
	get.Flags().StringVarP(&out, "out", "o", "", "output file (default photo-<ms>.jpg)")
	cmd.AddCommand(get)

	return cmd
}

// galleryAt opens the file store at override, or the configured one.
func galleryAt(cfg *config.Config, override string) (gallery.Store, error) {
	p := override
	if p == "" {
		p = cfg.Gallery.Path
	}
	if p == "" {
		return nil, fmt.Errorf("no gallery file: set gallery.path or --path")
	}
	return gallery.NewFileStore(p), nil
}
