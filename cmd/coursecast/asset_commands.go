package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coursecast/internal/catalog"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Register and list lecture videos",
	}

	assetCmd.AddCommand(newAssetAddCommand(ctx))
	assetCmd.AddCommand(newAssetAddExternalCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))

	return assetCmd
}

func newAssetAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register an uploaded video file",
		Long: "Register an uploaded video file. Relative paths are resolved against\n" +
			"paths.source_dir and stored relative to it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				stored, absPath := resolveUploadPath(s.cfg.Paths.SourceDir, args[0])
				info, err := os.Stat(absPath)
				if err != nil {
					return fmt.Errorf("stat source file: %w", err)
				}
				if info.IsDir() {
					return fmt.Errorf("source path %q is a directory", absPath)
				}

				asset, err := s.assets.Insert(cmd.Context(), catalog.NewAsset{
					Title:      title,
					Kind:       catalog.KindFile,
					SourcePath: stored,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Registered video asset %d (%s)\n", asset.ID, asset.Title)
				if !catalog.IsVideoExtension(asset.SourceExtension) {
					fmt.Fprintf(out, "Warning: extension %q is not converted to HLS (allowed: %s)\n",
						asset.SourceExtension, strings.Join(catalog.VideoExtensions(), ", "))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Display title (defaults to the file name)")
	return cmd
}

func newAssetAddExternalCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add-external <url>",
		Short: "Register an externally hosted video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.TrimSpace(args[0])
			parsed, err := url.Parse(raw)
			if err != nil || parsed.Scheme == "" || parsed.Host == "" {
				return fmt.Errorf("invalid video url %q", raw)
			}
			return ctx.withSession(func(s *session) error {
				asset, err := s.assets.Insert(cmd.Context(), catalog.NewAsset{
					Title:       title,
					Kind:        catalog.KindExternal,
					ExternalURL: raw,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered external video asset %d (%s)\n", asset.ID, asset.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Display title (defaults to the url)")
	return cmd
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered videos and their HLS state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				assets, err := s.assets.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(out, "No video assets registered.")
					return nil
				}
				rows := make([][]string, 0, len(assets))
				for _, asset := range assets {
					source := asset.SourcePath
					if asset.Kind == catalog.KindExternal {
						source = asset.ExternalURL
					}
					rows = append(rows, []string{
						strconv.FormatInt(asset.ID, 10),
						asset.Title,
						string(asset.Kind),
						source,
						humanize(asset.HLSStatus.Label()),
						yesNo(asset.HasHLS()),
					})
				}
				fmt.Fprintln(out, renderTable("", []string{"ID", "Title", "Type", "Source", "HLS status", "Has HLS"}, rows,
					[]columnAlignment{alignRight}))
				return nil
			})
		},
	}
}

// resolveUploadPath returns the path to store and the absolute path on disk.
// Files inside sourceDir are stored relative to it.
func resolveUploadPath(sourceDir, arg string) (string, string) {
	arg = strings.TrimSpace(arg)
	if !filepath.IsAbs(arg) {
		return filepath.ToSlash(filepath.Clean(arg)), filepath.Join(sourceDir, arg)
	}
	abs := filepath.Clean(arg)
	if rel, err := filepath.Rel(sourceDir, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel), abs
	}
	return abs, abs
}
