package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/jrsteele09/school-portal/portal"
	"github.com/spf13/cobra"
)

func (c *cli) achievementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "Manage school achievements",
	}
	cmd.AddCommand(c.achievementsListCmd(), c.achievementsAddCmd(), c.achievementsDeleteCmd())
	return cmd
}

func (c *cli) achievementsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List achievements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}
			achievements, err := a.service.ListAchievements(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tDATE\tIMAGE")
			for _, ach := range achievements {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ach.Title, ach.Date, ach.ImageURL)
			}
			return w.Flush()
		},
	}
}

func (c *cli) achievementsAddCmd() *cobra.Command {
	var (
		achievement portal.Achievement
		imagePath   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an achievement with an optional image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}

			var image *portal.Image
			if imagePath != "" {
				if image, err = readImage(imagePath); err != nil {
					return err
				}
			}

			if err := a.service.AddAchievement(cmd.Context(), achievement, image); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added achievement %q\n", achievement.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&achievement.Title, "title", "", "Achievement title")
	cmd.Flags().StringVar(&achievement.Description, "description", "", "Achievement description")
	cmd.Flags().StringVar(&achievement.Date, "date", "", "Achievement date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path of an image to upload")
	return cmd
}

func (c *cli) achievementsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <title>",
		Short: "Delete an achievement by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.App(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.service.DeleteAchievement(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted achievement %q\n", args[0])
			return nil
		},
	}
}

func readImage(path string) (*portal.Image, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	return &portal.Image{
		FileName:    filepath.Base(path),
		ContentType: contentType,
		Content:     content,
	}, nil
}
