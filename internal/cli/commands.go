package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/gallery"
	"github.com/spf13/cobra"
)

type clientFunc func() *gallery.Client

func listCommand(client clientFunc) *cobra.Command {
	var (
		all        bool
		categories []string
		pageSize   int
		cursor     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of images, or the whole catalog with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if all {
				records, err := client().ListAll(cmd.Context())
				if err != nil {
					return err
				}
				printRecords(out, records)
				fmt.Fprintf(out, "%d images\n", len(records))
				return nil
			}

			page, err := client().ListPage(cmd.Context(), domain.PageQuery{
				PageSize:   pageSize,
				Cursor:     cursor,
				Categories: categories,
			})
			if err != nil {
				return err
			}
			printRecords(out, page.Records)
			if page.HasMore {
				fmt.Fprintf(out, "next cursor: %s\n", page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every image, newest first")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Only images in any of these categories")
	cmd.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "Images per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue after this cursor")
	return cmd
}

func getCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := client().GetImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), []*domain.ImageRecord{rec})
			fmt.Fprintln(cmd.OutOrStdout(), rec.ImageURL)
			return nil
		},
	}
}

func createCommand(client clientFunc) *cobra.Command {
	var (
		name       string
		categories []string
		file       string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Upload a new design",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			rec, err := client().CreateImage(cmd.Context(), domain.CreateImageInput{
				Name:       name,
				Categories: categories,
				Filename:   filepath.Base(file),
				File:       f,
			}, progressPrinter(cmd.ErrOrStderr()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Design name")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Categories, repeat or comma separate")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Image file to upload")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func updateCommand(client clientFunc) *cobra.Command {
	var (
		name       string
		categories []string
		file       string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the name and categories of a design, and optionally its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.UpdateImageInput{Name: name, Categories: categories}
			var progress domain.ProgressListener
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in.File = f
				in.Filename = filepath.Base(file)
				progress = progressPrinter(cmd.ErrOrStderr())
			}

			rec, err := client().UpdateImage(cmd.Context(), args[0], in, progress)
			if progress != nil {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Design name")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Categories, repeat or comma separate")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Replacement image file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func deleteCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a design and its stored image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().DeleteImage(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func likeCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Add one like to a design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().LikeImage(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "liked %s\n", args[0])
			return nil
		},
	}
}

func categoriesCommand(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print the category vocabulary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := client().Categories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

func progressPrinter(w io.Writer) domain.ProgressListener {
	return domain.ProgressFunc(func(percent float64) {
		fmt.Fprintf(w, "\ruploading %3.0f%%", percent)
	})
}

func printRecords(w io.Writer, records []*domain.ImageRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", rec.ID, rec.Name, strings.Join(rec.Categories, ", "), rec.Likes)
	}
	tw.Flush()
}
