package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/gallery"
	"github.com/nghiemng0310/nail/internal/helpers"
	"github.com/spf13/cobra"
)

const browseHelp = `enter    load more
f a,b    filter by categories
f        clear filter
l <id>   like
q        quit`

func browseCommand(client clientFunc, in io.Reader) *cobra.Command {
	var (
		categories []string
		pageSize   int
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Scroll through the gallery interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c := client()
			g := gallery.New(c, c, gallery.NotifierFunc(func(msg string) {
				fmt.Fprintf(out, "! %s\n", msg)
			}), pageSize)
			defer g.Dispose()

			b := &browser{g: g, out: out}
			ctx := cmd.Context()
			if len(categories) > 0 {
				_ = g.SetFilter(ctx, categories)
			} else {
				_ = g.Mount(ctx)
			}
			b.render()
			fmt.Fprintln(out, browseHelp)

			scanner := bufio.NewScanner(in)
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				if quit := b.handle(cmd, strings.TrimSpace(scanner.Text())); quit {
					return nil
				}
			}
		},
	}
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Start filtered to these categories")
	cmd.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, "Images per page")
	return cmd
}

// browser renders only what changed since the last command: new rows on
// load-more, the whole list after a filter change or like.
type browser struct {
	g     *gallery.Gallery
	out   io.Writer
	shown int
}

func (b *browser) handle(cmd *cobra.Command, line string) bool {
	ctx := cmd.Context()
	switch {
	case line == "q":
		return true
	case line == "":
		started, _ := b.g.SentinelVisible(ctx)
		if !started {
			fmt.Fprintln(b.out, "nothing more to load")
			return false
		}
		b.render()
	case line == "f":
		b.shown = 0
		_ = b.g.SetFilter(ctx, nil)
		b.render()
	case strings.HasPrefix(line, "f "):
		b.shown = 0
		_ = b.g.SetFilter(ctx, helpers.SplitAndTrim(strings.TrimPrefix(line, "f "), ","))
		b.render()
	case strings.HasPrefix(line, "l "):
		id := strings.TrimSpace(strings.TrimPrefix(line, "l "))
		if err := b.g.Like(ctx, id); err == nil {
			fmt.Fprintf(b.out, "liked %s\n", id)
		}
		b.shown = 0
		b.render()
	default:
		fmt.Fprintln(b.out, browseHelp)
	}
	return false
}

func (b *browser) render() {
	snap := b.g.Snapshot()
	if b.shown > len(snap.Records) {
		b.shown = 0
	}
	for _, rec := range snap.Records[b.shown:] {
		fmt.Fprintf(b.out, "  %s  %s  [%s]  %d likes\n", rec.ID, rec.Name, strings.Join(rec.Categories, ", "), rec.Likes)
	}
	b.shown = len(snap.Records)

	status := fmt.Sprintf("%d shown", len(snap.Records))
	if len(snap.Filter) > 0 {
		status += ", filter: " + strings.Join(snap.Filter, ", ")
	}
	switch snap.State {
	case gallery.StateIdle:
		status += ", more available"
	case gallery.StateExhausted:
		status += ", end of gallery"
	case gallery.StateEmpty:
		status += ", nothing here"
	}
	fmt.Fprintf(b.out, "-- %s --\n", status)
}
