package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finitefield.org/sheetboard/internal/config"
	"finitefield.org/sheetboard/internal/feed"
	"finitefield.org/sheetboard/internal/format"
	"finitefield.org/sheetboard/internal/sheet"
)

// source selects where a sheet is read from.
type source struct {
	file    string
	url     string
	timeout time.Duration
}

func (s *source) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.file, "file", "", "read the sheet from a CSV file (- for stdin)")
	cmd.Flags().StringVar(&s.url, "url", "", "fetch the sheet from a published CSV URL")
	cmd.Flags().DurationVar(&s.timeout, "timeout", 15*time.Second, "fetch timeout for --url")
	cmd.MarkFlagsMutuallyExclusive("file", "url")
	cmd.MarkFlagsOneRequired("file", "url")
}

func (s *source) fetcher(in io.Reader) feed.Fetcher {
	if s.url != "" {
		return feed.NewHTTPFetcher(s.timeout)
	}
	return feed.FetcherFunc(func(context.Context, string) (string, error) {
		var data []byte
		var err error
		if s.file == "-" {
			data, err = io.ReadAll(in)
		} else {
			data, err = os.ReadFile(s.file)
		}
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}

// feedOptions describe the feed a sheet is interpreted as.
type feedOptions struct {
	source
	kind    string
	today   string
	archive bool
	json    bool
	verbose bool
}

func (o *feedOptions) bind(cmd *cobra.Command) {
	o.source.bind(cmd)
	cmd.Flags().StringVar(&o.kind, "kind", string(feed.KindNotice), "feed kind: notice or material")
	cmd.Flags().StringVar(&o.today, "today", "", "evaluate dates as of DD/MM/YYYY instead of today")
	cmd.Flags().BoolVar(&o.archive, "archive", false, "include scheduled and expired records")
	cmd.Flags().BoolVar(&o.json, "json", false, "print JSON")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "log fetch details to stderr")
}

func (o *feedOptions) load(cmd *cobra.Command) (feed.Snapshot, error) {
	layout, policy, ok := feed.ForKind(feed.Kind(o.kind))
	if !ok {
		return feed.Snapshot{}, fmt.Errorf("unknown kind %q", o.kind)
	}
	opts := []feed.Option{feed.WithLocation(time.Local)}
	if o.today != "" {
		day, ok := feed.ParseDay(o.today)
		if !ok {
			return feed.Snapshot{}, fmt.Errorf("invalid --today %q, want DD/MM/YYYY", o.today)
		}
		opts = append(opts, feed.WithClock(func() time.Time { return day.Time(time.Local) }))
	}
	if o.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return feed.Snapshot{}, err
		}
		opts = append(opts, feed.WithLogger(logger))
	}
	svc := feed.NewService(o.fetcher(cmd.InOrStdin()), opts...)
	def := feed.Definition{
		Name:    "cli",
		Kind:    feed.Kind(o.kind),
		URL:     o.url,
		Layout:  layout,
		Policy:  policy,
		Archive: o.archive,
	}
	return svc.Load(cmd.Context(), def)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "feedcat",
		Short:         "Inspect published notice and material sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRecordsCmd(), newLatestCmd(), newCSVCmd(), newFeedsCmd())
	return root
}

func newRecordsCmd() *cobra.Command {
	var o feedOptions
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List the records a feed shows, in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := o.load(cmd)
			if err != nil {
				return err
			}
			records := snap.List()
			if o.json {
				return writeJSON(cmd.OutOrStdout(), recordsJSON(snap, records))
			}
			return writeTable(cmd.OutOrStdout(), snap, records)
		},
	}
	o.bind(cmd)
	return cmd
}

func newLatestCmd() *cobra.Command {
	var o feedOptions
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the featured record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := o.load(cmd)
			if err != nil {
				return err
			}
			rec, ok := snap.Featured()
			if !ok {
				if o.json {
					return writeJSON(cmd.OutOrStdout(), nil)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no current record")
				return err
			}
			if o.json {
				return writeJSON(cmd.OutOrStdout(), recordsJSON(snap, []feed.Record{rec})[0])
			}
			return writeTable(cmd.OutOrStdout(), snap, []feed.Record{rec})
		},
	}
	o.bind(cmd)
	return cmd
}

func newCSVCmd() *cobra.Command {
	var (
		src       source
		dropBlank bool
	)
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Re-encode a sheet as normalised CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := src.fetcher(cmd.InOrStdin()).Fetch(cmd.Context(), src.url)
			if err != nil {
				return err
			}
			rows := sheet.Parse(text)
			if dropBlank {
				rows = sheet.DropBlank(rows)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), sheet.Encode(rows)+"\n")
			return err
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&dropBlank, "drop-blank", false, "remove rows whose cells are all blank")
	return cmd
}

func newFeedsCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Validate a feeds file and list its feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := config.LoadFeeds(path)
			if err != nil {
				return err
			}
			defs, err := file.Definitions()
			if err != nil {
				var verr *config.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("invalid feeds file: %s", strings.Join(verr.Fields(), ", "))
				}
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tGATE\tTITLE\tURL")
			for _, d := range defs {
				gate := "-"
				if d.Gate != nil {
					gate = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.Kind, gate, d.Title, d.URL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "config", "feeds.yaml", "feeds file")
	return cmd
}

type recordView struct {
	Row        int      `json:"row"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	Pinned     bool     `json:"pinned"`
	Publish    string   `json:"publish,omitempty"`
	Expire     string   `json:"expire,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Media      string   `json:"media,omitempty"`
	Progress   *int     `json:"progress,omitempty"`
	Download   string   `json:"download,omitempty"`
}

func recordsJSON(snap feed.Snapshot, records []feed.Record) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		v := recordView{
			Row:        r.RowIndex,
			Title:      r.Title,
			Status:     snap.Status(r).String(),
			Pinned:     r.Pinned,
			Publish:    r.PublishDate.String(),
			Expire:     r.ExpireDate.String(),
			Categories: r.Categories,
			Media:      r.Media,
			Download:   r.DownloadLink,
		}
		if r.HasProgress {
			p := format.Percent(r.Progress)
			v.Progress = &p
		}
		out = append(out, v)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, snap feed.Snapshot, records []feed.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tSTATUS\tPIN\tPUBLISH\tEXPIRE\tTITLE")
	for _, r := range records {
		pin := ""
		if r.Pinned {
			pin = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.RowIndex, snap.Status(r), pin, dash(r.PublishDate.String()), dash(r.ExpireDate.String()), r.Title)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
