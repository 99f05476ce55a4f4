package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/dustin/go-humanize"

	"github.com/entrhq/recordbook/pkg/app"
	"github.com/entrhq/recordbook/pkg/export"
	"github.com/entrhq/recordbook/pkg/records"
)

// command runs one subcommand. Record numbers on the command line are
// 1-based.
type command func(ctx context.Context, svc *app.Service, args []string, out io.Writer) error

var commands = map[string]command{
	"list":    listCommand,
	"show":    showCommand,
	"add":     addCommand,
	"delete":  deleteCommand,
	"export":  exportCommand,
	"dump":    dumpCommand,
	"version": versionCommand,
}

func dispatch(ctx context.Context, svc *app.Service, args []string, out io.Writer) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(ctx, svc, args[1:], out)
}

// recordArg resolves a 1-based record number.
func recordArg(svc *app.Service, args []string) (int, records.Record, error) {
	if len(args) == 0 {
		return 0, records.Record{}, fmt.Errorf("record number required")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, records.Record{}, fmt.Errorf("invalid record number %q", args[0])
	}
	if n < 1 || n > svc.Len() {
		return 0, records.Record{}, fmt.Errorf("no record %d (have %d)", n, svc.Len())
	}
	rec, ok := svc.Record(n - 1)
	if !ok {
		return 0, records.Record{}, fmt.Errorf("no record %d", n)
	}
	return n - 1, rec, nil
}

func listCommand(_ context.Context, svc *app.Service, _ []string, out io.Writer) error {
	summaries := svc.List()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no records")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%3d. %s (%d)\n", s.Index+1, s.Title, s.ImageCount)
	}
	return nil
}

func showCommand(_ context.Context, svc *app.Service, args []string, out io.Writer) error {
	_, rec, err := recordArg(svc, args)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Title:   %s\n", rec.Title)
	fmt.Fprintf(out, "ID:      %s\n", rec.ID)
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created: %s (%s)\n", rec.CreatedAt.Format(time.RFC3339), humanize.Time(rec.CreatedAt))
	}
	fmt.Fprintf(out, "Images:  %d\n", len(rec.Images))
	for i, img := range rec.Images {
		fmt.Fprintf(out, "  %2d. %-14s %s\n", i+1, img.MediaType(), humanize.Bytes(uint64(img.Size())))
	}
	return nil
}

func addCommand(ctx context.Context, svc *app.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "Record title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("add: at least one image path required")
	}

	kept, err := svc.AddPaths(ctx, fs.Args())
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	index, err := svc.Save(ctx, *title)
	if err != nil {
		svc.ClearPending()
		return fmt.Errorf("add: %w", err)
	}
	fmt.Fprintf(out, "saved record %d with %d image(s)\n", index+1, kept)
	return nil
}

func deleteCommand(ctx context.Context, svc *app.Service, args []string, out io.Writer) error {
	index, rec, err := recordArg(svc, args)
	if err != nil {
		return err
	}
	if err := svc.Delete(ctx, index); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted record %d (%s)\n", index+1, rec.Title)
	return nil
}

func exportCommand(_ context.Context, svc *app.Service, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("export: usage: export <n> <out.pdf|dir>")
	}
	_, rec, err := recordArg(svc, args)
	if err != nil {
		return err
	}

	target := args[1]
	if strings.EqualFold(filepath.Ext(target), ".pdf") {
		if err := export.PDFFile(target, rec); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", target)
		return nil
	}

	paths, err := export.Files(target, rec)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	return nil
}

func dumpCommand(ctx context.Context, svc *app.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	plain := fs.Bool("plain", false, "Disable syntax highlighting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := svc.Document(ctx)
	if err != nil {
		return err
	}
	if doc == nil {
		fmt.Fprintln(out, "null")
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		// not JSON; show it as stored
		pretty.Reset()
		pretty.Write(doc)
	}
	pretty.WriteByte('\n')

	if *plain {
		_, err := out.Write(pretty.Bytes())
		return err
	}
	return highlightJSON(out, pretty.String())
}

func highlightJSON(w io.Writer, source string) error {
	lexer := chroma.Coalesce(lexers.Get("json"))
	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		_, werr := io.WriteString(w, source)
		return werr
	}
	return formatter.Format(w, style, iterator)
}

func versionCommand(_ context.Context, _ *app.Service, _ []string, out io.Writer) error {
	fmt.Fprintf(out, "recordbook v%s\n", version)
	return nil
}
