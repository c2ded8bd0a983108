package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/spf13/cobra"

	"github.com/termfx/treequery/db"
	"github.com/termfx/treequery/lang"
	"github.com/termfx/treequery/query"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <language> <query>",
		Short: "Print the resolved query file set in composition order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := query.NewResolver(searchLocator())
			files, err := resolver.Resolve(args[0], args[1])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(os.Stderr, "no query files for %s/%s\n", args[0], args[1])
				return nil
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}
}

func newCapturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "captures <language> <query>",
		Short: "Print the capture names of a compiled query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			compiler := query.NewCompiler(searchLocator())
			q, err := compiler.Get(args[0], args[1])
			if err != nil {
				return err
			}
			for id, name := range q.CaptureNames() {
				fmt.Printf("%3d  @%s\n", id, name)
			}
			return nil
		},
	}
}

func newHandlersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List registered predicates and directives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(bold("Predicates:"))
			for _, name := range query.ListPredicates() {
				fmt.Printf("  #%s\n", name)
			}
			fmt.Println(bold("Directives:"))
			for _, name := range query.ListDirectives() {
				fmt.Printf("  #%s\n", name)
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <language> <query> <file>...",
		Short: "Run a named query over source files and print accepted captures",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, queryName, files := args[0], args[1], args[2:]

			grammar, err := lang.Get(language)
			if err != nil {
				return err
			}
			compiler := query.NewCompiler(searchLocator())
			q, err := compiler.Get(language, queryName)
			if err != nil {
				return err
			}

			runLog, err := openRunLog()
			if err != nil {
				return err
			}
			if runLog != nil {
				defer runLog.Close()
			}

			parser := sitter.NewParser()
			parser.SetLanguage(grammar)

			for _, file := range files {
				if err := runFile(cmd.Context(), parser, q, runLog, language, queryName, file); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func runFile(ctx context.Context, parser *sitter.Parser, q *query.Query,
	runLog *db.RunLog, language, queryName, file string,
) error {
	source, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}
	defer tree.Close()

	start := time.Now()
	matches := 0
	captures := 0
	counts := make(map[string]int)

	it := q.Matches(tree.RootNode(), source)
	for m, ok := it.Next(); ok; m, ok = it.Next() {
		matches++
		for _, c := range m.Caps {
			captures++
			name := q.CaptureName(c.Index)
			counts[name]++
			printCapture(file, name, c, m.Metadata, source)
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	if runLog != nil {
		err := runLog.Record(language, queryName, file,
			int(q.PatternCount()), matches, captures, time.Since(start), counts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: run log: %v\n", err)
		}
	}
	return nil
}

func printCapture(file, name string, c query.Capture, md *query.Metadata, source []byte) {
	r := query.NodeRange(c.Node)
	if override, ok := md.Range(c.Index); ok {
		r = override
	}
	fmt.Printf("%s:%d:%d  %s  %s\n",
		file, r.StartRow+1, r.StartCol+1, green("@"+name), trimText(c.Node.Content(source)))

	if extra := md.Capture(c.Index); extra != nil {
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "range" {
				continue
			}
			fmt.Printf("    %s=%v\n", cyan(k), extra[k])
		}
	}
}

func trimText(s string) string {
	const max = 60
	if len(s) > max {
		return yellow(s[:max] + "…")
	}
	return s
}

func openRunLog() (*db.RunLog, error) {
	if flagDB == "" {
		return nil, nil
	}
	conn, err := db.Connect(flagDB, flagDebug)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	host, _ := os.Hostname()
	return db.NewRunLog(conn, map[string]any{
		"tool": "treequery",
		"host": host,
	})
}
