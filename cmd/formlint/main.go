// cmd/formlint validates a form definition file the way the server does on
// save, then prints its item tree and dependency table.
//
// Usage:
//
//	formlint -f intake.json [-tree] [-delete linkId]
//
// With -delete it also reports whether the item could be deleted and which
// rules would block it. The exit status is 1 when the definition is invalid
// or the delete is blocked.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/matthewbaird/caseforms/internal/authoring"
	"github.com/matthewbaird/caseforms/internal/depindex"
	"github.com/matthewbaird/caseforms/internal/expr"
	"github.com/matthewbaird/caseforms/internal/form"
	"github.com/matthewbaird/caseforms/internal/integrity"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("formlint: ")
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("formlint", flag.ContinueOnError)
	fs.SetOutput(out)
	file := fs.String("f", "", "definition file (.json, .yaml or .yml)")
	showTree := fs.Bool("tree", false, "print the item tree")
	deleteID := fs.String("delete", "", "check whether this linkId can be deleted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(out, "formlint: -f is required")
		fs.Usage()
		return 2
	}

	def, err := form.LoadFile(*file)
	if err != nil {
		printError(out, err)
		return 1
	}
	idx, err := authoring.Validate(def, expr.Builtins())
	if err != nil {
		printError(out, err)
		return 1
	}
	fmt.Fprintf(out, "%s: OK (%d items)\n", *file, len(idx.LinkIDs()))

	if *showTree {
		fmt.Fprintln(out)
		fmt.Fprint(out, def.Tree())
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, dependencyTable(idx))

	if *deleteID == "" {
		return 0
	}
	item := idx.Item(*deleteID)
	if item == nil {
		fmt.Fprintf(out, "\nno item with linkId %q\n", *deleteID)
		return 1
	}
	report := integrity.NewReport(integrity.CanDeleteTree(item, idx), idx)
	fmt.Fprintln(out)
	if report.Decision.Allowed {
		fmt.Fprintln(out, report.Summary())
		return 0
	}
	fmt.Fprintln(out, report.String())
	return 1
}

func printError(out io.Writer, err error) {
	var verr *form.ValidationError
	if !errors.As(err, &verr) {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "invalid definition: %d problem(s)\n", len(verr.Problems))
	for _, p := range verr.Problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
}

// dependencyTable lists every item that other rules read, with the items
// that read it per dependency kind.
func dependencyTable(idx *depindex.Index) string {
	tw := table.NewWriter()
	tw.SetTitle("Dependencies")
	header := table.Row{"Item"}
	for _, k := range depindex.Kinds {
		header = append(header, k.String())
	}
	tw.AppendHeader(header)
	for _, id := range idx.LinkIDs() {
		deps := idx.Dependents(id)
		if deps.Empty() {
			continue
		}
		row := table.Row{id}
		for _, k := range depindex.Kinds {
			var ids []string
			for _, it := range deps.Of(k) {
				ids = append(ids, it.LinkID)
			}
			row = append(row, strings.Join(ids, ", "))
		}
		tw.AppendRow(row)
	}
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}
