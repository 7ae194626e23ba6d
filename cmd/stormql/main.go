/*
Stormql parses Storm queries and prints their abstract syntax tree.

It reads a single query from the command line or from stdin, or reads
queries interactively, parses it, and prints either the resulting AST,
the raw concrete parse tree, or a formatted syntax error.

Usage:

	stormql [flags] [query]

The flags are:

	-t, --tree
		Print the concrete parse tree (with the trivia between
		statements retained) instead of the lowered AST.

	-c, --cmdargs
		Parse the input as a stormcmdargs argument string instead of a
		full query.

	-w, --width N
		Wrap the printed AST to N columns. Defaults to 100. Syntax
		errors are always wrapped to 100 columns, and the --tree and
		--cmdargs output is not wrapped.

	-i, --interactive
		Start an interactive read-parse-print loop instead of parsing a
		single query.

If no query is given on the command line and --interactive is not set,
stormql reads the query text from stdin.
*/
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kestrelq/stormql/internal/storm"
	"github.com/spf13/pflag"
)

const (
	// ExitSuccess indicates a successful program execution.
	ExitSuccess = iota

	// ExitSyntaxError indicates the input failed to parse.
	ExitSyntaxError

	// ExitInitError indicates an unsuccessful program execution due to an
	// issue reading input or flags.
	ExitInitError
)

var (
	returnCode      int     = ExitSuccess
	flagTree        *bool   = pflag.BoolP("tree", "t", false, "Print the concrete parse tree instead of the lowered AST")
	flagCmdArgs     *bool   = pflag.BoolP("cmdargs", "c", false, "Parse the input as a stormcmdargs argument string")
	flagWidth       *int    = pflag.IntP("width", "w", 100, "Wrap the printed AST to this many columns")
	flagInteractive *bool   = pflag.BoolP("interactive", "i", false, "Start an interactive read-parse-print loop")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occurred: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagInteractive {
		if err := runInteractive(*flagWidth); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
			returnCode = ExitInitError
		}
		return
	}

	text, err := readQueryText(pflag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}

	if !printParsed(os.Stdout, text, *flagTree, *flagCmdArgs, *flagWidth) {
		returnCode = ExitSyntaxError
	}
}

// readQueryText returns the query text to parse: the joined positional
// arguments if any were given, or the entirety of stdin otherwise.
func readQueryText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// printParsed parses text per the given mode and writes either the
// resulting tree/AST or a formatted BadSyntax diagnostic to w, returning
// false on a syntax error.
func printParsed(w io.Writer, text string, asTree, asCmdArgs bool, width int) bool {
	if asCmdArgs {
		args, err := storm.ParseStormCmdArgs(text)
		if err != nil {
			printSyntaxError(w, err, width)
			return false
		}
		for _, a := range args {
			fmt.Fprintf(w, "%v\n", a)
		}
		return true
	}

	if asTree {
		tree, err := storm.ParseQueryTree(text)
		if err != nil {
			printSyntaxError(w, err, width)
			return false
		}
		fmt.Fprintln(w, tree.String())
		return true
	}

	node, err := storm.ParseQuery(text)
	if err != nil {
		printSyntaxError(w, err, width)
		return false
	}
	fmt.Fprintln(w, node.Dump(width))
	return true
}

func printSyntaxError(w io.Writer, err error, width int) {
	if bs, ok := err.(storm.BadSyntax); ok {
		fmt.Fprintln(w, bs.FullMessage())
		return
	}
	fmt.Fprintln(w, err.Error())
}
