package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

// runInteractive starts a read-parse-print loop over stdin using GNU
// readline-style line editing (history, arrow keys): a readline.Instance
// wrapped to yield trimmed, non-blank lines one at a time. The loop is
// purely a parser development aid; it holds no session state and
// executes nothing.
func runInteractive(width int) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "storm> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "^D",
	})
	if err != nil {
		return fmt.Errorf("create readline session: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), "enter a storm query, or \"tree:\"/\"cmdargs:\" prefixed input to switch parse mode")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		asTree := false
		asCmdArgs := false
		switch {
		case strings.HasPrefix(line, "tree:"):
			asTree = true
			line = strings.TrimPrefix(line, "tree:")
		case strings.HasPrefix(line, "cmdargs:"):
			asCmdArgs = true
			line = strings.TrimPrefix(line, "cmdargs:")
		}

		printParsed(os.Stdout, line, asTree, asCmdArgs, width)
	}
}
