package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/OCAP2/timeslider/internal/dispatcher"
	"github.com/OCAP2/timeslider/internal/util"
)

// runREPL executes one command per input line until EOF, "quit" or ctx is
// cancelled. Failed commands are reported and do not stop the loop.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, d *dispatcher.Dispatcher) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if quit := execLine(out, d, line); quit {
				return nil
			}
		}
	}
}

// execLine runs one command line and reports whether the session should end.
func execLine(out io.Writer, d *dispatcher.Dispatcher, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}

	fields, err := util.SplitArgs(line)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return false
	}
	if len(fields) == 0 {
		return false
	}

	cmd := strings.ToLower(fields[0])
	if cmd == "quit" || cmd == "exit" {
		return true
	}

	result, err := d.Dispatch(dispatcher.Event{Command: cmd, Args: fields[1:]})
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return false
	}
	printResult(out, result)
	return false
}

func printResult(out io.Writer, result any) {
	switch v := result.(type) {
	case nil:
	case string:
		fmt.Fprintln(out, strings.TrimRight(v, "\n"))
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(out, "%v\n", v)
			return
		}
		fmt.Fprintln(out, string(b))
	}
}
