// Package util splits command lines into arguments.
package util

import (
	"fmt"
	"strings"
)

// SplitArgs splits a command line on whitespace. Double-quoted sections are
// kept together with the quotes removed, so a timestamp like
// "2025-01-01 23:00:00" is one argument. An unterminated quote is an error.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuote && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			inQuote = !inQuote
			started = true
		case !inQuote && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteByte(c)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
