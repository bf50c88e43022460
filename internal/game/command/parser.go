package command

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseResult holds the parsed command word and arguments of one console line.
type ParseResult struct {
	// Command is the first word, lowercased.
	Command string
	// Args are the remaining whitespace-separated words with their case preserved.
	Args []string
}

// Parse splits a line into a command and arguments.
//
// Postcondition: Command is empty iff line is blank.
func Parse(line string) ParseResult {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ParseResult{}
	}
	res := ParseResult{Command: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		res.Args = fields[1:]
	}
	return res
}

// Arg returns the i-th argument, or "" when absent.
func (p ParseResult) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// Int64 parses the i-th argument as a base-10 integer.
func (p ParseResult) Int64(i int) (int64, error) {
	v, err := strconv.ParseInt(p.Arg(i), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", p.Arg(i))
	}
	return v, nil
}

// Float64 parses the i-th argument as a decimal number.
func (p ParseResult) Float64(i int) (float64, error) {
	v, err := strconv.ParseFloat(p.Arg(i), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", p.Arg(i))
	}
	return v, nil
}
