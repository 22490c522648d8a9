package database

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// SplitStatements reads an SQL script and returns its statements. A statement ends on the line
// containing a semicolon. Lines starting with "--" are skipped.
func SplitStatements(r io.Reader) ([]string, error) {
	var statements []string
	scanner := bufio.NewScanner(r)
	builder := strings.Builder{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSpace(builder.String()))
			builder.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements, nil
}

// ExecScript executes every statement of the script in order and stops at the first failure.
func (p *Pool) ExecScript(ctx context.Context, r io.Reader) error {
	statements, err := SplitStatements(r)
	if err != nil {
		return err
	}
	for i, statement := range statements {
		res := p.Exec(ctx, statement)
		if res.Kind == KindDriverError {
			return fmt.Errorf("statement %d: %w", i+1, res.Err)
		}
		p.log.Info().Int("statement", i+1).Int64("affected_rows", res.Value.AffectedRows).Msg("statement executed")
	}
	return nil
}
