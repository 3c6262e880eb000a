package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mtkrol/loxvm/lang/scanner"
	"github.com/mtkrol/loxvm/lang/token"
)

// Tokenize implements the "tokenize" subcommand: print every token scanned
// from each file, one per line.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, paths []string) error {
	var failed bool
	for _, path := range paths {
		if err := tokenizeFile(stdio, path); err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", path, err)
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("tokenize: one or more files failed")
	}
	return nil
}

func tokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	sc := scanner.New(string(src))
	for {
		tok := sc.Scan()
		if tok.Type == token.ILLEGAL {
			return fmt.Errorf("line %d: %s", tok.Line, tok.Lexeme)
		}
		fmt.Fprintf(stdio.Stdout, "%4d %-14s %q\n", tok.Line, tok.Type, tok.Lexeme)
		if tok.Type == token.EOF {
			return nil
		}
	}
}
