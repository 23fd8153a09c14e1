package bf

import (
	"go/token"
	"io"
)

// TokenReader is a single-pass source of Brainfuck tokens. NextToken
// returns io.EOF once the source is exhausted.
type TokenReader interface {
	NextToken() (*Token, error)
}

// Lexer scans tokens in Brainfuck source. All bytes other than the
// eight instruction characters are comments and are skipped.
type Lexer struct {
	file   *token.File
	src    []byte
	offset int
}

// NewLexer constructs a Brainfuck lexer. The file is used to record
// line offsets and may be shared with a token.FileSet for position
// lookup.
func NewLexer(file *token.File, src []byte) *Lexer {
	return &Lexer{
		file:   file,
		src:    src,
		offset: 0,
	}
}

// NextToken scans a single Brainfuck token.
func (l *Lexer) NextToken() (*Token, error) {
	for l.offset < len(l.src) {
		c := l.src[l.offset]
		typ := TypeOf(c)
		if typ == Illegal {
			l.offset++
			if c == '\n' {
				l.file.AddLine(l.offset)
			}
			continue
		}
		tok := &Token{typ, l.file.Pos(l.offset)}
		l.offset++
		return tok, nil
	}
	return nil, io.EOF
}

// LexTokens scans a Brainfuck source file into tokens.
func LexTokens(file *token.File, src []byte) ([]*Token, error) {
	return readAll(NewLexer(file, src))
}

func readAll(r TokenReader) ([]*Token, error) {
	var tokens []*Token
	for {
		tok, err := r.NextToken()
		if err == io.EOF {
			return tokens, nil
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
}
