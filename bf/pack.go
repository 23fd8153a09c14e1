package bf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"go/token"
	"io"

	"github.com/icza/bitio"
)

// Packed sources start with the instruction count as a uvarint,
// followed by one 3-bit code per instruction, most significant bit
// first. The final byte is zero padded.
const codeBits = 3

// ErrPackedTruncated is returned when a packed source ends before the
// instruction count in its header is reached.
var ErrPackedTruncated = errors.New("unpack: packed source truncated")

// Pack bit packs a Brainfuck source. Comments are dropped.
func Pack(src []byte) ([]byte, error) {
	var n uint64
	for _, c := range src {
		if TypeOf(c) != Illegal {
			n++
		}
	}
	var buf bytes.Buffer
	buf.Write(binary.AppendUvarint(nil, n))
	w := bitio.NewWriter(&buf)
	for _, c := range src {
		if typ := TypeOf(c); typ != Illegal {
			if err := w.WriteBits(uint64(typ-IncPtr), codeBits); err != nil {
				return nil, err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BitLexer scans tokens in a bit packed Brainfuck source. Token
// positions refer to the byte containing the first bit of the code.
type BitLexer struct {
	file      *token.File
	br        *bitio.Reader
	header    bool
	headerLen int
	remaining uint64
	bits      int
}

// NewBitLexer constructs a lexer for packed source.
func NewBitLexer(file *token.File, packed []byte) *BitLexer {
	return &BitLexer{
		file: file,
		br:   bitio.NewReader(bytes.NewReader(packed)),
	}
}

// NextToken scans a single Brainfuck token.
func (l *BitLexer) NextToken() (*Token, error) {
	if !l.header {
		n, err := binary.ReadUvarint(l.br)
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, ErrPackedTruncated
		}
		l.header = true
		l.headerLen = len(binary.AppendUvarint(nil, n))
		l.remaining = n
	}
	if l.remaining == 0 {
		return nil, io.EOF
	}
	offset := l.headerLen + l.bits/8
	code, err := l.br.ReadBits(codeBits)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrPackedTruncated
		}
		return nil, err
	}
	l.bits += codeBits
	l.remaining--
	return &Token{IncPtr + Type(code), l.file.Pos(offset)}, nil
}

// LexPacked scans a packed Brainfuck source into tokens.
func LexPacked(file *token.File, packed []byte) ([]*Token, error) {
	return readAll(NewBitLexer(file, packed))
}
