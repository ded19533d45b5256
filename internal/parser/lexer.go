package parser

import (
	"bufio"
	"io"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	// tokHeader is a line ending in "{" outside a block
	tokHeader
	// tokDirective is any other non-empty line outside a block
	tokDirective
	// tokAttribute is a key<TAB>value line inside a block
	tokAttribute
	// tokRaw is an unsplit body line inside a block
	tokRaw
	// tokClose is a lone "}" inside a block
	tokClose
)

type token struct {
	kind  tokenKind
	text  string
	key   string
	value string
	line  int
}

// bodyMode selects how lines inside a block are tokenized
type bodyMode int

const (
	bodyAttributes bodyMode = iota
	bodyRaw
)

type lexState int

const (
	stateLineStart lexState = iota
	stateComment
	stateHeader
	stateKey
	stateValue
	stateRaw
)

// lexer is a byte level state machine over a line oriented stream. It
// tracks whether it is inside a block itself, so comment and blank lines
// are only special outside of blocks.
type lexer struct {
	r       *bufio.Reader
	mode    bodyMode
	inBlock bool
	line    int
	done    bool

	key strings.Builder
	val strings.Builder
}

func newLexer(r io.Reader, mode bodyMode) *lexer {
	return &lexer{
		r:    bufio.NewReader(r),
		mode: mode,
	}
}

// Line returns the number of the last line the lexer started reading
func (l *lexer) Line() int {
	return l.line
}

// InBlock reports whether the lexer is between a header and its close
func (l *lexer) InBlock() bool {
	return l.inBlock
}

func (l *lexer) readChar() (byte, bool, error) {
	if l.done {
		return 0, false, nil
	}
	ch, err := l.r.ReadByte()
	if err == io.EOF {
		l.done = true
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return ch, true, nil
}

// NextToken returns the next token; tokEOF once the input is exhausted
func (l *lexer) NextToken() (token, error) {
	for {
		l.key.Reset()
		l.val.Reset()
		state := stateLineStart
		begun := false

		for {
			ch, ok, err := l.readChar()
			if err != nil {
				return token{}, err
			}
			if !ok {
				if !begun || state == stateComment {
					return token{kind: tokEOF, line: l.line}, nil
				}
				if state == stateLineStart {
					if tok, emit := l.blankLine(); emit {
						return tok, nil
					}
					return token{kind: tokEOF, line: l.line}, nil
				}
				return l.emit(state), nil
			}

			if !begun {
				l.line++
				begun = true
			}

			if state == stateLineStart {
				switch {
				case ch == ' ' || ch == '\t' || ch == '\r':
					continue
				case ch == '\n':
					if tok, emit := l.blankLine(); emit {
						return tok, nil
					}
					begun = false
					continue
				case ch == '#' && !l.inBlock:
					state = stateComment
					continue
				case !l.inBlock:
					state = stateHeader
				case l.mode == bodyRaw:
					state = stateRaw
				default:
					state = stateKey
				}
				l.key.WriteByte(ch)
				continue
			}

			switch state {
			case stateComment:
				if ch == '\n' {
					state = stateLineStart
					begun = false
				}
			case stateHeader, stateRaw:
				if ch == '\n' {
					return l.emit(state), nil
				}
				l.key.WriteByte(ch)
			case stateKey:
				switch ch {
				case '\n':
					return l.emit(state), nil
				case '\t':
					state = stateValue
				default:
					l.key.WriteByte(ch)
				}
			case stateValue:
				if ch == '\n' {
					return l.emit(state), nil
				}
				l.val.WriteByte(ch)
			}
		}
	}
}

// blankLine handles an empty line. Inside a block it is an ordinary body
// line; outside it is skipped.
func (l *lexer) blankLine() (token, bool) {
	if !l.inBlock {
		return token{}, false
	}
	if l.mode == bodyRaw {
		return token{kind: tokRaw, line: l.line}, true
	}
	return token{kind: tokAttribute, line: l.line}, true
}

func (l *lexer) emit(state lexState) token {
	text := strings.TrimSpace(l.key.String())

	switch state {
	case stateHeader:
		if strings.HasSuffix(text, "{") {
			l.inBlock = true
			return token{kind: tokHeader, text: strings.TrimSpace(strings.TrimSuffix(text, "{")), line: l.line}
		}
		return token{kind: tokDirective, text: text, line: l.line}
	case stateRaw:
		if text == "}" {
			l.inBlock = false
			return token{kind: tokClose, line: l.line}
		}
		return token{kind: tokRaw, text: text, line: l.line}
	default:
		if text == "}" {
			l.inBlock = false
			return token{kind: tokClose, line: l.line}
		}
		return token{
			kind:  tokAttribute,
			key:   text,
			value: strings.TrimSpace(l.val.String()),
			line:  l.line,
		}
	}
}
