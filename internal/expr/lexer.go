package expr

// Lexer tokenizes a computed-parameter expression.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// Tokens lexes the whole input. The final token is always TokenEOF.
func (l *Lexer) Tokens() ([]Token, error) {
	var out []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Type == TokenEOF {
			return out, nil
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()
	pos := Position{Column: l.pos + 1}

	single := map[byte]TokenType{
		'+': TokenPlus,
		'-': TokenMinus,
		'/': TokenSlash,
		'%': TokenPercent,
		'(': TokenLParen,
		')': TokenRParen,
		',': TokenComma,
	}

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: pos}, nil
	case l.ch == '*':
		if l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			return Token{Type: TokenPower, Literal: "**", Pos: pos}, nil
		}
		l.readChar()
		return Token{Type: TokenStar, Literal: "*", Pos: pos}, nil
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		lit, err := l.readNumber()
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokenNumber, Literal: lit, Pos: pos}, nil
	case isLetter(l.ch):
		return Token{Type: TokenIdent, Literal: l.readIdentifier(), Pos: pos}, nil
	}

	if tt, ok := single[l.ch]; ok {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: tt, Literal: lit, Pos: pos}, nil
	}
	return Token{}, NewLexError(pos, "unexpected character "+quoteByte(l.ch))
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() (string, error) {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			return "", NewLexError(Position{Column: l.pos + 1}, "malformed exponent")
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isLetter(l.ch) {
		return "", NewLexError(Position{Column: l.pos + 1}, "identifier cannot start with a digit")
	}
	return l.input[start:l.pos], nil
}

func isLetter(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func quoteByte(ch byte) string {
	return "'" + string(rune(ch)) + "'"
}
