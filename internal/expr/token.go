package expr

// TokenType identifies a lexical token.
type TokenType int

// Token types.
const (
	TokenEOF TokenType = iota
	TokenIllegal
	TokenNumber
	TokenIdent
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenPercent
	TokenPower
	TokenLParen
	TokenRParen
	TokenComma
)

var tokenNames = map[TokenType]string{
	TokenEOF:     "end of expression",
	TokenIllegal: "illegal",
	TokenNumber:  "number",
	TokenIdent:   "identifier",
	TokenPlus:    "+",
	TokenMinus:   "-",
	TokenStar:    "*",
	TokenSlash:   "/",
	TokenPercent: "%",
	TokenPower:   "**",
	TokenLParen:  "(",
	TokenRParen:  ")",
	TokenComma:   ",",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "unknown"
}

// Token is a lexeme with its position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}
