package expr

import "strconv"

// Operator precedence, lowest to highest. Unary signs bind looser than ** so that
// -x**2 parses as -(x**2).
const (
	precNone = iota
	precAdditive
	precMultiplicative
	precUnary
	precPower
)

var infixPrecedence = map[TokenType]int{
	TokenPlus:    precAdditive,
	TokenMinus:   precAdditive,
	TokenStar:    precMultiplicative,
	TokenSlash:   precMultiplicative,
	TokenPercent: precMultiplicative,
	TokenPower:   precPower,
}

// Parser builds an AST from tokens using precedence climbing.
type Parser struct {
	tokens []Token
	pos    int
	token  Token
}

// Parse lexes and parses a complete expression.
func Parse(input string) (Node, error) {
	tokens, err := NewLexer(input).Tokens()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	p.token = tokens[0]

	node, err := p.parseExpression(precNone + 1)
	if err != nil {
		return nil, err
	}
	if p.token.Type != TokenEOF {
		return nil, NewParseErrorf(p.token.Pos, "unexpected %s", describe(p.token))
	}
	return node, nil
}

func (p *Parser) nextToken() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.token = p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) parseExpression(minPrec int) (Node, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := infixPrecedence[p.token.Type]
		if !ok || prec < minPrec {
			return left, nil
		}
		op := p.token
		p.nextToken()

		// ** is right-associative, everything else left-associative.
		next := prec + 1
		if op.Type == TokenPower {
			next = precUnary
		}
		right, err := p.parseExpression(next)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{At: op.Pos, Op: op.Type, Left: left, Right: right}
	}
}

func (p *Parser) parsePrefix() (Node, error) {
	switch p.token.Type {
	case TokenMinus, TokenPlus:
		op := p.token
		p.nextToken()
		operand, err := p.parseExpression(precUnary)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{At: op.Pos, Op: op.Type, Operand: operand}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.token
	switch tok.Type {
	case TokenNumber:
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, NewParseErrorf(tok.Pos, "invalid number %q", tok.Literal)
		}
		p.nextToken()
		return &NumberLit{At: tok.Pos, Value: v}, nil

	case TokenIdent:
		if p.peek().Type == TokenLParen {
			return p.parseCall()
		}
		p.nextToken()
		return &Ident{At: tok.Pos, Name: tok.Literal}, nil

	case TokenLParen:
		p.nextToken()
		inner, err := p.parseExpression(precNone + 1)
		if err != nil {
			return nil, err
		}
		if p.token.Type != TokenRParen {
			return nil, NewParseErrorf(p.token.Pos, "expected ), got %s", describe(p.token))
		}
		p.nextToken()
		return inner, nil
	}
	return nil, NewParseErrorf(tok.Pos, "unexpected %s", describe(tok))
}

func (p *Parser) parseCall() (Node, error) {
	name := p.token
	p.nextToken() // name
	p.nextToken() // (
	call := &CallExpr{At: name.Pos, Name: name.Literal}
	if p.token.Type == TokenRParen {
		p.nextToken()
		return call, nil
	}
	for {
		arg, err := p.parseExpression(precNone + 1)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		switch p.token.Type {
		case TokenComma:
			p.nextToken()
		case TokenRParen:
			p.nextToken()
			return call, nil
		default:
			return nil, NewParseErrorf(p.token.Pos, "expected , or ) in call to %s, got %s",
				name.Literal, describe(p.token))
		}
	}
}

func describe(t Token) string {
	if t.Type == TokenEOF {
		return t.Type.String()
	}
	return strconv.Quote(t.Literal)
}
