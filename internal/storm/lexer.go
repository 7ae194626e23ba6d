package storm

import (
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// file lexer.go is the tokenizer layer of the parser engine: an ordered
// table of named lexical rules, declared as regexes and matched by
// github.com/alecthomas/participle/v2/lexer's regex-table engine, feeding
// a flat token stream with byte positions.
//
// A handful of terminal ids are genuinely context-sensitive in Storm
// (e.g. '+'/'-' mean a filter prefix before a condition and plus/minus
// inside a $(...) expression; '=' and comparison operators are similarly
// shared across lift, filter, and expression contexts). Rather than fork
// the lexer into modes, it emits a small set of raw lexical kinds and the
// parser (parser.go) decides what each occurrence means from the
// production in progress; see DESIGN.md.

const (
	rawWS          = "_WS"
	rawCComment    = "CCOMMENT"
	rawCppComment  = "CPPCOMMENT"
	rawDQString    = "DOUBLEQUOTEDSTRING"
	rawSQString    = "SINGLEQUOTEDSTRING"
	rawLeftJoin    = "_LEFTJOIN"
	rawRightJoin   = "_RIGHTJOIN"
	rawLeftPivot   = "_LEFTPIVOT"
	rawRightPivot  = "_RIGHTPIVOT"
	rawOnlyTagProp = "_ONLYTAGPROP"
	rawExprStart   = "_EXPRSTART"
	rawNumber      = "NUMBER"
	rawTagLit      = "TAGLIT"
	rawVarTokn     = "VARTOKN"
	rawSetOper     = "SETOPER"
	rawCmpOp       = "CMPOP"
	rawLPar        = "LPAR"
	rawRPar        = "RPAR"
	rawLBrace      = "LBRACE"
	rawRBrace      = "RBRACE"
	rawLSqb        = "LSQB"
	rawRSqb        = "RSQB"
	rawColon       = "COLON"
	rawComma       = "COMMA"
	rawDot         = "DOT"
	rawVBar        = "VBAR"
	rawDollar      = "DOLLAR"
	rawEqual       = "EQUAL"
	rawPlus        = "PLUS"
	rawMinus       = "MINUS"
	rawTimes       = "TIMES"
	rawDivide      = "DIVIDE"
	rawDeref       = "_DEREF"
	rawName        = "NAME"
)

var keywordRaw = map[string]string{
	"and":      "AND",
	"or":       "OR",
	"not":      "NOT",
	"if":       "IF",
	"elif":     "ELIF",
	"else":     "ELSE",
	"for":      "FOR",
	"while":    "WHILE",
	"switch":   "SWITCH",
	"in":       "IN",
	"break":    "BREAK",
	"continue": "CONTINUE",
	"yield":    "YIELD",
}

var stormLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: rawWS, Pattern: `[ \t\r\n]+`},
	{Name: rawCComment, Pattern: `/\*([^*]|\*+[^*/])*\*+/`},
	{Name: rawCppComment, Pattern: `//[^\n]*`},
	{Name: rawDQString, Pattern: `"(\\.|[^"\\])*"`},
	{Name: rawSQString, Pattern: `'[^']*'`},
	{Name: rawLeftJoin, Pattern: `<\+-`},
	{Name: rawRightJoin, Pattern: `-\+>`},
	{Name: rawLeftPivot, Pattern: `<-`},
	{Name: rawRightPivot, Pattern: `->`},
	{Name: rawOnlyTagProp, Pattern: `#:`},
	{Name: rawExprStart, Pattern: `\$\(`},
	// The sign of a negative literal is left to the parser (unary minus in
	// expressions, a synthesized literal in value position) so that `1-2`
	// inside $(...) lexes as NUMBER MINUS NUMBER rather than NUMBER NUMBER.
	{Name: rawNumber, Pattern: `[0-9]+(\.[0-9]+)?`},
	{Name: rawTagLit, Pattern: `#[A-Za-z0-9_.*$]*`},
	{Name: rawVarTokn, Pattern: `\$(?:"[^"]*"|'[^']*'|[A-Za-z_][A-Za-z0-9_]*)`},
	{Name: "KEYWORD", Pattern: `(and|or|not|if|elif|else|for|while|switch|in|break|continue|yield)\b`},
	{Name: rawSetOper, Pattern: `\?=`},
	{Name: rawCmpOp, Pattern: `(==|~=|\^=|<=|>=|!=|<|>)`},
	{Name: rawLPar, Pattern: `\(`},
	{Name: rawRPar, Pattern: `\)`},
	{Name: rawLBrace, Pattern: `\[`},
	{Name: rawRBrace, Pattern: `\]`},
	{Name: rawLSqb, Pattern: `\{`},
	{Name: rawRSqb, Pattern: `\}`},
	{Name: rawColon, Pattern: `:`},
	{Name: rawComma, Pattern: `,`},
	{Name: rawVBar, Pattern: `\|`},
	{Name: rawDollar, Pattern: `\$`},
	{Name: rawEqual, Pattern: `=`},
	{Name: rawPlus, Pattern: `\+`},
	{Name: rawMinus, Pattern: `-`},
	{Name: rawTimes, Pattern: `\*`},
	{Name: rawDivide, Pattern: `/`},
	{Name: rawName, Pattern: `\.?[A-Za-z_][A-Za-z0-9_]*(:[A-Za-z0-9_]+)*([:.][A-Za-z_][A-Za-z0-9_]*)*`},
	// rawDot is last among punctuation so a bare '.' that isn't absorbed
	// into rawName (e.g. a trailing dot in a tag path) still lexes.
	{Name: rawDot, Pattern: `\.`},
})

// trivia is the set of raw kinds that are non-significant whitespace or
// comments.
var trivia = map[string]bool{
	rawWS:         true,
	rawCComment:   true,
	rawCppComment: true,
}

// lexicalAllowed is the set of terminal ids the tokenizer can ever produce
// at the point lexing stops dead, i.e. the "Expecting one of:" set reported
// by a bare lexical failure. Unlike a parser-level unexpectedToken, this
// isn't narrowed to what's grammatically valid at the failure point: with
// no parse state to narrow against, every non-trivia terminal id the
// tokenizer emits is reported.
var lexicalAllowed = map[string]struct{}{
	"ALLTAGS": {}, "TAG": {}, "TAGMATCH": {},
	"AND": {}, "OR": {}, "NOT": {}, "IN": {},
	"IF": {}, "ELIF": {}, "ELSE": {}, "FOR": {}, "WHILE": {}, "SWITCH": {},
	"BREAK": {}, "CONTINUE": {}, "YIELD": {},
	"DOUBLEQUOTEDSTRING": {}, "SINGLEQUOTEDSTRING": {},
	"NUMBER": {}, "VARTOKN": {}, "NAME": {},
	"SETOPER": {}, "CMPOP": {},
	"LPAR": {}, "RPAR": {}, "LBRACE": {}, "RBRACE": {}, "LSQB": {}, "RSQB": {},
	"COLON": {}, "COMMA": {}, "DOT": {}, "VBAR": {}, "DOLLAR": {},
	"EQUAL": {}, "PLUS": {}, "MINUS": {}, "TIMES": {}, "DIVIDE": {},
	"_EXPRSTART": {}, "_ONLYTAGPROP": {},
	"_LEFTJOIN": {}, "_RIGHTJOIN": {}, "_LEFTPIVOT": {}, "_RIGHTPIVOT": {},
}

// tokenize runs the shared lexical rule table over text and returns the
// full raw token stream, including trivia; each parser configuration
// applies its own trivia policy on top. A byte the rule table cannot
// match at all is reported as a BadSyntax built by unexpectedCharacter,
// at the exact offset lexing got stuck rather than the end of input.
func tokenize(text string) ([]token, error) {
	lx, err := stormLexer.Lex("", strings.NewReader(text))
	if err != nil {
		return nil, err
	}

	symbols := stormLexer.Symbols()
	idByType := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		idByType[tt] = name
	}

	var out []token
	pos := 0
	for {
		tok, err := lx.Next()
		if err != nil {
			ch, width := utf8.DecodeRuneInString(text[pos:])
			if width == 0 {
				ch = utf8.RuneError
			}
			return nil, unexpectedCharacter(text, pos, ch, lexicalAllowed)
		}
		if tok.EOF() {
			break
		}

		id := idByType[tok.Type]
		if id == "KEYWORD" {
			id = keywordRaw[tok.Value]
		}

		start := tok.Pos.Offset
		t := token{
			id:    id,
			text:  tok.Value,
			start: start,
			end:   start + len(tok.Value),
		}

		if t.id == rawTagLit {
			t.id = classifyTagLit(t.text)
		}

		out = append(out, t)
		pos = t.end
	}

	return out, nil
}

// classifyTagLit reclassifies a raw tag literal ("#", "#foo.bar",
// "#foo.*", "#foo.$x") into the official ALLTAGS/TAG/TAGMATCH terminal id.
// This is the one place the lexer needs the text of a match (not just its
// shape) to pick a terminal id, which Go's RE2 engine cannot express as a
// single lookahead-free regex; see DESIGN.md.
func classifyTagLit(text string) string {
	body := strings.TrimPrefix(text, "#")
	if body == "" {
		return "ALLTAGS"
	}
	if strings.ContainsAny(body, "*$") {
		return "TAGMATCH"
	}
	return "TAG"
}
