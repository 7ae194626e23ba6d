package storm

// file parser.go is a hand-rolled recursive-descent / precedence-climbing
// parser: a stateful cursor over a token slice, a statement dispatcher
// keyed on lookahead terminal, and a Pratt-style expression reader using
// per-operator binding power. Every failure path funnels through
// badSyntax-family constructors in errors.go so the caller only ever sees
// a BadSyntax.
//
// Three configurations share this engine:
//
//	newQueryParser()        - start rule "query", trivia discarded
//	newQueryParserKeepAll() - start rule "query", trivia retained as
//	                          sibling leaves between statements (round-trip
//	                          dumps, formatting tools)
//	newCmdArgsParser()      - start rule "stormcmdargs", used by the
//	                          command-line-argument sub-grammar
type parser struct {
	text    string
	toks    []token
	pos     int
	keepAll bool
}

func newParserFromText(text string, keepAll bool) (*parser, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	return &parser{text: text, toks: toks, keepAll: keepAll}, nil
}

// newQueryParser builds a parser configured for ordinary query parsing:
// whitespace and comments are discarded before the statement dispatcher
// ever sees them.
func newQueryParser(text string) (*parser, error) {
	return newParserFromText(text, false)
}

// newQueryParserKeepAll builds a parser that retains the trivia tokens
// sitting between statements as leaves in the concrete parse tree. Trivia
// inside a statement is still discarded, so the tree alone does not
// reproduce the source verbatim.
func newQueryParserKeepAll(text string) (*parser, error) {
	return newParserFromText(text, true)
}

// newCmdArgsParser builds a parser whose start rule is stormcmdargs
// rather than query; it shares the lexer and expression
// grammar with the two query configurations.
func newCmdArgsParser(text string) (*parser, error) {
	return newParserFromText(text, false)
}

// --- low-level cursor ---------------------------------------------------

func (p *parser) eofTok() token {
	return token{id: eofTokenID, start: len(p.text), end: len(p.text)}
}

// pendingTrivia collects any trivia tokens sitting at the cursor into leaf
// nodes (only meaningful when keepAll), advancing past them.
func (p *parser) pendingTrivia() []*parseTree {
	var out []*parseTree
	for p.pos < len(p.toks) && trivia[p.toks[p.pos].id] {
		if p.keepAll {
			out = append(out, leafTree(p.toks[p.pos]))
		}
		p.pos++
	}
	return out
}

// sig returns the next significant (non-trivia) token without consuming
// anything, skipping past any leading trivia for the purpose of the peek
// only.
func (p *parser) sig() token {
	i := p.pos
	for i < len(p.toks) && trivia[p.toks[i].id] {
		i++
	}
	if i >= len(p.toks) {
		return p.eofTok()
	}
	return p.toks[i]
}

// sigAt peeks n significant tokens ahead (0 = next).
func (p *parser) sigAt(n int) token {
	i := p.pos
	seen := -1
	for i < len(p.toks) {
		if !trivia[p.toks[i].id] {
			seen++
			if seen == n {
				return p.toks[i]
			}
		}
		i++
	}
	return p.eofTok()
}

// advance consumes trivia then the next significant token, whatever its
// id, and returns it.
func (p *parser) advance() token {
	p.pendingTrivia()
	if p.pos >= len(p.toks) {
		return p.eofTok()
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

// expect consumes the next significant token, failing with BadSyntax if
// its id is not in ids. End-of-input is itself expectable (the query and
// stormcmdargs start rules end on it); an unexpected end of input renders
// as an EOF diagnostic with the full expected set.
func (p *parser) expect(ids ...string) (token, error) {
	want := toSet(ids)
	tok := p.sig()
	for _, id := range ids {
		if tok.id == id {
			if !tok.isEOF() {
				p.advance()
			}
			return tok, nil
		}
	}
	if tok.isEOF() {
		return tok, unexpectedEOF(p.text, want)
	}
	return tok, unexpectedToken(p.text, tok, want)
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

// at reports whether the next significant token has one of the given ids.
func (p *parser) at(ids ...string) bool {
	tok := p.sig()
	for _, id := range ids {
		if tok.id == id {
			return true
		}
	}
	return false
}

// --- entry points --------------------------------------------------------

// parseQuery parses a full Storm query: a
// sequence of statements, optionally separated by VBAR pipe tokens,
// ending at end-of-input.
func (p *parser) parseQuery() (*parseTree, error) {
	var kids []*parseTree
	kids = append(kids, p.pendingTrivia()...)

	for !p.at(eofTokenID) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		kids = append(kids, stmt)
		kids = append(kids, p.pendingTrivia()...)

		if p.at("VBAR") {
			pipe, _ := p.expect("VBAR")
			kids = append(kids, leafTree(pipe))
			kids = append(kids, p.pendingTrivia()...)
		}
	}

	if _, err := p.expect(eofTokenID); err != nil {
		return nil, err
	}
	return ruleTree("query", kids...), nil
}

// parseStormCmdArgs parses the stormcmdargs start rule used by the
// command-argument sub-grammar: a flat run of argument
// tokens up to end of input, letting the lowering pass (lower.go) hand the
// spanned source text to the independent value grammar in cmdargs.go.
func (p *parser) parseStormCmdArgs() (*parseTree, error) {
	var kids []*parseTree
	for !p.at(eofTokenID) {
		kids = append(kids, p.pendingTrivia()...)
		if p.at(eofTokenID) {
			break
		}
		tok := p.advance()
		kids = append(kids, leafTree(tok))
	}
	if _, err := p.expect(eofTokenID); err != nil {
		return nil, err
	}
	return ruleTree("stormcmdargs", kids...), nil
}

// --- statements -----------------------------------------------------------

// statement-starting terminal sets, used both for dispatch and for
// building "expecting one of" diagnostics.
var stmtStarters = []string{
	"FOR", "WHILE", "IF", "SWITCH", "BREAK", "CONTINUE", "YIELD",
	"LBRACE", "LSQB", "LPAR", "COLON",
	"TAG", "ALLTAGS", "TAGMATCH", "_ONLYTAGPROP",
	"VARTOKN", "NAME", "_LEFTPIVOT", "_RIGHTPIVOT", "_LEFTJOIN", "_RIGHTJOIN",
	"PLUS", "MINUS", "NOT",
}

func (p *parser) parseStatement() (*parseTree, error) {
	tok := p.sig()

	switch tok.id {
	case "FOR":
		return p.parseForLoop()
	case "WHILE":
		return p.parseWhileLoop()
	case "IF":
		return p.parseIfStmt()
	case "SWITCH":
		return p.parseSwitchCase()
	case "BREAK":
		b := p.advance()
		return ruleTree("breakoper", leafTree(b)), nil
	case "CONTINUE":
		c := p.advance()
		return ruleTree("continueoper", leafTree(c)), nil
	case "LSQB", "YIELD":
		return p.parseSubQuery()

	case "TAG", "ALLTAGS", "TAGMATCH", "_ONLYTAGPROP":
		return p.parseLiftTagOper()

	case "COLON":
		return p.parseRelPropOper()

	case "_LEFTPIVOT", "_RIGHTPIVOT", "_LEFTJOIN", "_RIGHTJOIN":
		return p.parsePivotOper()

	case "LBRACE":
		return p.parseEditBlock()

	case "LPAR":
		return p.parseVarListSet()

	case "VARTOKN":
		return p.parseVarStatement()

	case "PLUS", "MINUS":
		return p.parseFiltOper()

	case "NAME":
		return p.parseNameLedStatement()

	default:
		return nil, unexpectedToken(p.text, tok, toSet(stmtStarters))
	}
}

// parseNameLedStatement disambiguates the several statement forms that
// begin with a bare NAME: a form#tag lift, a command invocation, a
// lift-by-property, or a bare property lift. Command names and property/form names are lexically
// disjoint (a command name has no colon), so the classifiers decide.
func (p *parser) parseNameLedStatement() (*parseTree, error) {
	name := p.sig()
	next := p.sigAt(1)

	if (next.id == "TAG" || next.id == "TAGMATCH") && next.start == name.end {
		return p.parseLiftFormTag()
	}
	if IsCmdName(name.text) {
		return p.parseCmdOper()
	}
	return p.parseLiftOrFiltOper()
}

func (p *parser) parseForLoop() (*parseTree, error) {
	kw, _ := p.expect("FOR")

	var loopVar *parseTree
	if p.at("LPAR") {
		vl, err := p.parseVarListParen()
		if err != nil {
			return nil, err
		}
		loopVar = vl
	} else {
		varTok, err := p.expect("VARTOKN")
		if err != nil {
			return nil, err
		}
		loopVar = leafTree(varTok)
	}

	inTok, err := p.expect("IN")
	if err != nil {
		return nil, err
	}
	val, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSubQuery()
	if err != nil {
		return nil, err
	}
	return ruleTree("forloop", leafTree(kw), loopVar, leafTree(inTok), val, body), nil
}

func (p *parser) parseWhileLoop() (*parseTree, error) {
	kw, _ := p.expect("WHILE")
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSubQuery()
	if err != nil {
		return nil, err
	}
	return ruleTree("whileloop", leafTree(kw), cond, body), nil
}

func (p *parser) parseIfStmt() (*parseTree, error) {
	var clauses []*parseTree
	kw, _ := p.expect("IF")
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSubQuery()
	if err != nil {
		return nil, err
	}
	clauses = append(clauses, ruleTree("ifclause", leafTree(kw), cond, body))

	for p.at("ELIF") {
		ekw, _ := p.expect("ELIF")
		econd, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		ebody, err := p.parseSubQuery()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ruleTree("ifclause", leafTree(ekw), econd, ebody))
	}

	if p.at("ELSE") {
		skw, _ := p.expect("ELSE")
		sbody, err := p.parseSubQuery()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, ruleTree("ifclause", leafTree(skw), sbody))
	}

	return ruleTree("ifstmt", clauses...), nil
}

func (p *parser) parseSwitchCase() (*parseTree, error) {
	kw, _ := p.expect("SWITCH")
	subj, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	lbrace, err := p.expect("LSQB")
	if err != nil {
		return nil, err
	}

	kids := []*parseTree{leafTree(kw), subj, leafTree(lbrace)}
	for !p.at("RSQB") {
		entry, err := p.parseCaseEntry()
		if err != nil {
			return nil, err
		}
		kids = append(kids, entry)
	}
	rbrace, err := p.expect("RSQB")
	if err != nil {
		return nil, err
	}
	kids = append(kids, leafTree(rbrace))
	return ruleTree("switchcase", kids...), nil
}

// parseCaseEntry reads one `label: { ... }` arm of a switch. A single
// label per arm keeps every CaseEntry at one or two lowered children.
func (p *parser) parseCaseEntry() (*parseTree, error) {
	v, err := p.parseCaseValu()
	if err != nil {
		return nil, err
	}
	colon, err := p.expect("COLON")
	if err != nil {
		return nil, err
	}
	body, err := p.parseSubQuery()
	if err != nil {
		return nil, err
	}
	return ruleTree("caseentry", v, leafTree(colon), body), nil
}

// parseCaseValu reads one switch-case label. Unlike most Storm
// productions, casevalu has no dedicated lexer terminal: the parser
// synthesizes the leaf directly from either a double-quoted string or a
// single bare NAME, NUMBER or TIMES token (the colon after the label is
// read by parseCaseEntry), leaving the decision of how to interpret the
// label to the lowering pass.
func (p *parser) parseCaseValu() (*parseTree, error) {
	tok := p.sig()
	if tok.id == "DOUBLEQUOTEDSTRING" {
		p.advance()
		return ruleTree("casevalu", leafTree(tok)), nil
	}
	if tok.id == "NAME" || tok.id == "TIMES" || tok.id == "NUMBER" {
		p.advance()
		return ruleTree("casevalu", leafTree(tok)), nil
	}
	return nil, unexpectedToken(p.text, tok, toSet([]string{"DOUBLEQUOTEDSTRING", "NAME", "TIMES", "NUMBER"}))
}

// parseSubQuery parses a brace-delimited embedded query, optionally
// preceded by the yield keyword: the rule has one
// child (the baresubquery) or two (the yield token then the baresubquery),
// and the lowering pass sets HasYield from the child count.
func (p *parser) parseSubQuery() (*parseTree, error) {
	var kids []*parseTree
	if p.at("YIELD") {
		y := p.advance()
		kids = append(kids, leafTree(y))
	}
	bare, err := p.parseBareSubQuery()
	if err != nil {
		return nil, err
	}
	kids = append(kids, bare)
	return ruleTree("subquery", kids...), nil
}

// parseBareSubQuery parses the braces themselves: the brace tokens are
// kept as the rule's first and last leaves, so the rule's span covers the
// whole braced text, which the lowering step copies onto the node's Text
// field after lowering the interior as its own statement sequence.
func (p *parser) parseBareSubQuery() (*parseTree, error) {
	lbrace, err := p.expect("LSQB")
	if err != nil {
		return nil, err
	}
	var kids []*parseTree
	kids = append(kids, p.pendingTrivia()...)
	for !p.at("RSQB") {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		kids = append(kids, stmt)
		kids = append(kids, p.pendingTrivia()...)
		if p.at("VBAR") {
			pipe, _ := p.expect("VBAR")
			kids = append(kids, leafTree(pipe))
			kids = append(kids, p.pendingTrivia()...)
		}
	}
	rbrace, err := p.expect("RSQB")
	if err != nil {
		return nil, err
	}
	all := append([]*parseTree{leafTree(lbrace)}, kids...)
	all = append(all, leafTree(rbrace))
	return ruleTree("baresubquery", all...), nil
}

// --- edit block ------------------------------------------------------------

// parseEditBlock parses a `[... ]` node-editing block: one or more edit
// operations applied to the current working set.
func (p *parser) parseEditBlock() (*parseTree, error) {
	lbrace, err := p.expect("LBRACE")
	if err != nil {
		return nil, err
	}
	var kids []*parseTree
	kids = append(kids, leafTree(lbrace))
	for !p.at("RBRACE") {
		op, err := p.parseEditOper()
		if err != nil {
			return nil, err
		}
		kids = append(kids, op)
	}
	rbrace, err := p.expect("RBRACE")
	if err != nil {
		return nil, err
	}
	kids = append(kids, leafTree(rbrace))
	return ruleTree("editparens", kids...), nil
}

func (p *parser) parseEditOper() (*parseTree, error) {
	tok := p.sig()
	switch tok.id {
	case "LPAR":
		return p.parseEditParens()
	case "PLUS":
		return p.parseEditAddOper()
	case "MINUS":
		return p.parseEditDelOper()
	case "COLON":
		return p.parseEditPropSet()
	case "NAME":
		if IsUnivName(tok.text) {
			return p.parseEditUnivSet()
		}
		return p.parseEditNodeAdd()
	default:
		return nil, unexpectedToken(p.text, tok, toSet([]string{"LPAR", "PLUS", "MINUS", "COLON", "NAME"}))
	}
}

// parseEditParens parses a parenthesized sub-group of edit operations,
// letting one `[... ]` block scope secondary edits to a freshly created
// node.
func (p *parser) parseEditParens() (*parseTree, error) {
	lpar, _ := p.expect("LPAR")
	var kids []*parseTree
	kids = append(kids, leafTree(lpar))
	for !p.at("RPAR") {
		op, err := p.parseEditOper()
		if err != nil {
			return nil, err
		}
		kids = append(kids, op)
	}
	rpar, err := p.expect("RPAR")
	if err != nil {
		return nil, err
	}
	kids = append(kids, leafTree(rpar))
	return ruleTree("editparens", kids...), nil
}

// parseEditNodeAdd parses `form = valu` inside an edit block: the creation
// (or dedup-lift) of a node of the named form.
func (p *parser) parseEditNodeAdd() (*parseTree, error) {
	name, err := p.expect("NAME")
	if err != nil {
		return nil, err
	}
	eq, err := p.expect("EQUAL", "SETOPER")
	if err != nil {
		return nil, err
	}
	val, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	return ruleTree("editnodeadd", leafTree(name), leafTree(eq), val), nil
}

// parseEditPropSet parses `:prop = valu` inside an edit block.
func (p *parser) parseEditPropSet() (*parseTree, error) {
	rel, err := p.parseRelProp()
	if err != nil {
		return nil, err
	}
	eq, err := p.expect("EQUAL", "SETOPER")
	if err != nil {
		return nil, err
	}
	val, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	return ruleTree("editpropset", rel, leafTree(eq), val), nil
}

// parseEditUnivSet parses `.univ = valu` inside an edit block. The rule
// lowers to the same variant as editpropset; see DESIGN.md.
func (p *parser) parseEditUnivSet() (*parseTree, error) {
	name, err := p.expect("NAME")
	if err != nil {
		return nil, err
	}
	eq, err := p.expect("EQUAL", "SETOPER")
	if err != nil {
		return nil, err
	}
	val, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	return ruleTree("editunivset", leafTree(name), leafTree(eq), val), nil
}

// parseEditAddOper parses the `+`-led edit operations: `+#tag`,
// `+#tag=valu`, `+#tag:prop=valu`, and `+#:prop=valu`.
func (p *parser) parseEditAddOper() (*parseTree, error) {
	plus, _ := p.expect("PLUS")
	tok := p.sig()

	switch tok.id {
	case "_ONLYTAGPROP":
		marker := p.advance()
		name, err := p.expect("NAME")
		if err != nil {
			return nil, err
		}
		prop := ruleTree("onlytagprop", leafTree(marker), leafTree(name))
		return p.parseEditTagPropSetTail(plus, prop)
	case "TAG", "ALLTAGS", "TAGMATCH":
		tag := p.advance()
		if tp, ok := p.tryTagProp(tag); ok {
			return p.parseEditTagPropSetTail(plus, tp)
		}
		kids := []*parseTree{leafTree(plus), leafTree(tag)}
		if p.at("EQUAL", "SETOPER") {
			eq := p.advance()
			val, err := p.parseValu()
			if err != nil {
				return nil, err
			}
			kids = append(kids, leafTree(eq), val)
		}
		return ruleTree("edittagadd", kids...), nil
	default:
		return nil, unexpectedToken(p.text, tok, toSet([]string{"TAG", "ALLTAGS", "TAGMATCH", "_ONLYTAGPROP"}))
	}
}

func (p *parser) parseEditTagPropSetTail(plus token, prop *parseTree) (*parseTree, error) {
	eq, err := p.expect("EQUAL", "SETOPER")
	if err != nil {
		return nil, err
	}
	val, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	return ruleTree("edittagpropset", leafTree(plus), prop, leafTree(eq), val), nil
}

// parseEditDelOper parses the `-`-led edit operations: `-#tag`,
// `-#tag:prop`, `-#:prop`, `-:prop`, and `-.univ`.
func (p *parser) parseEditDelOper() (*parseTree, error) {
	minus, _ := p.expect("MINUS")
	tok := p.sig()

	switch tok.id {
	case "TAG", "ALLTAGS", "TAGMATCH":
		tag := p.advance()
		if tp, ok := p.tryTagProp(tag); ok {
			return ruleTree("edittagpropdel", leafTree(minus), tp), nil
		}
		return ruleTree("edittagdel", leafTree(minus), leafTree(tag)), nil
	case "_ONLYTAGPROP":
		marker := p.advance()
		name, err := p.expect("NAME")
		if err != nil {
			return nil, err
		}
		prop := ruleTree("onlytagprop", leafTree(marker), leafTree(name))
		return ruleTree("edittagpropdel", leafTree(minus), prop), nil
	case "COLON":
		rel, err := p.parseRelProp()
		if err != nil {
			return nil, err
		}
		return ruleTree("editpropdel", leafTree(minus), rel), nil
	case "NAME":
		nameTok := p.advance()
		if IsUnivName(nameTok.text) {
			return ruleTree("editunivdel", leafTree(minus), leafTree(nameTok)), nil
		}
		return ruleTree("editpropdel", leafTree(minus), leafTree(nameTok)), nil
	default:
		return nil, unexpectedToken(p.text, tok, toSet([]string{"TAG", "ALLTAGS", "TAGMATCH", "_ONLYTAGPROP", "COLON", "NAME"}))
	}
}

// --- lifts -----------------------------------------------------------------

// parseLiftTagOper parses the tag-led lift family at statement
// position: a bare
// `#tag` lifts nodes carrying the tag, `##tag` lifts tags tagged by a tag,
// `#tag:prop` and `#:prop` lift by tag property, each with an optional
// comparison against a value.
func (p *parser) parseLiftTagOper() (*parseTree, error) {
	tok := p.sig()

	switch tok.id {
	case "_ONLYTAGPROP":
		marker := p.advance()
		name, err := p.expect("NAME")
		if err != nil {
			return nil, err
		}
		prop := ruleTree("onlytagprop", leafTree(marker), leafTree(name))
		return p.finishLift("liftonlytagprop", prop)
	case "ALLTAGS":
		all := p.advance()
		next := p.sig()
		if (next.id == "TAG" || next.id == "TAGMATCH") && next.start == all.end {
			tag := p.advance()
			return p.finishLift("lifttagtag", leafTree(tag))
		}
		return p.finishLift("lifttag", leafTree(all))
	default: // TAG, TAGMATCH
		tag := p.advance()
		if tp, ok := p.tryTagProp(tag); ok {
			return p.finishLift("lifttagprop", tp)
		}
		return p.finishLift("lifttag", leafTree(tag))
	}
}

// finishLift appends an optional trailing comparison (`CMPR valu`) to a
// lift production, the common tail every lift rule shares.
func (p *parser) finishLift(rule string, first ...*parseTree) (*parseTree, error) {
	kids := first
	if p.at("CMPOP", "EQUAL", "SETOPER") {
		cmp := p.advance()
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		kids = append(kids, leafTree(cmp), val)
	}
	return ruleTree(rule, kids...), nil
}

// parseLiftFormTag parses `form#tag` and `form#tag:prop` lifts: the form
// name and the tag literal must be adjacent in the source, which is how
// the grammar distinguishes them from a form lift followed by a separate
// tag statement.
func (p *parser) parseLiftFormTag() (*parseTree, error) {
	name := p.advance()
	tag := p.advance()
	if tp, ok := p.tryTagProp(tag); ok {
		ftp := ruleTree("formtagprop", leafTree(name), tp)
		return p.finishLift("liftformtagprop", ftp)
	}
	return p.finishLift("liftformtag", leafTree(name), leafTree(tag))
}

// parseLiftOrFiltOper handles NAME-led lifts: a property or form name
// either lifted outright or lifted by a comparison with a value.
// Universal property names (leading dot) lift the same way.
func (p *parser) parseLiftOrFiltOper() (*parseTree, error) {
	name := p.advance()
	if p.at("EQUAL", "CMPOP", "SETOPER") {
		cmp := p.advance()
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		return ruleTree("liftpropby", leafTree(name), leafTree(cmp), val), nil
	}
	return ruleTree("liftprop", leafTree(name)), nil
}

// --- relative properties ---------------------------------------------------

// parseRelProp reads a `:name` relative-property reference.
func (p *parser) parseRelProp() (*parseTree, error) {
	colon, err := p.expect("COLON")
	if err != nil {
		return nil, err
	}
	name, err := p.expect("NAME")
	if err != nil {
		return nil, err
	}
	return ruleTree("relprop", leafTree(colon), leafTree(name)), nil
}

// parseRelPropOper parses a statement led by a relative property: either a
// prop-to-prop pivot/join or a condition against the current working set.
func (p *parser) parseRelPropOper() (*parseTree, error) {
	rel, err := p.parseRelProp()
	if err != nil {
		return nil, err
	}

	tok := p.sig()
	switch tok.id {
	case "_RIGHTPIVOT", "_RIGHTJOIN":
		arrow := p.advance()
		join := arrow.id == "_RIGHTJOIN"
		rule := "operrelprop_pivot"
		if join {
			rule = "operrelprop_join"
		}
		kids := []*parseTree{rel}
		if p.at("TIMES") {
			p.advance()
		} else {
			target, err := p.expect("NAME")
			if err != nil {
				return nil, err
			}
			kids = append(kids, leafTree(target))
		}
		return markJoin(ruleTree(rule, kids...), join), nil
	case "EQUAL", "CMPOP", "SETOPER":
		cmp := p.advance()
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		return ruleTree("relpropcond", rel, leafTree(cmp), val), nil
	default:
		return ruleTree("hasrelpropcond", rel), nil
	}
}

// --- pivots ----------------------------------------------------------------

// parsePivotOper parses the pivot/join family (-> <- <+- -+>): the AST
// variant is picked by arrow direction and target shape, with the join
// arrows producing the same variants flagged isjoin.
func (p *parser) parsePivotOper() (*parseTree, error) {
	arrow := p.advance()
	join := arrow.id == "_LEFTJOIN" || arrow.id == "_RIGHTJOIN"
	rightward := arrow.id == "_RIGHTPIVOT" || arrow.id == "_RIGHTJOIN"

	if rightward {
		if p.at("TAG", "ALLTAGS", "TAGMATCH") {
			tagTok := p.advance()
			n := ruleTree("pivottotags", arrowTree(arrow), leafTree(tagTok))
			return markJoin(n, join), nil
		}
		if p.at("TIMES") {
			star, _ := p.expect("TIMES")
			n := ruleTree("pivotout", arrowTree(arrow), leafTree(star))
			return markJoin(n, join), nil
		}
		if p.at("NAME") {
			nameTok, _ := p.expect("NAME")
			n := ruleTree("formpivot", arrowTree(arrow), leafTree(nameTok))
			return markJoin(n, join), nil
		}
		tok := p.sig()
		return nil, unexpectedToken(p.text, tok, toSet([]string{"TAG", "ALLTAGS", "TAGMATCH", "TIMES", "NAME"}))
	}

	if p.at("TIMES") {
		star, _ := p.expect("TIMES")
		n := ruleTree("pivotin", arrowTree(arrow), leafTree(star))
		return markJoin(n, join), nil
	}
	if p.at("NAME") {
		nameTok, _ := p.expect("NAME")
		n := ruleTree("pivotinfrom", arrowTree(arrow), leafTree(nameTok))
		return markJoin(n, join), nil
	}
	tok := p.sig()
	return nil, unexpectedToken(p.text, tok, toSet([]string{"TIMES", "NAME"}))
}

// arrowTree wraps a pivot arrow token in a leaf whose rule id is the
// internal _arrow marker, so the lowering pass filters it as punctuation
// regardless of which of the four arrow terminals it was.
func arrowTree(arrow token) *parseTree {
	n := leafTree(arrow)
	n.rule = "_arrow"
	return n
}

// markJoin annotates the join-flagged variants produced from <+- / -+>
// arrows; see ast.go's Node.IsJoin. The parse tree carries this as a
// synthetic trailing marker child consumed by lower.go.
func markJoin(n *parseTree, join bool) *parseTree {
	if join {
		n.kids = append(n.kids, &parseTree{rule: "_join"})
	}
	return n
}

// --- commands --------------------------------------------------------------

func (p *parser) parseCmdOper() (*parseTree, error) {
	name, err := p.expect("NAME")
	if err != nil {
		return nil, err
	}
	kids := []*parseTree{leafTree(name)}
	if !p.atCmdBoundary() {
		args, err := p.parseStormCmdArgsInline()
		if err != nil {
			return nil, err
		}
		kids = append(kids, args)
	}
	return ruleTree("stormcmd", kids...), nil
}

func (p *parser) atCmdBoundary() bool {
	return p.at(eofTokenID, "VBAR", "RSQB", "RBRACE", "RPAR")
}

// parseStormCmdArgsInline consumes raw tokens up to the next statement
// boundary for a command's argument string: the same
// lexical stream is reused rather than re-lexed, since the command-args
// grammar differs only in how those tokens are grouped, not in what counts
// as a token. A brace-delimited subquery argument is consumed whole --
// its interior RSQB must not be mistaken for the command's end.
func (p *parser) parseStormCmdArgsInline() (*parseTree, error) {
	var kids []*parseTree
	depth := 0
	for {
		kids = append(kids, p.pendingTrivia()...)
		if p.at(eofTokenID) {
			break
		}
		if depth == 0 && p.atCmdBoundary() {
			break
		}
		tok := p.advance()
		switch tok.id {
		case "LSQB":
			depth++
		case "RSQB":
			depth--
		}
		kids = append(kids, leafTree(tok))
	}
	return ruleTree("stormcmdargs", kids...), nil
}

// --- variables -------------------------------------------------------------

func (p *parser) parseVarStatement() (*parseTree, error) {
	v := p.sig()
	if p.sigAt(1).id == "EQUAL" {
		p.advance()
		eq, _ := p.expect("EQUAL")
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		return ruleTree("varsetoper", leafTree(v), leafTree(eq), val), nil
	}
	val, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	return ruleTree("varevaloper", val), nil
}

// parseVarListParen reads `($a, $b, ...)`, the variable-list form used
// on the left of a list assignment and in for loops.
func (p *parser) parseVarListParen() (*parseTree, error) {
	lpar, err := p.expect("LPAR")
	if err != nil {
		return nil, err
	}
	kids := []*parseTree{leafTree(lpar)}
	for {
		v, err := p.expect("VARTOKN")
		if err != nil {
			return nil, err
		}
		kids = append(kids, leafTree(v))
		if p.at("COMMA") {
			comma, _ := p.expect("COMMA")
			kids = append(kids, leafTree(comma))
			continue
		}
		break
	}
	rpar, err := p.expect("RPAR")
	if err != nil {
		return nil, err
	}
	kids = append(kids, leafTree(rpar))
	return ruleTree("varlist", kids...), nil
}

// parseVarListSet parses `($a, $b) = valu`, assigning the unpacked
// elements of valu to each named variable in order.
func (p *parser) parseVarListSet() (*parseTree, error) {
	vl, err := p.parseVarListParen()
	if err != nil {
		return nil, err
	}
	eq, err := p.expect("EQUAL")
	if err != nil {
		return nil, err
	}
	val, err := p.parseValu()
	if err != nil {
		return nil, err
	}
	return ruleTree("varlistsetoper", vl, leafTree(eq), val), nil
}

func (p *parser) parseFiltOper() (*parseTree, error) {
	prefix := p.advance()
	cond, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	return ruleTree("filtoper", leafTree(prefix), cond), nil
}

// --- boolean conditions ----------------------------------------------------

// parseCond reads an OrCond-level boolean expression: AND binds tighter
// than OR, NOT binds tightest.
func (p *parser) parseCond() (*parseTree, error) {
	left, err := p.parseAndCond()
	if err != nil {
		return nil, err
	}
	for p.at("OR") {
		op, _ := p.expect("OR")
		right, err := p.parseAndCond()
		if err != nil {
			return nil, err
		}
		left = ruleTree("orcond", left, leafTree(op), right)
	}
	return left, nil
}

func (p *parser) parseAndCond() (*parseTree, error) {
	left, err := p.parseNotCond()
	if err != nil {
		return nil, err
	}
	for p.at("AND") {
		op, _ := p.expect("AND")
		right, err := p.parseNotCond()
		if err != nil {
			return nil, err
		}
		left = ruleTree("andcond", left, leafTree(op), right)
	}
	return left, nil
}

func (p *parser) parseNotCond() (*parseTree, error) {
	if p.at("NOT") {
		op, _ := p.expect("NOT")
		inner, err := p.parseNotCond()
		if err != nil {
			return nil, err
		}
		return ruleTree("notcond", leafTree(op), inner), nil
	}
	return p.parseBaseCond()
}

func (p *parser) parseBaseCond() (*parseTree, error) {
	// Parentheses around a condition are pure grouping: the inner
	// condition is returned as-is. A subqcond is only the brace-delimited
	// subquery-existence form below.
	if p.at("LPAR") {
		p.advance()
		inner, err := p.parseCond()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("RPAR"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	if p.at("LSQB", "YIELD") {
		sq, err := p.parseSubQuery()
		if err != nil {
			return nil, err
		}
		return ruleTree("subqcond", sq), nil
	}

	tok := p.sig()
	switch tok.id {
	case "_ONLYTAGPROP":
		return p.parseTagPropCond()
	case "TAG", "ALLTAGS", "TAGMATCH":
		return p.parseTagCondOper()
	case "COLON":
		return p.parseRelPropCond()
	case "NAME":
		return p.parseNamedCond()
	case "_EXPRSTART":
		return p.parseDollarExpr()
	case "VARTOKN":
		return p.parseVarValue()
	default:
		return nil, unexpectedToken(p.text, tok, toSet([]string{"LPAR", "LSQB", "YIELD", "_ONLYTAGPROP", "TAG", "ALLTAGS", "TAGMATCH", "COLON", "NAME", "_EXPRSTART", "VARTOKN"}))
	}
}

// parseTagCondOper parses a tag condition inside a filter: `+#tag`,
// `+#tag=valu`, and the tag-property forms `+#tag:prop` with an optional
// comparison.
func (p *parser) parseTagCondOper() (*parseTree, error) {
	tag := p.advance()
	if tp, ok := p.tryTagProp(tag); ok {
		if p.at("CMPOP", "EQUAL") {
			cmp := p.advance()
			val, err := p.parseValu()
			if err != nil {
				return nil, err
			}
			return ruleTree("tagpropcond", tp, leafTree(cmp), val), nil
		}
		return ruleTree("hastagpropcond", tp), nil
	}
	if p.at("CMPOP", "EQUAL") {
		cmp := p.advance()
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		return ruleTree("tagvalucond", leafTree(tag), leafTree(cmp), val), nil
	}
	return ruleTree("tagcond", leafTree(tag)), nil
}

func (p *parser) parseTagPropCond() (*parseTree, error) {
	marker, _ := p.expect("_ONLYTAGPROP")
	name, err := p.expect("NAME")
	if err != nil {
		return nil, err
	}
	prop := ruleTree("onlytagprop", leafTree(marker), leafTree(name))
	if p.at("CMPOP", "EQUAL") {
		cmp := p.advance()
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		return ruleTree("tagpropcond", prop, leafTree(cmp), val), nil
	}
	return ruleTree("hastagpropcond", prop), nil
}

func (p *parser) parseRelPropCond() (*parseTree, error) {
	rel, err := p.parseRelProp()
	if err != nil {
		return nil, err
	}
	if p.at("CMPOP", "EQUAL") {
		cmp := p.advance()
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		return ruleTree("relpropcond", rel, leafTree(cmp), val), nil
	}
	return ruleTree("hasrelpropcond", rel), nil
}

func (p *parser) parseNamedCond() (*parseTree, error) {
	name := p.advance()
	if p.at("CMPOP", "EQUAL") {
		cmp := p.advance()
		val, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		if IsPropName(name.text) || IsUnivName(name.text) {
			return ruleTree("abspropcond", leafTree(name), leafTree(cmp), val), nil
		}
		return ruleTree("relpropcond", leafTree(name), leafTree(cmp), val), nil
	}
	if IsPropName(name.text) || IsUnivName(name.text) {
		return ruleTree("hasabspropcond", leafTree(name)), nil
	}
	return ruleTree("hasrelpropcond", leafTree(name)), nil
}

// tryTagProp recognizes a `#tag:prop` tag-property reference: the colon
// and property name must be source-adjacent to the tag, so a separate
// relative-property statement after a tag is not swallowed.
func (p *parser) tryTagProp(tag token) (*parseTree, bool) {
	colon := p.sig()
	if colon.id != "COLON" || colon.start != tag.end {
		return nil, false
	}
	name := p.sigAt(1)
	if name.id != "NAME" || name.start != colon.end {
		return nil, false
	}
	p.advance()
	p.advance()
	return ruleTree("tagprop", leafTree(tag), leafTree(colon), leafTree(name)), true
}

// --- values / expressions --------------------------------------------------

// parseValu reads any single value production: a literal, a variable
// reference, a dollar-expression, a function call, a tag or property
// value, or a list.
func (p *parser) parseValu() (*parseTree, error) {
	tok := p.sig()
	switch tok.id {
	case "_EXPRSTART":
		return p.parseDollarExpr()
	case "VARTOKN":
		return p.parseVarValue()
	case "LPAR":
		return p.parseValuListParen()
	case "TAG", "ALLTAGS", "TAGMATCH":
		return p.parseTagValue()
	case "COLON":
		return p.parseRelPropValue()
	case "DOUBLEQUOTEDSTRING", "SINGLEQUOTEDSTRING":
		v := p.advance()
		return ruleTree("constvalu", leafTree(v)), nil
	case "NUMBER":
		return p.parseUnquotedWord(), nil
	case "MINUS":
		return p.parseNegativeNumber()
	case "NAME":
		if IsUnivName(tok.text) {
			v := p.advance()
			return ruleTree("univpropvalue", leafTree(v)), nil
		}
		return p.parseConstOrFuncCall()
	default:
		return nil, unexpectedToken(p.text, tok, toSet([]string{"_EXPRSTART", "VARTOKN", "LPAR", "TAG", "ALLTAGS", "TAGMATCH", "COLON", "NUMBER", "MINUS", "DOUBLEQUOTEDSTRING", "SINGLEQUOTEDSTRING", "NAME"}))
	}
}

// parseUnquotedWord reads a run of source-adjacent NAME/NUMBER/DOT tokens
// as one unquoted value literal (the NONQUOTEWORD terminal class):
// `1.2.3.4` lexes as NUMBER DOT NUMBER but is a single value.
func (p *parser) parseUnquotedWord() *parseTree {
	first := p.advance()
	cur := first
	text := first.text
	for {
		next := p.sig()
		if next.start != cur.end {
			break
		}
		if next.id != "NAME" && next.id != "NUMBER" && next.id != "DOT" {
			break
		}
		cur = p.advance()
		text += cur.text
	}
	if cur == first {
		return ruleTree("constvalu", leafTree(first))
	}
	merged := token{id: "NONQUOTEWORD", text: text, start: first.start, end: cur.end}
	return ruleTree("constvalu", leafTree(merged))
}

// parseNegativeNumber reads a `-` immediately followed by a number literal
// in value position; the sign is not part of the NUMBER terminal so that
// `1-2` inside $(...) reads as a binary minus.
func (p *parser) parseNegativeNumber() (*parseTree, error) {
	minus := p.advance()
	num := p.sig()
	if num.id != "NUMBER" || num.start != minus.end {
		return nil, unexpectedToken(p.text, num, toSet([]string{"NUMBER"}))
	}
	p.advance()
	neg := token{id: "NUMBER", text: "-" + num.text, start: minus.start, end: num.end}
	return ruleTree("constvalu", leafTree(neg)), nil
}

// parseTagValue reads a tag literal used as a value (`+#foo`'s right-hand
// positions, edit values, etc.), including the `#tag:prop` form.
func (p *parser) parseTagValue() (*parseTree, error) {
	tag := p.advance()
	if tp, ok := p.tryTagProp(tag); ok {
		return ruleTree("tagpropvalue", tp), nil
	}
	return ruleTree("tagvalue", leafTree(tag)), nil
}

// parseRelPropValue reads a relative property used as a value, e.g. the
// right side of `[:asn=:asn ]`.
func (p *parser) parseRelPropValue() (*parseTree, error) {
	rel, err := p.parseRelProp()
	if err != nil {
		return nil, err
	}
	return ruleTree("relpropvalue", rel), nil
}

func (p *parser) parseConstOrFuncCall() (*parseTree, error) {
	tok := p.sig()
	if tok.id == "NAME" && p.sigAt(1).id == "LPAR" {
		p.advance()
		return p.parseFuncCallTail(leafTree(tok))
	}
	return p.parseUnquotedWord(), nil
}

// parseFuncCallTail reads the parenthesized argument list of a function
// call whose callee has already been read. Positional and keyword
// arguments may interleave in the source; lowering partitions them.
func (p *parser) parseFuncCallTail(callee *parseTree) (*parseTree, error) {
	lpar, _ := p.expect("LPAR")
	kids := []*parseTree{callee, leafTree(lpar)}
	for !p.at("RPAR") {
		if p.at("NAME") && p.sigAt(1).id == "EQUAL" {
			kwName := p.advance()
			eq, _ := p.expect("EQUAL")
			val, err := p.parseValu()
			if err != nil {
				return nil, err
			}
			kids = append(kids, ruleTree("callkwarg", leafTree(kwName), leafTree(eq), val))
		} else {
			val, err := p.parseValu()
			if err != nil {
				return nil, err
			}
			kids = append(kids, val)
		}
		if p.at("COMMA") {
			comma, _ := p.expect("COMMA")
			kids = append(kids, leafTree(comma))
		}
	}
	rpar, err := p.expect("RPAR")
	if err != nil {
		return nil, err
	}
	kids = append(kids, leafTree(rpar))
	return ruleTree("funccall", kids...), nil
}

func (p *parser) parseVarValue() (*parseTree, error) {
	v, _ := p.expect("VARTOKN")
	var ref *parseTree
	next := p.sig()
	if p.at("DOT") {
		dot, _ := p.expect("DOT")
		field, err := p.expect("NAME")
		if err != nil {
			return nil, err
		}
		base := ruleTree("varvalue", leafTree(v))
		ref = ruleTree("varderef", base, leafTree(dot), leafTree(field))
	} else if next.id == "NAME" && next.start == v.end && next.text[0] == '.' {
		// The lexer folds an adjacent `.field` into one NAME token; split it
		// back into the dot and the field name.
		p.advance()
		dot := token{id: "DOT", text: ".", start: next.start, end: next.start + 1}
		field := token{id: "NAME", text: next.text[1:], start: next.start + 1, end: next.end}
		base := ruleTree("varvalue", leafTree(v))
		ref = ruleTree("varderef", base, leafTree(dot), leafTree(field))
	} else {
		ref = ruleTree("varvalue", leafTree(v))
	}
	if p.at("LPAR") {
		return p.parseFuncCallTail(ref)
	}
	return ref, nil
}

// parseValuListParen reads either a parenthesized single value or a
// comma-separated value list.
func (p *parser) parseValuListParen() (*parseTree, error) {
	lpar, _ := p.expect("LPAR")
	list, err := p.parseValuList()
	if err != nil {
		return nil, err
	}
	rpar, err := p.expect("RPAR")
	if err != nil {
		return nil, err
	}
	return ruleTree("valulist", leafTree(lpar), list, leafTree(rpar)), nil
}

func (p *parser) parseValuList() (*parseTree, error) {
	var kids []*parseTree
	if p.at("RPAR") {
		return ruleTree("list", kids...), nil
	}
	for {
		v, err := p.parseValu()
		if err != nil {
			return nil, err
		}
		kids = append(kids, v)
		if p.at("COMMA") {
			comma, _ := p.expect("COMMA")
			kids = append(kids, leafTree(comma))
			continue
		}
		break
	}
	return ruleTree("list", kids...), nil
}

// operator binding powers for the $(...) expression grammar.
var exprBindingPower = map[string]int{
	"OR":     10,
	"AND":    20,
	"CMPOP":  30,
	"EQUAL":  30,
	"PLUS":   40,
	"MINUS":  40,
	"TIMES":  50,
	"DIVIDE": 50,
}

// parseDollarExpr parses a $(... ) arithmetic/boolean expression using
// precedence climbing.
func (p *parser) parseDollarExpr() (*parseTree, error) {
	start, _ := p.expect("_EXPRSTART")
	inner, err := p.parseExprBP(0)
	if err != nil {
		return nil, err
	}
	rpar, err := p.expect("RPAR")
	if err != nil {
		return nil, err
	}
	return ruleTree("dollarexpr", leafTree(start), inner, leafTree(rpar)), nil
}

func (p *parser) parseExprBP(minBP int) (*parseTree, error) {
	left, err := p.parseExprUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.sig()
		bp, ok := exprBindingPower[tok.id]
		if !ok || bp < minBP {
			break
		}
		op := p.advance()
		right, err := p.parseExprBP(bp + 1)
		if err != nil {
			return nil, err
		}
		left = ruleTree("exprnode", left, leafTree(op), right)
	}
	return left, nil
}

func (p *parser) parseExprUnary() (*parseTree, error) {
	if p.at("MINUS", "NOT") {
		op := p.advance()
		operand, err := p.parseExprUnary()
		if err != nil {
			return nil, err
		}
		return ruleTree("unaryexprnode", leafTree(op), operand), nil
	}
	if p.at("LPAR") {
		lpar, _ := p.expect("LPAR")
		inner, err := p.parseExprBP(0)
		if err != nil {
			return nil, err
		}
		rpar, err := p.expect("RPAR")
		if err != nil {
			return nil, err
		}
		return ruleTree("exprparen", leafTree(lpar), inner, leafTree(rpar)), nil
	}
	return p.parseValu()
}
