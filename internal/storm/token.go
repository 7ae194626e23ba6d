package storm

// token is a lexeme read from source text: it carries the
// raw lexical kind produced by the tokenizer, its literal text, and its
// end-exclusive byte span in the (already-trimmed) source.
type token struct {
	id    string
	text  string
	start int
	end   int
}

// eofTokenID is the id of the sentinel token returned once the token
// stream is exhausted.
const eofTokenID = "$EOF"

func (t token) isEOF() bool { return t.id == eofTokenID }
