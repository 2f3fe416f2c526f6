package engine

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites scene script source into something zygomys
// accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     not be registered as globals that could clash with user variables.
//  2. kebab-case identifiers become snake_case (chop-settings ->
//     chop_settings); zygomys would read the hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	p := preprocessor{src: []byte(source), out: make([]byte, 0, len(source)+len(source)/4)}
	for p.i < len(p.src) {
		switch c := p.src[p.i]; {
		case c == '"':
			p.quoted('"', true)
		case c == '`':
			p.quoted('`', false)
		case c == ';':
			p.comment()
		case c == ':' && p.keyword():
		case c == '-' && p.kebab():
		default:
			p.emit(c)
		}
	}
	return string(p.out)
}

type preprocessor struct {
	src []byte
	out []byte
	i   int
}

func (p *preprocessor) emit(b ...byte) {
	p.out = append(p.out, b...)
	p.i += len(b)
}

// quoted copies a literal delimited by q, honouring backslash escapes when
// escapes is set.
func (p *preprocessor) quoted(q byte, escapes bool) {
	p.emit(q)
	for p.i < len(p.src) && p.src[p.i] != q {
		if escapes && p.src[p.i] == '\\' && p.i+1 < len(p.src) {
			p.emit(p.src[p.i], p.src[p.i+1])
			continue
		}
		p.emit(p.src[p.i])
	}
	if p.i < len(p.src) {
		p.emit(q)
	}
}

func (p *preprocessor) comment() {
	p.out = append(p.out, '/', '/')
	for p.i < len(p.src) && p.src[p.i] == ';' {
		p.i++
	}
	for p.i < len(p.src) && p.src[p.i] != '\n' {
		p.emit(p.src[p.i])
	}
}

// keyword rewrites :name and reports whether it did. := is left alone.
func (p *preprocessor) keyword() bool {
	if p.i+1 >= len(p.src) {
		return false
	}
	if p.src[p.i+1] == '=' {
		p.emit(':', '=')
		return true
	}
	if !isLetter(p.src[p.i+1]) {
		return false
	}
	j := p.i + 1
	for j < len(p.src) && isKWChar(p.src[j]) {
		j++
	}
	p.out = append(p.out, '"')
	p.out = append(p.out, kwPrefix...)
	p.out = append(p.out, p.src[p.i+1:j]...)
	p.out = append(p.out, '"')
	p.i = j
	return true
}

// kebab turns a hyphen between identifier characters into an underscore.
// A hyphen anywhere else is the minus operator.
func (p *preprocessor) kebab() bool {
	if p.i == 0 || p.i+1 >= len(p.src) || !isIdentChar(p.src[p.i-1]) || !isLetter(p.src[p.i+1]) {
		return false
	}
	p.out = append(p.out, '_')
	p.i++
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}
