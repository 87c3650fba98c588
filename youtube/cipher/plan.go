package cipher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type opKind int

const (
	opReverse opKind = iota
	opSplice
	opSwap
)

func (o opKind) String() string {
	switch o {
	case opReverse:
		return "rev"
	case opSplice:
		return "spl"
	case opSwap:
		return "swp"
	}
	return "unknown"
}

type step struct {
	op  opKind
	arg int
}

// plan is an ordered list of transforms applied to a signature.
type plan []step

func (p plan) apply(signature string) string {
	r := []rune(signature)
	for _, st := range p {
		switch st.op {
		case opReverse:
			r = reverseRunes(r)
		case opSplice:
			r = spliceRunes(r, st.arg)
		case opSwap:
			r = swapRunes(r, st.arg)
		}
	}
	return string(r)
}

func (p plan) String() string {
	parts := make([]string, len(p))
	for i, st := range p {
		if st.op == opReverse {
			parts[i] = st.op.String()
			continue
		}
		parts[i] = st.op.String() + "(" + strconv.Itoa(st.arg) + ")"
	}
	return strings.Join(parts, ",")
}

var (
	// Function declarations and assignments whose body has no nested block.
	fnRe       = regexp.MustCompile(`(?:function\s*[a-zA-Z0-9$]*|[a-zA-Z0-9$]+\s*=\s*function)\s*\(\s*([a-zA-Z0-9$]+)\s*\)\s*\{([^{}]*)\}`)
	helperFnRe = regexp.MustCompile(`([a-zA-Z0-9$]+)\s*:\s*function\s*\(\s*[a-zA-Z0-9$]+\s*(?:,\s*[a-zA-Z0-9$]+\s*)?\)\s*\{([^{}]*)\}`)
)

// extractPlan reads the signature transform plan out of the player script.
func extractPlan(js string) (plan, error) {
	param, body, ok := findDecipherFunc(js)
	if !ok {
		return nil, NewError(ErrCodeSignatureNotFound, "decipher function not found in player.js")
	}

	q := regexp.QuoteMeta(param)
	splitRe := regexp.MustCompile(`^` + q + `\s*=\s*` + q + `\.split\(\s*(?:""|'')\s*\)$`)
	joinRe := regexp.MustCompile(`^return\s+` + q + `\.join\(\s*(?:""|'')\s*\)$`)
	revRe := regexp.MustCompile(`^` + q + `\.reverse\(\s*\)$`)
	splRe := regexp.MustCompile(`^` + q + `\.splice\(\s*0\s*,\s*(\d+)\s*\)$`)
	callRe := regexp.MustCompile(`^([a-zA-Z0-9$]+)\.([a-zA-Z0-9$]+)\(\s*` + q + `\s*(?:,\s*(\d+)\s*)?\)$`)

	var (
		out     plan
		helpers map[string]opKind
		helper  string
	)
	for _, stmt := range strings.Split(body, ";") {
		stmt = strings.TrimSpace(stmt)
		switch {
		case stmt == "", splitRe.MatchString(stmt), joinRe.MatchString(stmt):
			continue
		case revRe.MatchString(stmt):
			out = append(out, step{op: opReverse})
			continue
		}
		if m := splRe.FindStringSubmatch(stmt); m != nil {
			n, _ := strconv.Atoi(m[1])
			out = append(out, step{op: opSplice, arg: n})
			continue
		}
		m := callRe.FindStringSubmatch(stmt)
		if m == nil {
			return nil, NewError(ErrCodeTransformUnsupported, "unrecognized statement in decipher function", stmt)
		}
		obj, fn := m[1], m[2]
		if helpers == nil || helper != obj {
			var err error
			if helpers, err = helperOps(js, obj); err != nil {
				return nil, err
			}
			helper = obj
		}
		op, ok := helpers[fn]
		if !ok {
			return nil, NewError(ErrCodeTransformUnsupported, "unknown helper transform", obj+"."+fn)
		}
		arg := 0
		if m[3] != "" {
			arg, _ = strconv.Atoi(m[3])
		}
		out = append(out, step{op: op, arg: arg})
	}
	if len(out) == 0 {
		return nil, NewError(ErrCodeTransformUnsupported, "decipher function has no transforms")
	}
	return out, nil
}

// findDecipherFunc locates a function that splits its argument into
// characters and joins it back, returning the parameter name and body.
func findDecipherFunc(js string) (param, body string, ok bool) {
	for _, m := range fnRe.FindAllStringSubmatch(js, -1) {
		p, b := m[1], m[2]
		if strings.Contains(b, p+`.split("")`) || strings.Contains(b, p+`.split('')`) {
			if strings.Contains(b, p+`.join("")`) || strings.Contains(b, p+`.join('')`) {
				return p, b, true
			}
		}
	}
	return "", "", false
}

// helperOps maps the methods of the helper object obj to transforms.
func helperOps(js, obj string) (map[string]opKind, error) {
	declRe := regexp.MustCompile(`(?:var|let|const)\s+` + regexp.QuoteMeta(obj) + `\s*=\s*\{`)
	loc := declRe.FindStringIndex(js)
	if loc == nil {
		return nil, NewError(ErrCodeTransformNotFound, "helper object not found", obj)
	}
	objBody, ok := blockAt(js, loc[1]-1)
	if !ok {
		return nil, NewError(ErrCodeTransformNotFound, "helper object is not terminated", obj)
	}

	ops := make(map[string]opKind)
	for _, fm := range helperFnRe.FindAllStringSubmatch(objBody, -1) {
		name, fbody := fm[1], fm[2]
		switch {
		case strings.Contains(fbody, ".reverse("):
			ops[name] = opReverse
		case strings.Contains(fbody, ".splice("):
			ops[name] = opSplice
		case strings.Contains(fbody, "%") && strings.Contains(fbody, ".length]"):
			ops[name] = opSwap
		}
	}
	if len(ops) == 0 {
		return nil, NewError(ErrCodeTransformNotFound, "helper object has no known transforms", obj)
	}
	return ops, nil
}

// blockAt returns the text between the brace at open and its match.
func blockAt(s string, open int) (string, bool) {
	if open < 0 || open >= len(s) || s[open] != '{' {
		return "", false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[open+1 : i], true
			}
		}
	}
	return "", false
}

func reverseRunes(s []rune) []rune {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}

func spliceRunes(s []rune, n int) []rune {
	if n < 0 || n > len(s) {
		return s
	}
	return s[n:]
}

func swapRunes(s []rune, n int) []rune {
	if len(s) <= 1 {
		return s
	}
	n = n % len(s)
	if n < 0 {
		n += len(s)
	}
	s[0], s[n] = s[n], s[0]
	return s
}

// describe is used in log fields.
func describe(p plan) string {
	return fmt.Sprintf("%d steps [%s]", len(p), p)
}
