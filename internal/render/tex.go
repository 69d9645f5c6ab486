// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// LATEX TO UNICODE
// =============================================================================

// ErrUnbalancedBraces is returned for math with mismatched { }.
var ErrUnbalancedBraces = errors.New("unbalanced braces in math")

var texSymbols = map[string]string{
	// Greek
	"alpha": "α", "beta": "β", "gamma": "γ", "delta": "δ", "epsilon": "ε",
	"varepsilon": "ε", "zeta": "ζ", "eta": "η", "theta": "θ", "vartheta": "ϑ",
	"iota": "ι", "kappa": "κ", "lambda": "λ", "mu": "μ", "nu": "ν", "xi": "ξ",
	"pi": "π", "rho": "ρ", "sigma": "σ", "tau": "τ", "upsilon": "υ", "phi": "φ",
	"varphi": "φ", "chi": "χ", "psi": "ψ", "omega": "ω",
	"Gamma": "Γ", "Delta": "Δ", "Theta": "Θ", "Lambda": "Λ", "Xi": "Ξ", "Pi": "Π",
	"Sigma": "Σ", "Phi": "Φ", "Psi": "Ψ", "Omega": "Ω",

	// Operators and relations
	"cdot": "·", "times": "×", "div": "÷", "pm": "±", "mp": "∓", "ast": "∗",
	"le": "≤", "leq": "≤", "ge": "≥", "geq": "≥", "ne": "≠", "neq": "≠",
	"approx": "≈", "equiv": "≡", "sim": "∼", "simeq": "≃", "propto": "∝",
	"ll": "≪", "gg": "≫", "circ": "∘", "oplus": "⊕", "otimes": "⊗",

	// Big operators and calculus
	"sum": "∑", "prod": "∏", "int": "∫", "iint": "∬", "oint": "∮",
	"partial": "∂", "nabla": "∇", "infty": "∞",

	// Arrows
	"to": "→", "rightarrow": "→", "leftarrow": "←", "gets": "←",
	"Rightarrow": "⇒", "Leftarrow": "⇐", "leftrightarrow": "↔",
	"Leftrightarrow": "⇔", "iff": "⇔", "implies": "⇒", "mapsto": "↦",

	// Sets and logic
	"in": "∈", "notin": "∉", "ni": "∋", "subset": "⊂", "subseteq": "⊆",
	"supset": "⊃", "supseteq": "⊇", "cup": "∪", "cap": "∩", "setminus": "∖",
	"emptyset": "∅", "varnothing": "∅", "forall": "∀", "exists": "∃",
	"neg": "¬", "lnot": "¬", "land": "∧", "wedge": "∧", "lor": "∨", "vee": "∨",

	// Misc
	"ldots": "…", "dots": "…", "cdots": "⋯", "vdots": "⋮", "ddots": "⋱",
	"angle": "∠", "degree": "°", "hbar": "ℏ", "ell": "ℓ", "Re": "ℜ", "Im": "ℑ",
	"langle": "⟨", "rangle": "⟩", "lfloor": "⌊", "rfloor": "⌋",
	"lceil": "⌈", "rceil": "⌉", "mid": "|", "vert": "|", "Vert": "‖",
	"prime": "′", "quad": "  ", "qquad": "    ",

	// Named functions render upright as their name
	"sin": "sin", "cos": "cos", "tan": "tan", "log": "log", "ln": "ln",
	"exp": "exp", "lim": "lim", "max": "max", "min": "min", "det": "det",
	"arg": "arg", "sup": "sup", "inf": "inf",
}

// Commands whose single argument is shown as-is.
var texTextCommands = map[string]bool{
	"text": true, "mathrm": true, "mathbf": true, "mathit": true,
	"mathsf": true, "mathtt": true, "mathcal": true, "mathbb": true,
	"operatorname": true, "textbf": true, "textit": true, "boldsymbol": true,
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴', '5': '⁵', '6': '⁶',
	'7': '⁷', '8': '⁸', '9': '⁹', '+': '⁺', '-': '⁻', '=': '⁼', '(': '⁽',
	')': '⁾', 'n': 'ⁿ', 'i': 'ⁱ', 'T': 'ᵀ', 'k': 'ᵏ', 'x': 'ˣ', '′': '′',
}

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄', '5': '₅', '6': '₆',
	'7': '₇', '8': '₈', '9': '₉', '+': '₊', '-': '₋', '=': '₌', '(': '₍',
	')': '₎', 'a': 'ₐ', 'e': 'ₑ', 'o': 'ₒ', 'x': 'ₓ', 'i': 'ᵢ', 'j': 'ⱼ',
	'k': 'ₖ', 'n': 'ₙ', 'm': 'ₘ', 't': 'ₜ', 'r': 'ᵣ', 's': 'ₛ', 'p': 'ₚ',
	'l': 'ₗ', 'h': 'ₕ', 'u': 'ᵤ', 'v': 'ᵥ',
}

// ToUnicode converts a LaTeX math body to a plain Unicode approximation.
// Unknown commands are kept with their backslash.
func ToUnicode(body string) (string, error) {
	c := &texConverter{src: body}
	out, err := c.sequence(false)
	if err != nil {
		return "", err
	}
	return out, nil
}

type texConverter struct {
	src string
	pos int
}

func (c *texConverter) eof() bool { return c.pos >= len(c.src) }

func (c *texConverter) peek() byte { return c.src[c.pos] }

// sequence converts until end of input, or until the closing brace when
// inGroup is set.
func (c *texConverter) sequence(inGroup bool) (string, error) {
	var b strings.Builder
	for !c.eof() {
		ch := c.peek()
		switch ch {
		case '}':
			if !inGroup {
				return "", ErrUnbalancedBraces
			}
			c.pos++
			return b.String(), nil
		case '{':
			c.pos++
			inner, err := c.sequence(true)
			if err != nil {
				return "", err
			}
			b.WriteString(inner)
		case '^', '_':
			c.pos++
			arg, err := c.argument()
			if err != nil {
				return "", err
			}
			b.WriteString(script(arg, ch == '^'))
		case '\\':
			s, err := c.command()
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case '&':
			c.pos++
			b.WriteByte(' ')
		case '~':
			c.pos++
			b.WriteByte(' ')
		default:
			r, size := utf8.DecodeRuneInString(c.src[c.pos:])
			c.pos += size
			b.WriteRune(r)
		}
	}
	if inGroup {
		return "", ErrUnbalancedBraces
	}
	return b.String(), nil
}

// argument reads a braced group, a command or a single character.
func (c *texConverter) argument() (string, error) {
	for !c.eof() && c.peek() == ' ' {
		c.pos++
	}
	if c.eof() {
		return "", nil
	}
	switch c.peek() {
	case '{':
		c.pos++
		return c.sequence(true)
	case '\\':
		return c.command()
	case '}':
		return "", ErrUnbalancedBraces
	}
	r, size := utf8.DecodeRuneInString(c.src[c.pos:])
	c.pos += size
	return string(r), nil
}

func (c *texConverter) command() (string, error) {
	c.pos++ // backslash
	if c.eof() {
		return "\\", nil
	}

	start := c.pos
	for !c.eof() && isASCIILetter(c.peek()) {
		c.pos++
	}
	if c.pos == start {
		// Single-character control symbol.
		ch := c.peek()
		c.pos++
		switch ch {
		case ',', ':', ';', ' ':
			return " ", nil
		case '!':
			return "", nil
		case '\\':
			return "; ", nil
		default:
			return string(ch), nil
		}
	}
	name := c.src[start:c.pos]

	if sym, ok := texSymbols[name]; ok {
		return sym, nil
	}
	if texTextCommands[name] {
		return c.argument()
	}

	switch name {
	case "frac", "dfrac", "tfrac":
		num, err := c.argument()
		if err != nil {
			return "", err
		}
		den, err := c.argument()
		if err != nil {
			return "", err
		}
		return wrap(num) + "/" + wrap(den), nil
	case "sqrt":
		index := ""
		if !c.eof() && c.peek() == '[' {
			end := strings.IndexByte(c.src[c.pos:], ']')
			if end < 0 {
				return "", errors.New("unterminated sqrt index")
			}
			index = c.src[c.pos+1 : c.pos+end]
			c.pos += end + 1
		}
		arg, err := c.argument()
		if err != nil {
			return "", err
		}
		return script(index, true) + "√" + wrap(arg), nil
	case "left", "right", "big", "Big", "bigl", "bigr", "Bigl", "Bigr", "displaystyle":
		// The delimiter that follows is emitted on its own; a "." means none.
		if !c.eof() && c.peek() == '.' {
			c.pos++
		}
		return "", nil
	case "hat", "bar", "vec", "tilde", "dot", "overline":
		arg, err := c.argument()
		if err != nil {
			return "", err
		}
		return arg + accents[name], nil
	}
	return "\\" + name, nil
}

var accents = map[string]string{
	"hat": "̂", "bar": "̄", "overline": "̅", "vec": "⃗",
	"tilde": "̃", "dot": "̇",
}

// script renders s as a superscript or subscript, falling back to ^(s)
// when a character has no Unicode script form.
func script(s string, super bool) string {
	if s == "" {
		return ""
	}
	table, marker := subscripts, "_"
	if super {
		table, marker = superscripts, "^"
	}

	var b strings.Builder
	for _, r := range s {
		m, ok := table[r]
		if !ok {
			return marker + wrap(s)
		}
		b.WriteRune(m)
	}
	return b.String()
}

// wrap parenthesises multi-character operands.
func wrap(s string) string {
	if utf8.RuneCountInString(s) <= 1 || isAlnum(s) {
		return s
	}
	return "(" + s + ")"
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
