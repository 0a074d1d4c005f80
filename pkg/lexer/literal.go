package lexer

import (
	"strconv"
	"strings"

	"github.com/raymyers/ccx64/pkg/ctypes"
	"modernc.org/mathutil"
)

// keywords is the set of identifiers reclassified by ConvertKeywords.
var keywords = map[string]bool{
	"return": true, "if": true, "else": true, "for": true, "while": true,
	"int": true, "sizeof": true, "char": true, "struct": true, "union": true,
	"short": true, "long": true, "void": true, "typedef": true, "_Bool": true,
	"enum": true, "static": true, "goto": true, "break": true, "continue": true,
	"switch": true, "case": true, "default": true, "extern": true,
	"_Alignof": true, "_Alignas": true, "do": true, "signed": true,
	"unsigned": true, "const": true, "volatile": true, "auto": true,
	"register": true, "restrict": true, "__restrict": true,
	"__restrict__": true, "_Noreturn": true, "float": true, "double": true,
	"inline": true, "__inline": true, "__builtin_reg_class": true,
}

// IsKeyword reports whether s is a C keyword
func IsKeyword(s string) bool {
	return keywords[s]
}

// ConvertKeywords reclassifies identifier tokens spelled as keywords.
func ConvertKeywords(toks []Token) {
	for i := range toks {
		if toks[i].Kind == Ident && keywords[toks[i].Text] {
			toks[i].Kind = Keyword
		}
	}
}

// ConvertPPTokens turns preprocessing numbers into typed numeric literals
// and reclassifies keywords.
func ConvertPPTokens(toks []Token) error {
	for i := range toks {
		if toks[i].Kind == PPNum {
			if err := ConvertNumber(&toks[i]); err != nil {
				return err
			}
		}
	}
	ConvertKeywords(toks)
	return nil
}

// ConvertNumber converts a PPNum token into a Num token.
func ConvertNumber(tok *Token) error {
	if tok.Kind == Num {
		return nil
	}
	if readIntLiteral(tok) {
		return nil
	}

	s := tok.Text
	ty := ctypes.Double()
	switch {
	case strings.HasSuffix(s, "f") || strings.HasSuffix(s, "F"):
		if !strings.HasPrefix(strings.ToLower(s), "0x") || strings.ContainsAny(s, "pP") {
			ty = ctypes.Float()
			s = s[:len(s)-1]
		}
	case strings.HasSuffix(s, "l") || strings.HasSuffix(s, "L"):
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !isRangeErr(err) {
		return tok.Errorf("invalid numeric constant")
	}
	tok.Kind = Num
	tok.FVal = v
	tok.Ty = ty
	return nil
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// readIntLiteral decodes an integer constant with an optional u/l/ll
// suffix. The type is the first of int, long (and their unsigned forms
// for non-decimal literals) that can represent the value.
func readIntLiteral(tok *Token) bool {
	s := tok.Text
	base := 10
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "0x") && len(s) > 2 && isHex(s[2]):
		base, s = 16, s[2:]
	case strings.HasPrefix(lower, "0b") && len(s) > 2 && (s[2] == '0' || s[2] == '1'):
		base, s = 2, s[2:]
	case s[0] == '0':
		base = 8
	}

	n := 0
	for n < len(s) && digitOK(s[n], base) {
		n++
	}
	digits, suffix := s[:n], s[n:]
	if digits == "" {
		return false
	}

	var l, u bool
	switch strings.ToLower(suffix) {
	case "":
	case "u":
		u = true
	case "l", "ll":
		l = true
	case "ul", "lu", "ull", "llu":
		l, u = true, true
	default:
		return false
	}

	val, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return false
	}

	bits := mathutil.BitLenUint64(val)
	var ty ctypes.Type
	if base == 10 {
		switch {
		case l && u:
			ty = ctypes.ULong()
		case l:
			ty = ctypes.Long()
		case u:
			ty = pick(bits > 32, ctypes.ULong(), ctypes.UInt())
		default:
			ty = pick(bits > 31, ctypes.Long(), ctypes.Int())
		}
	} else {
		switch {
		case l && u:
			ty = ctypes.ULong()
		case l:
			ty = pick(bits > 63, ctypes.ULong(), ctypes.Long())
		case u:
			ty = pick(bits > 32, ctypes.ULong(), ctypes.UInt())
		case bits > 63:
			ty = ctypes.ULong()
		case bits > 32:
			ty = ctypes.Long()
		case bits > 31:
			ty = ctypes.UInt()
		default:
			ty = ctypes.Int()
		}
	}

	tok.Kind = Num
	tok.Val = int64(val)
	tok.Ty = ty
	return true
}

func pick(cond bool, a, b ctypes.Type) ctypes.Type {
	if cond {
		return a
	}
	return b
}

func digitOK(c byte, base int) bool {
	switch base {
	case 2:
		return c == '0' || c == '1'
	case 8:
		return isOctal(c)
	case 16:
		return isHex(c)
	}
	return isDigit(c)
}
