package generator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	CategoryBody = "body"
	CategoryMind = "mind"
	CategoryWork = "work"
)

// NormalizeCategory maps a category name or alias onto body, mind or work.
// Unknown names return "".
func NormalizeCategory(category string) string {
	name := strings.ToLower(strings.TrimSpace(category))
	if cat, ok := categoryAliases[name]; ok {
		return cat
	}
	return ""
}

// InferCategory picks a category for free text. An explicit hint wins;
// otherwise the text is matched against keywords in table order. A keyword
// must start a word, so "run" matches "running" but not "brunch".
// It returns "" when nothing matches.
func InferCategory(hint, text string) string {
	if cat := NormalizeCategory(hint); cat != "" {
		return cat
	}

	lower := strings.ToLower(text)
	if lower == "" {
		return ""
	}
	for _, kw := range categoryKeywords {
		if hasWordPrefix(lower, kw.keyword) {
			return kw.category
		}
	}
	return ""
}

func hasWordPrefix(text, keyword string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], keyword)
		if i < 0 {
			return false
		}
		i += offset
		if i == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:i])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		offset = i + len(keyword)
	}
	return false
}

var categoryAliases = map[string]string{
	"body":     CategoryBody,
	"health":   CategoryBody,
	"fitness":  CategoryBody,
	"corpo":    CategoryBody,
	"saude":    CategoryBody,
	"saúde":    CategoryBody,
	"mind":     CategoryMind,
	"learning": CategoryMind,
	"study":    CategoryMind,
	"mente":    CategoryMind,
	"estudo":   CategoryMind,
	"work":     CategoryWork,
	"career":   CategoryWork,
	"project":  CategoryWork,
	"trabalho": CategoryWork,
	"carreira": CategoryWork,
}

var categoryKeywords = []struct {
	keyword  string
	category string
}{
	// Longer phrases first so they win over their parts.
	{"lose weight", CategoryBody},
	{"perder peso", CategoryBody},
	{"side project", CategoryWork},
	{"job interview", CategoryWork},

	// Body
	{"run", CategoryBody},
	{"correr", CategoryBody},
	{"corrida", CategoryBody},
	{"gym", CategoryBody},
	{"academia", CategoryBody},
	{"workout", CategoryBody},
	{"treino", CategoryBody},
	{"exercise", CategoryBody},
	{"exercício", CategoryBody},
	{"diet", CategoryBody},
	{"dieta", CategoryBody},
	{"sleep", CategoryBody},
	{"dormir", CategoryBody},
	{"yoga", CategoryBody},
	{"swim", CategoryBody},
	{"nadar", CategoryBody},
	{"walk", CategoryBody},
	{"caminhar", CategoryBody},
	{"stretch", CategoryBody},
	{"alongar", CategoryBody},

	// Mind
	{"learn", CategoryMind},
	{"aprender", CategoryMind},
	{"read", CategoryMind},
	{"ler", CategoryMind},
	{"livro", CategoryMind},
	{"book", CategoryMind},
	{"meditat", CategoryMind},
	{"medita", CategoryMind},
	{"language", CategoryMind},
	{"idioma", CategoryMind},
	{"inglês", CategoryMind},
	{"english", CategoryMind},
	{"guitar", CategoryMind},
	{"violão", CategoryMind},
	{"piano", CategoryMind},
	{"journal", CategoryMind},
	{"diário", CategoryMind},

	// Work
	{"website", CategoryWork},
	{"site", CategoryWork},
	{"app", CategoryWork},
	{"code", CategoryWork},
	{"codar", CategoryWork},
	{"program", CategoryWork},
	{"portfolio", CategoryWork},
	{"portfólio", CategoryWork},
	{"resume", CategoryWork},
	{"currículo", CategoryWork},
	{"business", CategoryWork},
	{"negócio", CategoryWork},
	{"client", CategoryWork},
	{"cliente", CategoryWork},
	{"report", CategoryWork},
	{"relatório", CategoryWork},
	{"project", CategoryWork},
	{"projeto", CategoryWork},
}
