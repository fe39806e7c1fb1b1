package tools

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	markupTagPattern  = regexp.MustCompile(`<[^>]*>`)
	multiSpacePattern = regexp.MustCompile(`[ \t]{2,}`)
	multiBreakPattern = regexp.MustCompile(`\n{3,}`)
)

// SanitizeUserText 入库和送模型前的统一清洗：
// 去掉标签类标记和不可见控制字符，压缩多余空白
func SanitizeUserText(text string) string {
	text = markupTagPattern.ReplaceAllString(text, "")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := multiSpacePattern.ReplaceAllString(b.String(), " ")
	cleaned = multiBreakPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
