// Package text turns scraped post bodies into short plain-text previews.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/russross/blackfriday/v2"
)

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

// ConvertMarkdownToText renders the literal text of a markdown document,
// collapsing whitespace and dropping bare URLs.
func ConvertMarkdownToText(input string) string {
	md := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := md.Parse([]byte(input))

	var sb strings.Builder
	root.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		switch node.Type {
		case blackfriday.Text, blackfriday.Code:
			if entering {
				sb.Write(node.Literal)
			}
		case blackfriday.CodeBlock:
			sb.Write(node.Literal)
			sb.WriteByte(' ')
		case blackfriday.Image:
			// alt text is carried by child Text nodes; skip the URL
		case blackfriday.Softbreak, blackfriday.Hardbreak:
			sb.WriteByte(' ')
		case blackfriday.Paragraph, blackfriday.Heading, blackfriday.Item,
			blackfriday.TableCell, blackfriday.BlockQuote:
			if !entering {
				sb.WriteByte(' ')
			}
		}
		return blackfriday.GoToNext
	})

	plainText := strings.Join(strings.Fields(RemoveLinks(sb.String())), " ")
	return plainText
}

// Preview returns at most limit runes of the plain text, ending in an
// ellipsis when truncated.
func Preview(input string, limit int) string {
	plainText := ConvertMarkdownToText(input)
	if limit <= 0 || utf8.RuneCountInString(plainText) <= limit {
		return plainText
	}

	runes := []rune(plainText)
	cut := strings.TrimRight(string(runes[:limit]), " ")
	return cut + "…"
}
