package notifier

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText はHTML本文からテキストのみを抽出する。
// HTMLを表示できないメールクライアント向けのtext/plainパートの生成に使用する。
// ブロック要素（p, br, tr）の区切りは改行に変換する。
func PlainText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// パースできないHTMLはそのまま返す（テキストとして扱う）
		return rawHTML
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "br", "tr":
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// 連続する改行を1つにまとめる
	lines := strings.Split(b.String(), "\n")
	var out []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
