package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxArticleSize = 4 << 20

// ArticleFetcher downloads a page and reduces it to its paragraph text.
type ArticleFetcher struct {
	client *http.Client
}

func NewArticleFetcher(timeout time.Duration) *ArticleFetcher {
	return &ArticleFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *ArticleFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return ArticleText(io.LimitReader(resp.Body, maxArticleSize))
}

// ArticleText joins the text of every <p> inside <div id="article">, or of
// every <p> in the document when there is no such div.
func ArticleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	root := doc
	if article := findArticle(doc); article != nil {
		root = article
	}
	var paragraphs []string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "p" {
			if t := strings.Join(strings.Fields(nodeText(n)), " "); t != "" {
				paragraphs = append(paragraphs, t)
			}
			return false
		}
		return true
	})
	return strings.Join(paragraphs, " "), nil
}

func findArticle(n *html.Node) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && c.Data == "div" {
			for _, a := range c.Attr {
				if a.Key == "id" && a.Val == "article" {
					found = c
					return false
				}
			}
		}
		return true
	})
	return found
}

// walk visits n depth-first, descending into children while visit returns true.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		}
		return true
	})
	return sb.String()
}
