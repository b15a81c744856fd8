package render

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton)
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.Add("text/html", &html.Minifier{
			KeepEndTags: true,
			KeepQuotes:  true,
		})
	})
	return minifier
}

// minifyHTML removes unnecessary whitespace from an HTML fragment
func minifyHTML(htmlContent string) string {
	if !strings.Contains(htmlContent, "<") {
		return strings.Join(strings.Fields(htmlContent), " ")
	}

	minified, err := getMinifier().String("text/html", htmlContent)
	if err != nil {
		// If minification fails, fall back to original content
		return htmlContent
	}
	return minified
}
