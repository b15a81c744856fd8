// Package tokens simulates a generator producing Markdown token by token.
package tokens

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v7"
)

// Split cuts text into chunks of at most size runes, never splitting a rune.
// A size below one is treated as one.
func Split(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size < 1 {
		size = 1
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// Replay emits the accumulated text after each chunk of size runes, waiting
// interval between emissions. The channel closes after the full text is sent
// or when ctx ends.
func Replay(ctx context.Context, text string, size int, interval time.Duration) <-chan string {
	out := make(chan string)
	chunks := Split(text, size)

	go func() {
		defer close(out)

		var ticker *time.Ticker
		if interval > 0 {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}

		var acc strings.Builder
		for i, chunk := range chunks {
			if i > 0 && ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
			acc.WriteString(chunk)

			select {
			case <-ctx.Done():
				return
			case out <- acc.String():
			}
		}
	}()

	return out
}

// FakeDocument generates a deterministic Markdown document with the given
// number of paragraphs, interleaving headings, lists and code blocks.
func FakeDocument(paragraphs int, seed uint64) string {
	f := gofakeit.New(seed)

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title(f))
	b.WriteString("\n")

	for i := 0; i < paragraphs; i++ {
		b.WriteString("\n")
		switch {
		case i > 0 && i%7 == 0:
			b.WriteString("## ")
			b.WriteString(title(f))
			b.WriteString("\n\n")
		case i > 0 && i%5 == 0:
			for j := f.IntRange(2, 4); j > 0; j-- {
				b.WriteString("- ")
				b.WriteString(sentence(f, 3, 6))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		case i > 0 && i%11 == 0:
			b.WriteString("```go\n")
			b.WriteString(f.Noun())
			b.WriteString(" := ")
			b.WriteString(f.Verb())
			b.WriteString("()\n```\n\n")
		}
		b.WriteString(sentence(f, 8, 20))
		b.WriteString(" ")
		b.WriteString(sentence(f, 8, 20))
		b.WriteString("\n")
	}
	return b.String()
}

func title(f *gofakeit.Faker) string {
	t := f.Adjective() + " " + f.Noun()
	return strings.ToUpper(t[:1]) + t[1:]
}

func sentence(f *gofakeit.Faker, minWords, maxWords int) string {
	n := f.IntRange(minWords, maxWords)
	words := make([]string, n)
	for i := range words {
		switch i % 4 {
		case 0:
			words[i] = f.Adjective()
		case 1:
			words[i] = f.Noun()
		case 2:
			words[i] = f.Verb()
		default:
			words[i] = f.Word()
		}
	}
	if f.IntRange(0, 3) == 0 {
		words[n/2] = "**" + words[n/2] + "**"
	}
	s := strings.Join(words, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
