package rag

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/newsrag/internal/domain"
)

// contextBlockMaxChars caps the article text inside one context block.
const contextBlockMaxChars = 500

// buildContext renders the ranked results as a numbered transcript of
// source blocks, the only article text the provider ever sees.
func buildContext(results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.Article.Title)
		fmt.Fprintf(&b, "Source: %s", r.Article.Source)
		if !r.Article.PublishedAt.IsZero() {
			fmt.Fprintf(&b, " (%s)", r.Article.PublishedAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "Similarity: %.3f\n", r.Similarity)
		b.WriteString(domain.TruncateChars(r.Article.ExcerptSource(), contextBlockMaxChars))
	}
	return b.String()
}

func buildAnswerPrompt(question, context string) string {
	var b strings.Builder
	b.WriteString("Use the following news articles to answer the question. ")
	b.WriteString("Base the answer only on the articles below and cite them by number. ")
	b.WriteString("Write 2-4 paragraphs.\n\n")
	b.WriteString("Articles:\n\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

func buildSummaryPrompt(text, context string) string {
	var b strings.Builder
	b.WriteString("Summarize the following text in 2-3 paragraphs.")
	if context != "" {
		b.WriteString(" Use the related articles below as background where they add relevant detail.")
	}
	b.WriteString("\n\nText:\n\n")
	b.WriteString(text)
	if context != "" {
		b.WriteString("\n\nRelated articles:\n\n")
		b.WriteString(context)
	}
	return b.String()
}
