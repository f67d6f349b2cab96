package questions

import (
	"fmt"
	"strings"

	"github.com/fleecekm/fleeceqa/internal/store"
)

// FactProvider derives the grounding text for a paragraph. The context
// locates the paragraph in its article; the fact is the context followed
// by the paragraph text.
type FactProvider interface {
	Derive(p store.Paragraph) (context, fact string)
}

// HierarchyFacts builds context from the page and section names.
type HierarchyFacts struct{}

// Derive implements FactProvider.
func (HierarchyFacts) Derive(p store.Paragraph) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "In an article about '%s'", p.PageName)
	if p.SectionName != "" {
		fmt.Fprintf(&b, ", section '%s'", p.SectionName)
		if p.SubsectionName != "" {
			fmt.Fprintf(&b, ", subsection '%s'", p.SubsectionName)
			if p.SubsubsectionName != "" {
				fmt.Fprintf(&b, ", paragraph '%s'", p.SubsubsectionName)
			}
		}
	}
	context := b.String()

	text := p.TextCleaned
	if strings.TrimSpace(text) == "" {
		text = p.Text
	}
	return context, context + ", it mentioned: " + strings.TrimSpace(text)
}
