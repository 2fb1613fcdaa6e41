package organizer

import (
	"regexp"
	"strings"
)

var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// Sign-off phrases that suggest the generator considers its answer done
// even when no explicit completion flag arrived yet.
var completionPhrases = []string{
	"let me know how",
	"should have seen",
	"completion indicator",
	"test worked",
	"streaming worked",
	"approach works",
	"let's try it",
}

// SplitParagraphs breaks text on blank lines and re-splits any paragraph
// exceeding maxLen on sentence boundaries, greedily repacking sentences into
// chunks of at most maxLen. A single sentence longer than maxLen is emitted
// unsplit. Empty chunks are dropped.
func SplitParagraphs(text string, maxLen int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxLen {
			out = append(out, para)
			continue
		}
		out = append(out, repackSentences(splitSentences(para), maxLen)...)
	}
	return out
}

// splitSentences cuts text after end-of-sentence punctuation followed by
// whitespace, keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	var out []string
	start := 0
	for _, loc := range locs {
		out = append(out, text[start:loc[0]+1])
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func repackSentences(sentences []string, maxLen int) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len() == 0 {
			current.WriteString(sentence)
			continue
		}
		if current.Len()+1+len(sentence) <= maxLen {
			current.WriteByte(' ')
			current.WriteString(sentence)
			continue
		}
		chunks = append(chunks, current.String())
		current.Reset()
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// LooksComplete reports whether the text ends in a way that matches a known
// sign-off phrase. Best-effort heuristic, never authoritative.
func LooksComplete(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range completionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
