package splitter

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter wraps the langchaingo text splitter
type TextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewRecursiveCharacterTextSplitter creates a new recursive character text splitter
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return &TextSplitter{splitter: ts}
}

// SplitText splits text into chunks
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	return ts.splitter.SplitText(text)
}

// Head keeps the first maxChunks chunks of text, joined by newline. Text that
// already fits is returned unchanged.
func (ts *TextSplitter) Head(text string, maxChunks int) (string, error) {
	if maxChunks <= 0 {
		return text, nil
	}
	chunks, err := ts.SplitText(text)
	if err != nil {
		return "", err
	}
	if len(chunks) <= maxChunks {
		return text, nil
	}
	return strings.Join(chunks[:maxChunks], "\n"), nil
}
