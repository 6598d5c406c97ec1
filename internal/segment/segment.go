package segment

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultChunkSize is the fallback chunk threshold, in runes, used when a
// text contains no chapter headings.
const DefaultChunkSize = 1000

// titleLimit caps synthesized titles for untitled chunks.
const titleLimit = 50

// Scene is one split unit: a chapter or a fixed-size chunk.
type Scene struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// headingPattern matches chapter heading lines: the CJK 第N章 form with
// digits or numeral words, and the English "Chapter N" form. Anchored at
// line start, the match covers the whole heading line.
var headingPattern = regexp.MustCompile(`(?m)^[ \t]*(?:第[0-9０-９一二三四五六七八九十百千万零〇两]+章|Chapter[ \t]+[0-9]+)[^\n]*`)

// Split divides text into scenes using the default chunk threshold.
func Split(text string) []Scene {
	return SplitSize(text, DefaultChunkSize)
}

// SplitSize divides text into scenes. When at least one chapter heading is
// present the text is split between headings and each heading line becomes
// the scene title. Otherwise the text is cut into chunks of roughly
// chunkSize runes, extended to the next line boundary so no line is split
// in the middle. Deterministic and pure.
func SplitSize(text string, chunkSize int) []Scene {
	// Decomposed input would throw off rune counts and heading matches, so
	// everything is normalized to NFC up front.
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	marks := headingPattern.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		return splitChunks(text, chunkSize)
	}

	var scenes []Scene
	if lead := strings.TrimSpace(text[:marks[0][0]]); lead != "" {
		scenes = append(scenes, Scene{Title: chunkTitle(lead), Content: lead})
	}
	for i, mark := range marks {
		title := strings.TrimSpace(text[mark[0]:mark[1]])
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		content := strings.TrimSpace(text[mark[1]:end])
		// A heading with no body still counts as a scene; the title alone
		// is enough to emit the entry.
		scenes = append(scenes, Scene{Title: title, Content: content})
	}
	return scenes
}

// splitChunks cuts text into chunks of at least chunkSize runes, each
// extended forward to the next newline so chunks end on line boundaries.
func splitChunks(text string, chunkSize int) []Scene {
	runes := []rune(text)
	var scenes []Scene
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			for end < len(runes) && runes[end] != '\n' {
				end++
			}
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			scenes = append(scenes, Scene{Title: chunkTitle(chunk), Content: chunk})
		}
		start = end + 1
	}
	return scenes
}

// chunkTitle synthesizes a title from the first runes of a chunk, with
// newlines flattened to spaces.
func chunkTitle(content string) string {
	flat := strings.ReplaceAll(content, "\n", " ")
	runes := []rune(flat)
	if len(runes) > titleLimit {
		runes = runes[:titleLimit]
	}
	return strings.TrimSpace(string(runes))
}
