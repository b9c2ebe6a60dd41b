package extract

import "regexp"

var (
	// labeledText finds "Capítulo 12", "Cap. 12", "Chapter 12,5", "Ch.12",
	// "Episodio 3", "Episode 3" and "Ep. 3" in visible text.
	labeledText = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:cap(?:[íi]tulo)?\.?|ch(?:apter|\.)?|episod(?:e|io)|ep\.)\s*[:\-]?\s*(\d+(?:[.,]\d+)?)`)

	// labeledPath is the href form, where words and numbers are joined by
	// separators such as "/capitulo-12" or "chapter_12.5".
	labeledPath = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:cap(?:[íi]tulo)?|ch(?:apter)?|episod(?:e|io)|ep)[\s_\-/.=]*(\d+(?:[.,]\d+)?)`)

	// hashNumber is the "#12" shorthand some listings use.
	hashNumber = regexp.MustCompile(`#\s*(\d+(?:[.,]\d+)?)`)

	// chapterKeyword gates the bare-number fallback.
	chapterKeyword = regexp.MustCompile(`(?i)(?:chapter|cap[ií]tulo|episodio|episode|ep\.)`)

	// bareNumber matches stand-alone numbers of up to four integer digits.
	bareNumber = regexp.MustCompile(`\b(\d{1,4}(?:[.,]\d{1,2})?)\b`)
)

// firstMatch returns the first capture of the first pattern that matches s.
func firstMatch(s string, patterns ...*regexp.Regexp) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// allMatches returns every capture of re in s.
func allMatches(s string, re *regexp.Regexp) []string {
	found := re.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(found))
	for _, m := range found {
		out = append(out, m[1])
	}
	return out
}
