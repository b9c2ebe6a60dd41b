package diagnostics

import (
	"fmt"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/chapterwatch/antibot"
)

// digestBase resolves relative links in digests; dumps carry no source URL.
var digestBase, _ = nurl.Parse("https://diagnostics.invalid/")

// maxDigestBody caps the Markdown body of a digest.
const maxDigestBody = 16 << 10

func newDigestConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
}

// digest summarizes a blocked page: header, detected marker, readable text.
func (s *FileSink) digest(engine, series, markup string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", series, engine)
	fmt.Fprintf(&b, "- bytes: %d\n", len(markup))
	fmt.Fprintf(&b, "- structure: %016x\n", StructureFingerprint(markup))
	if marker, ok := antibot.Match(markup); ok {
		fmt.Fprintf(&b, "- marker: %q\n", marker)
	}

	content := markup
	if article, err := readability.FromReader(strings.NewReader(markup), digestBase); err == nil {
		if article.Title != "" {
			fmt.Fprintf(&b, "- title: %s\n", article.Title)
		}
		if strings.TrimSpace(article.TextContent) != "" {
			content = article.Content
		}
	}
	b.WriteString("\n")

	conv := s.conv
	if conv == nil {
		conv = newDigestConverter()
	}
	md, err := conv.ConvertString(content)
	if err != nil {
		md = "(markdown conversion failed: " + err.Error() + ")"
	}
	if len(md) > maxDigestBody {
		md = md[:maxDigestBody] + "\n\n[truncated]"
	}
	b.WriteString(md)
	b.WriteString("\n")
	return b.String()
}
