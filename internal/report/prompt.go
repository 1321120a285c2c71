// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// now is replaced in tests to pin the date embedded in the prompt.
var now = time.Now

var findingSeparator = "\n\n" + strings.Repeat("=", 80) + "\n\n"

// reportPromptTmpl asks for the final markdown report.
var reportPromptTmpl = template.Must(template.New("report").Parse(`Write a comprehensive research report answering the research brief below, using only the findings gathered by the research team. Today's date is {{.Today}}.

<Research Brief>
{{.Brief}}
</Research Brief>

<Findings>
{{.Findings}}
</Findings>

Guidelines:
- Write in the language of the research brief.
- Use markdown: a # title, ## sections, and ### subsections where they help. Prefer paragraphs to bullet lists.
- Organize by what the brief asks for. A comparison gets an overview, one section per option, and a comparison section. A ranked list can be a single section.
- Be thorough and specific; the reader expects a detailed answer, not an outline.
- Do not describe what you are doing or refer to yourself.

Citations:
- Cite claims inline with [n] markers that refer to numbered sources.
- Give each unique URL a single number and number sources sequentially from 1 without gaps.
- End with a "### Sources" section listing each source once as "[n] Title: URL".
`))

func renderPrompt(brief, findings string) (string, error) {
	var buf bytes.Buffer
	err := reportPromptTmpl.Execute(&buf, struct {
		Brief    string
		Findings string
		Today    string
	}{brief, findings, now().Format("Mon Jan 2, 2006")})
	if err != nil {
		return "", fmt.Errorf("rendering report prompt: %w", err)
	}
	return buf.String(), nil
}
