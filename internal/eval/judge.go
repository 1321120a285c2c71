// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package eval

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

var judgePromptTmpl = template.Must(template.New("judge").Parse(`You are checking whether a research brief covers one expected point.

RESEARCH BRIEF:
{{.Brief}}

EXPECTED POINT:
{{.Point}}

Does the brief include this point, explicitly or implicitly?

Answer in exactly this format:
INCLUDED: yes/no
REASONING: <your reasoning>`))

const judgeUserMessage = "Evaluate the point"

var (
	includedRe  = regexp.MustCompile(`(?i)INCLUDED:\s*yes\b`)
	reasoningRe = regexp.MustCompile(`(?i)REASONING:`)
)

func renderJudgePrompt(brief, point string) (string, error) {
	var buf bytes.Buffer
	if err := judgePromptTmpl.Execute(&buf, struct{ Brief, Point string }{brief, point}); err != nil {
		return "", fmt.Errorf("rendering judge prompt: %w", err)
	}
	return buf.String(), nil
}

// ParseJudgement reads a judge reply. The point counts as included only when
// the reply says "INCLUDED: yes" in any letter case; anything else, including
// a reply without the line, is a no. reasoning is the trimmed text after the
// first "REASONING:", or empty.
func ParseJudgement(reply string) (included bool, reasoning string) {
	included = includedRe.MatchString(reply)
	if loc := reasoningRe.FindStringIndex(reply); loc != nil {
		reasoning = strings.TrimSpace(reply[loc[1]:])
	}
	return included, reasoning
}
