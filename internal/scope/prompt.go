// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scope

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/pkg/types"
)

// now is replaced in tests to pin the date embedded in prompts.
var now = time.Now

// todayLayout renders dates like "Fri Oct 17, 2026".
const todayLayout = "Mon Jan 2, 2006"

// promptData feeds the scoping templates.
type promptData struct {
	Messages string
	Today    string
}

var clarifyPromptTmpl = template.Must(template.New("clarify").Parse(`Below is the conversation so far with a user who wants a research report.
<Messages>
{{.Messages}}
</Messages>

Today's date is {{.Today}}.

Decide whether you must ask the user a clarifying question or whether you already know enough to begin the research. If the history shows you have already asked a question, you should almost never ask another; do so only when the research would otherwise be impossible.

Ask about acronyms, abbreviations or terms you do not recognise. When you ask:
- keep it short but collect everything the research needs in one go
- use a bulleted or numbered list when there are several points
- never ask for something the user has already told you

When a question is needed set need_clarification to true, put the question in "question" and leave "verification" empty.

When no question is needed set need_clarification to false, leave "question" empty and write a short "verification" message that confirms you have enough to go on, restates the key points of the request in a sentence or two, and says research is starting now.`))

var briefPromptTmpl = template.Must(template.New("brief").Parse(`Below is the conversation so far between you and a user.
<Messages>
{{.Messages}}
</Messages>

Today's date is {{.Today}}.

Turn this conversation into one detailed, concrete research question that will steer the rest of the research.

Guidelines:
1. Be specific. Carry over every preference and detail the user gave and name the attributes or dimensions worth examining.
2. Treat dimensions the user did not mention as open. If quality research needs them, say they are open considerations ("consider every price range unless a budget is given") rather than inventing a preference.
3. Do not assume. Never add constraints or requirements the user did not state, and call out any detail that is missing.
4. Keep scope and preferences apart. The scope (what to investigate) may be broader than what the user said; the preferences (hard constraints) must be exactly what the user said.
5. Write in the first person, as if the user were asking.
6. If particular sources should be favoured, name them.`))

func renderPrompt(tmpl *template.Template, conv types.Conversation) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, promptData{
		Messages: conv.Format(),
		Today:    now().Format(todayLayout),
	})
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

var decisionSchema = llm.Schema{
	Name:        "ClarificationDecision",
	Description: "whether the user must be asked a question before research starts",
	Example:     `{"need_clarification": true, "question": "Which city are you interested in?", "verification": ""}`,
}

var briefSchema = llm.Schema{
	Name:        "ResearchBrief",
	Description: "the research question that guides every investigation",
	Example:     `{"research_brief": "I want to find ..."}`,
}
