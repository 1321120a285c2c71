// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// now is replaced in tests to pin the date embedded in prompts.
var now = time.Now

func today() string { return now().Format("Mon Jan 2, 2006") }

var rule = strings.Repeat("=", 80)

// FallbackHeader prefixes the investigation answer when compression fails.
const FallbackHeader = "# Research Findings (Uncompressed)\n\n"

func researcherSystemPrompt(maxToolCalls int) string {
	return fmt.Sprintf(`You are a research assistant investigating the topic the user gives you. Today's date is %s.

<Task>
Gather information about the topic with the tools below, then answer it. You work in a loop: each reply is exactly one JSON object naming one action, and the result of that action comes back in the next message.
</Task>

<Tools>
Search the web:
{"tool": "search", "query": "<query>", "search_depth": "basic|advanced", "max_results": 1-10, "include_raw_content": false, "topic": "general|news"}

Record a reflection on what you have found and what is still missing:
{"tool": "think", "reflection": "<your notes>"}

Finish with your answer:
{"final_answer": "<a thorough answer that cites the URLs you found>"}

Reflect with "think" after every search.
</Tools>

<Approach>
Work like a researcher with limited time. Read the topic carefully, start with broad queries, check after each search whether you can answer, then narrow the search to fill the gaps. Stop once you can answer with confidence.
</Approach>

<Limits>
You have at most %d actions. Simple topics need two or three searches; complex ones up to five. Stop early when you can answer fully, when you have three or more relevant sources, or when your last two searches returned the same information.
</Limits>

Reply with the JSON object only.`, today(), maxToolCalls)
}

// budgetExhaustedPrompt forces the final answer once the action budget is spent.
const budgetExhaustedPrompt = `You have used all of your actions. Do not call any more tools. Reply now with {"final_answer": "..."} using only what you have already found.`

func compressionSystemPrompt() string {
	return fmt.Sprintf(`You are a research assistant who has just investigated a topic with several web searches. Clean up the findings without losing any relevant statement or source. Today's date is %s.

<Input>
You receive the topic, the list of queries that were run, the raw results of every search with their URLs, a numbered catalogue of the sources, and the researcher's own final analysis.
</Input>

<Filtering>
Keep every fact and every source taken from the search results. Leave out "Reflection recorded" notes; they are internal.
</Filtering>

<Rules>
1. Be comprehensive. Keep all information and all sources; restate facts as they appear rather than summarising them away.
2. Copy URLs exactly as they appear in the results.
3. Cite inline with [1], [2] and so on, using the numbers of the source catalogue.
4. Give each URL exactly one number, and number the sources 1, 2, 3 without gaps.
5. Never write "URL not provided"; every URL is in the raw results.
</Rules>

<Format>
**Queries Executed**
One line per search query.

**Findings**
The organised findings with inline citations.

### Sources
[1] Source Title: https://full.url/
[2] Source Title: https://full.url/
</Format>`, today())
}

// compressionContext lays out everything the compression call needs.
func compressionContext(topic string, findings []types.RawFinding, answer, catalogue string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RESEARCH TOPIC: %s\n", topic)

	fmt.Fprintf(&b, "\n%s\n\nSEARCH QUERIES EXECUTED:\n", rule)
	for i, f := range findings {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f.Query)
	}

	fmt.Fprintf(&b, "\n%s\n\nRAW SEARCH RESULTS WITH SOURCES:\n", rule)
	for i, f := range findings {
		fmt.Fprintf(&b, "\n--- SEARCH %d RESULTS ---\n%s\n", i+1, f.ResultText)
	}

	if catalogue != "" {
		fmt.Fprintf(&b, "\n%s\n\nSOURCE CATALOGUE:\n%s", rule, catalogue)
	}

	fmt.Fprintf(&b, "\n%s\n\nRESEARCHER'S FINAL ANALYSIS:\n%s\n", rule, answer)
	return b.String()
}
