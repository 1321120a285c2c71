// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation numbers the sources a research run cites and keeps inline
// [n] markers consistent with the trailing Sources list. Compression prompts
// receive a pre-numbered Catalog; model output is passed through Renumber so
// that markers run 1..N in order of first appearance with one number per URL.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Catalog assigns stable numbers to unique source URLs in the order they are
// first added. The zero value is ready to use.
type Catalog struct {
	sources []types.Source
	index   map[string]int
}

// Add records src and returns its 1-based number. A URL already in the
// catalog keeps its first number. Sources without a URL are ignored and
// return 0.
func (c *Catalog) Add(src types.Source) int {
	key := normalizeURL(src.URL)
	if key == "" {
		return 0
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if n, ok := c.index[key]; ok {
		return n
	}
	c.sources = append(c.sources, src)
	n := len(c.sources)
	c.index[key] = n
	return n
}

// AddAll records every source of every finding in finding order.
func (c *Catalog) AddAll(findings []types.RawFinding) {
	for _, f := range findings {
		for _, s := range f.Sources {
			c.Add(s)
		}
	}
}

// Len returns the number of unique sources.
func (c *Catalog) Len() int { return len(c.sources) }

// Sources returns the catalogued sources; index i holds number i+1.
func (c *Catalog) Sources() []types.Source {
	return append([]types.Source(nil), c.sources...)
}

// String renders the catalog as "[n] Title: URL" lines.
func (c *Catalog) String() string {
	var b strings.Builder
	for i, s := range c.sources {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = s.URL
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, title, s.URL)
	}
	return b.String()
}

var (
	// markerRe matches inline markers such as [3] or [1, 4]. Candidates are
	// filtered by findMarkers.
	markerRe = regexp.MustCompile(`\[(\d{1,3}(?:\s*,\s*\d{1,3})*)\]`)

	// sourcesHeadingRe matches the heading that opens the source list.
	sourcesHeadingRe = regexp.MustCompile(`(?i)^#{1,6}\s*(?:sources|references)\s*:?\s*$`)

	// entryRe matches one source list line: "[1] Title: URL", "- [1] ..." or "1. ...".
	entryRe = regexp.MustCompile(`^\s*(?:[-*]\s*)?(?:\[(\d+)\]|(\d+)\.)\s*(.*)$`)

	urlRe = regexp.MustCompile(`https?://[^\s)\]>]+`)
)

// entry is one parsed line of a Sources section.
type entry struct {
	number int
	text   string
	url    string
}

// marker is one accepted inline citation in a body.
type marker struct {
	start, end int
	nums       []int
}

// findMarkers returns the citation markers of body. A bracketed number
// directly after a word character is an index such as arr[2], not a
// citation; neither is a marker containing 0. A marker may follow another
// accepted marker, as in [2][4].
func findMarkers(body string) []marker {
	var out []marker
	lastEnd := -1
	for _, loc := range markerRe.FindAllStringSubmatchIndex(body, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && start != lastEnd && isWordOrBracket(body[start-1]) {
			continue
		}
		var nums []int
		for _, part := range strings.Split(body[loc[2]:loc[3]], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n == 0 {
				nums = nil
				break
			}
			nums = append(nums, n)
		}
		if nums == nil {
			continue
		}
		out = append(out, marker{start: start, end: end, nums: nums})
		lastEnd = end
	}
	return out
}

func isWordOrBracket(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == ']':
		return true
	}
	return false
}

// replaceMarkers rewrites every marker of body with repl. When repl
// returns "" the marker is dropped together with one preceding space.
func replaceMarkers(body string, repl func(nums []int) string) string {
	var b []byte
	prev := 0
	for _, m := range findMarkers(body) {
		b = append(b, body[prev:m.start]...)
		r := repl(m.nums)
		if r == "" && len(b) > 0 && b[len(b)-1] == ' ' {
			b = b[:len(b)-1]
		}
		b = append(b, r...)
		prev = m.end
	}
	b = append(b, body[prev:]...)
	return string(b)
}

// Renumber rewrites text so its citation markers are numbered 1..N in order
// of first appearance in the body. Entries of a Sources section that share
// a URL are merged into one number, and the section is rewritten to list
// every entry once, sequentially. Sources that are never cited follow the
// cited ones. When a Sources section exists, body markers without a list
// entry are dropped so the list stays gapless; use Unresolved on the input
// to report them. Text without any markers or Sources section is returned
// unchanged.
func Renumber(text string) string {
	body, heading, entries, tail := splitSources(text)

	byNumber := make(map[int]entry, len(entries))
	for _, e := range entries {
		if _, dup := byNumber[e.number]; !dup {
			byNumber[e.number] = e
		}
	}

	// keyOf maps an old number to its identity: the URL when known.
	keyOf := func(n int) string {
		if e, ok := byNumber[n]; ok && e.url != "" {
			return "url:" + normalizeURL(e.url)
		}
		return "n:" + strconv.Itoa(n)
	}

	assigned := make(map[string]int)
	var order []string
	firstEntry := make(map[string]entry)
	assign := func(old int) int {
		if heading != "" {
			if _, listed := byNumber[old]; !listed {
				return 0
			}
		}
		key := keyOf(old)
		if n, ok := assigned[key]; ok {
			return n
		}
		order = append(order, key)
		n := len(order)
		assigned[key] = n
		if e, ok := byNumber[old]; ok {
			firstEntry[key] = e
		}
		return n
	}

	newBody := replaceMarkers(body, func(olds []int) string {
		var nums []string
		seen := make(map[int]bool)
		for _, old := range olds {
			n := assign(old)
			if n == 0 || seen[n] {
				continue
			}
			seen[n] = true
			nums = append(nums, strconv.Itoa(n))
		}
		if len(nums) == 0 {
			return ""
		}
		return "[" + strings.Join(nums, ", ") + "]"
	})

	if heading == "" {
		return newBody
	}

	for _, e := range entries {
		key := keyOf(e.number)
		if _, ok := assigned[key]; !ok {
			assign(e.number)
		} else if _, ok := firstEntry[key]; !ok {
			firstEntry[key] = e
		}
	}

	var b strings.Builder
	if trimmed := strings.TrimRight(newBody, "\n"); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteString("\n\n")
	}
	b.WriteString(heading)
	b.WriteString("\n\n")
	for i, key := range order {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, firstEntry[key].text)
	}
	if tail != "" {
		b.WriteByte('\n')
		b.WriteString(tail)
	}
	return b.String()
}

// Unresolved returns the marker numbers cited in the body that have no
// entry in the Sources section, ascending and without duplicates.
func Unresolved(text string) []int {
	body, _, entries, _ := splitSources(text)
	listed := make(map[int]bool, len(entries))
	for _, e := range entries {
		listed[e.number] = true
	}

	seen := make(map[int]bool)
	var missing []int
	for _, m := range findMarkers(body) {
		for _, n := range m.nums {
			if listed[n] || seen[n] {
				continue
			}
			seen[n] = true
			missing = append(missing, n)
		}
	}
	sort.Ints(missing)
	return missing
}

// splitSources separates the body from the Sources section. The section
// runs from its heading to the next heading or the end of text.
func splitSources(text string) (body, heading string, entries []entry, tail string) {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if sourcesHeadingRe.MatchString(strings.TrimSpace(line)) {
			start = i
		}
	}
	if start < 0 {
		return text, "", nil, ""
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "#") {
			end = i
			break
		}
	}

	for _, line := range lines[start+1 : end] {
		m := entryRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num := m[1]
		if num == "" {
			num = m[2]
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		rest := strings.TrimSpace(m[3])
		entries = append(entries, entry{number: n, text: rest, url: urlRe.FindString(rest)})
	}

	body = strings.Join(lines[:start], "\n")
	heading = strings.TrimSpace(lines[start])
	tail = strings.Join(lines[end:], "\n")
	return body, heading, entries, tail
}

// normalizeURL makes trivially different spellings of a URL compare equal.
func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimRight(u, "/.,;")
	return strings.ToLower(u)
}
