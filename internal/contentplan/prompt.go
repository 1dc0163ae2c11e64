package contentplan

import (
	"fmt"
	"strings"

	"cmo/internal/domain"
)

const synthesisSystemPrompt = `You are the CMO of a developer-tools SaaS company planning the next content sprint.
You receive marketing data gathered from several sources. Rank content ideas by expected impact, favouring ideas backed by the data.
Answer only with JSON of the form:
{"ideas":[{"title":"...","angle":"...","format":"blog|guide|comparison|refresh|social","targetKeyword":"...","priority":"high|medium|low","rationale":"...","dataSources":["..."]}]}
Use "refresh" for ideas that update an existing post. List in dataSources the section titles that support each idea.`

// FallbackPrompt is sent when no source returned any data.
func FallbackPrompt(topic string, language string, maxIdeas int) string {
	var sb strings.Builder
	sb.WriteString("No analytics, community or content data was available for this request.\n")
	if topic != "" {
		fmt.Fprintf(&sb, "Propose %d content ideas about %q based on general knowledge of what developer audiences search for and discuss.\n", maxIdeas, topic)
	} else {
		fmt.Fprintf(&sb, "Propose %d content ideas for a developer-tools blog based on general knowledge of what developer audiences search for and discuss.\n", maxIdeas)
	}
	sb.WriteString("Leave dataSources empty for every idea.\n")
	fmt.Fprintf(&sb, "Write titles and angles in %s.", language)
	return sb.String()
}

func dataPrompt(req Request, r domain.DateRange, body string) string {
	var sb strings.Builder
	if req.Topic != "" {
		fmt.Fprintf(&sb, "Topic: %s\n", req.Topic)
	}
	fmt.Fprintf(&sb, "Analytics period: %s to %s\n\n", r.StartDate(), r.EndDate())
	sb.WriteString(body)
	fmt.Fprintf(&sb, "\n\nUsing the data above, propose the %d most valuable content ideas, best first.", req.MaxIdeas)
	sb.WriteString(" Avoid topics the published posts already cover unless you propose a refresh.")
	fmt.Fprintf(&sb, "\nWrite titles and angles in %s.", req.Language)
	return sb.String()
}
