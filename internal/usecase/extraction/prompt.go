package extraction

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const systemPrompt = "You extract structured information from meeting transcripts."

// stricterInstruction is appended on the retry after unparseable output.
const stricterInstruction = "\n\nIMPORTANT: Respond with ONLY the JSON object. " +
	"No markdown fences, no commentary, no text before or after the JSON."

// PromptContext is the retrieval context woven into the extraction prompt:
// excerpts from past meetings and the team's currently open ticket keys.
type PromptContext struct {
	MemoryExcerpts []string
	OpenTicketKeys []string
}

// BuildPrompt renders the extraction request for one transcript. The shape
// keys mirror what the schema validator expects back.
func BuildPrompt(transcript string, pctx PromptContext, maxBytes int) string {
	if maxBytes > 0 && len(transcript) > maxBytes {
		// Back off to a rune start so the cut never produces invalid UTF-8.
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(transcript[cut]) {
			cut--
		}
		transcript = transcript[:cut]
	}

	var b strings.Builder
	b.WriteString("Analyze this meeting transcript and extract:\n")
	b.WriteString("1. Action items with assignees\n")
	b.WriteString("2. Ticket updates (status changes, story point estimates, comments)\n")
	b.WriteString("3. Blockers mentioned\n")
	b.WriteString("4. Important decisions made\n")
	b.WriteString("5. Low-confidence mentions you are unsure about (vague assignee, unresolved ticket reference)\n\n")

	if len(pctx.OpenTicketKeys) > 0 {
		b.WriteString("Currently open tickets: ")
		b.WriteString(strings.Join(pctx.OpenTicketKeys, ", "))
		b.WriteString("\nPrefer these keys when a ticket is referenced indirectly.\n\n")
	}

	if len(pctx.MemoryExcerpts) > 0 {
		b.WriteString("Context from recent meetings:\n")
		for _, excerpt := range pctx.MemoryExcerpts {
			fmt.Fprintf(&b, "- %s\n", excerpt)
		}
		b.WriteString("\n")
	}

	b.WriteString("Meeting transcript:\n")
	b.WriteString(transcript)
	b.WriteString("\n\n")

	b.WriteString("Format the response as JSON with these keys:\n")
	b.WriteString(`- action_items: list of {"task": "...", "assignee": "...", "due_date": "YYYY-MM-DD or empty", "ticket": "KEY-123 or empty"}` + "\n")
	b.WriteString(`- ticket_updates: list of {"ticket_key": "...", "status": "...", "story_points": N or null, "assignee": "...", "comment": "..."}` + "\n")
	b.WriteString(`- blockers: list of {"description": "...", "for_ticket": "...", "mentioned_by": "..."}` + "\n")
	b.WriteString(`- decisions: list of {"topic": "...", "decision": "...", "ticket": "..."}` + "\n")
	b.WriteString(`- low_confidence: list of {"text": "...", "reason": "..."}` + "\n")

	return b.String()
}
