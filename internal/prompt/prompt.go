package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/shiftlog-cli/internal/utils"
)

// Delimiters around the embedded digest.
const (
	DigestStart = "--- DATA SUMMARY ---"
	DigestEnd   = "--- END OF DATA SUMMARY ---"
	// NoQuestion is sent when the user asks nothing specific.
	NoQuestion = "none"
)

const persona = `You are a senior business intelligence and process optimization analyst for a cement plant.
Your task is to turn shift-log summaries into a decision-ready report for plant managers and technical leads.

Rules:
- Every section must add new information. Do not repeat the same finding in several sections; if an item recurs, analyse it from a different angle.
- Use specific figures from the data summary, always with counts (N) and percentages, and state the record total they are based on.
- Never invent money: no costs, prices or currency values of any kind.
- Do not fabricate metrics the summary does not support. When a value cannot be computed, write "no data".
- Use plain text and simple tables only. No links, no images.
- End each main section with one line "Confidence: High/Medium/Low".`

// Request is the input to Assemble.
type Request struct {
	Digest   string
	Sections []Section
	Question string
	// MaxOutputTokens is restated in the constraints block; zero omits the figure.
	MaxOutputTokens int
}

// Prompt is an assembled prompt with its token estimate.
type Prompt struct {
	Text   string
	Tokens int
	// Parts holds the persona, user and constraints blocks for token breakdowns.
	Parts map[string]string
}

// Assemble concatenates the persona, the user block with the digest, sections and
// question, and a closing constraints block.
func Assemble(req Request) (Prompt, error) {
	if strings.TrimSpace(req.Digest) == "" {
		return Prompt{}, errors.New("digest is empty")
	}
	sections := req.Sections
	if len(sections) == 0 {
		sections = DefaultSections()
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = NoQuestion
	}

	var user strings.Builder
	user.WriteString("[DATA]\n")
	user.WriteString("Below is the summary of the plant's shift records. Analyse it and write the requested report.\n")
	user.WriteString(DigestStart)
	user.WriteString("\n")
	user.WriteString(req.Digest)
	user.WriteString("\n")
	user.WriteString(DigestEnd)
	user.WriteString("\n\n[REQUESTED SECTIONS]\n")
	for i, s := range sections {
		fmt.Fprintf(&user, "%d. %s\n", i+1, s.Label)
	}
	user.WriteString("\n[USER QUESTION]\n")
	user.WriteString(question)
	user.WriteString("\n")

	c := constraints(req.MaxOutputTokens)

	var sb strings.Builder
	sb.WriteString("[SYSTEM]\n")
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	sb.WriteString(user.String())
	sb.WriteString("\n")
	sb.WriteString(c)

	text := sb.String()
	return Prompt{
		Text:   text,
		Tokens: utils.CountTokens(text),
		Parts: map[string]string{
			"persona":     persona,
			"user":        user.String(),
			"constraints": c,
		},
	}, nil
}

func constraints(maxTokens int) string {
	var sb strings.Builder
	sb.WriteString("[CONSTRAINTS]\n")
	sb.WriteString("1. Every percentage breakdown must sum to exactly 100%; write \"Total = 100%\" under it.\n")
	sb.WriteString("2. Never invent currency figures, prices or cost estimates.\n")
	sb.WriteString("3. Never leave template placeholders such as X, Y, [..] or N/A; write \"no data\" instead.\n")
	sb.WriteString("4. Action-plan recommendations may only address recurring issues seen within the last 12 months; if the summary is marked stale, say so and do not propose actions on it.\n")
	if maxTokens > 0 {
		fmt.Fprintf(&sb, "5. Keep the whole response within %d output tokens.\n", maxTokens)
	} else {
		sb.WriteString("5. Keep the whole response within the output token budget.\n")
	}
	return sb.String()
}
