package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"
)

// Usage is the provider's token accounting for one call.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd,omitempty"`
}

// Section is either free text or an ordered bullet list.
type Section struct {
	Name  string      `json:"name"`
	Kind  SectionKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Items []string    `json:"items,omitempty"`
}

// StructuredReport is built once per model response and not mutated afterwards.
type StructuredReport struct {
	Sections  []Section `json:"sections"`
	Text      string    `json:"text,omitempty"`
	Percents  []int     `json:"percents,omitempty"`
	Raw       string    `json:"raw"`
	Sanitized string    `json:"sanitized"`
	Usage     Usage     `json:"usage"`
}

// FromResponse sanitizes raw model output and parses it with p.
func FromResponse(p *Parser, raw string, usage Usage) *StructuredReport {
	if p == nil {
		p = defaultParser
	}
	r := p.Parse(Sanitize(raw))
	r.Raw = raw
	r.Usage = usage
	return r
}

// Section returns the named section.
func (r *StructuredReport) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Items returns a copy of a list section's bullets.
func (r *StructuredReport) Items(name string) []string {
	s, _ := r.Section(name)
	return append([]string(nil), s.Items...)
}

// TextOf returns a text section's body.
func (r *StructuredReport) TextOf(name string) string {
	s, _ := r.Section(name)
	return s.Text
}

// PercentTotal sums every 0..100 percentage seen in the text. It is a
// diagnostic only.
func (r *StructuredReport) PercentTotal() (int, bool) {
	if len(r.Percents) == 0 {
		return 0, false
	}
	total := 0
	for _, p := range r.Percents {
		if p >= 0 && p <= 100 {
			total += p
		}
	}
	return total, true
}

// PercentCheck renders the diagnostic line, or "" when no percentage was seen.
func (r *StructuredReport) PercentCheck() string {
	total, ok := r.PercentTotal()
	if !ok {
		return ""
	}
	return fmt.Sprintf("Raw percent total: %d%%", total)
}

// Empty reports whether nothing was recognized in any section.
func (r *StructuredReport) Empty() bool {
	for _, s := range r.Sections {
		if s.Text != "" || len(s.Items) > 0 {
			return false
		}
	}
	return true
}

// JSON encodes the report with indentation.
func (r *StructuredReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Digest returns the sha256 hex of the report's RFC 8785 canonical JSON.
func Digest(r *StructuredReport) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize report: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Schema is the JSON schema exported reports must satisfy.
const Schema = `{
  "type": "object",
  "required": ["sections", "raw", "sanitized", "usage"],
  "properties": {
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "kind"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "kind": {"enum": ["text", "list"]},
          "text": {"type": "string"},
          "items": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "text": {"type": "string"},
    "percents": {"type": "array", "items": {"type": "integer"}},
    "raw": {"type": "string"},
    "sanitized": {"type": "string"},
    "usage": {
      "type": "object",
      "required": ["prompt_tokens", "completion_tokens", "total_tokens"],
      "properties": {
        "prompt_tokens": {"type": "integer", "minimum": 0},
        "completion_tokens": {"type": "integer", "minimum": 0},
        "total_tokens": {"type": "integer", "minimum": 0},
        "estimated_cost_usd": {"type": "number", "minimum": 0}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.NewCompiler().Compile([]byte(Schema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// ValidateJSON checks an exported report against Schema.
func ValidateJSON(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	result := s.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

// SummaryOptions shape ManagerSummary.
type SummaryOptions struct {
	Period string
	Now    time.Time
}

// ManagerSummary renders a short report: summary, top 5 issues, top 3 actions, usage.
func ManagerSummary(r *StructuredReport, opt SummaryOptions) string {
	if opt.Period == "" {
		opt.Period = "daily"
	}
	if opt.Now.IsZero() {
		opt.Now = time.Now()
	}
	var b strings.Builder
	b.WriteString("🏭 CEMENT PLANT SHIFT REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	period := []rune(opt.Period)
	period[0] = unicode.ToUpper(period[0])
	fmt.Fprintf(&b, "📅 Report type: %s\n", string(period))
	fmt.Fprintf(&b, "🕐 Generated: %s\n\n", opt.Now.Format("02.01.2006 15:04"))

	summary := r.TextOf(SectionSummary)
	if summary == "" {
		summary = "No summary found"
	}
	b.WriteString(summary + "\n")

	issues := r.Items(SectionIssues)
	fmt.Fprintf(&b, "\n⚠️ CRITICAL ISSUES (%d):\n", len(issues))
	for i, s := range firstN(issues, 5) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	recs := r.Items(SectionRecommendations)
	fmt.Fprintf(&b, "\n🎯 PRIORITY ACTIONS (%d):\n", len(recs))
	for i, s := range firstN(recs, 3) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	if r.Usage.TotalTokens > 0 {
		b.WriteString("\n📊 SYSTEM INFO:\n")
		fmt.Fprintf(&b, "- Token usage: %d\n", r.Usage.TotalTokens)
		fmt.Fprintf(&b, "- Estimated cost: $%.4f\n", r.Usage.EstimatedCostUSD)
	}
	return b.String()
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
