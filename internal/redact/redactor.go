package redact

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

// Reason explains why a column was removed.
type Reason string

const (
	ReasonName    Reason = "name pattern"
	ReasonContent Reason = "content pattern"
)

// Removal records one dropped column.
type Removal struct {
	Column string `json:"column"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Warning records a column that could not be evaluated and was kept as-is.
type Warning struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// Report is the immutable outcome of one redaction pass.
type Report struct {
	removals []Removal
	warnings []Warning
	kept     []string
}

// Removed returns the removed column names in table order.
func (r Report) Removed() []string {
	out := make([]string, len(r.removals))
	for i, x := range r.removals {
		out[i] = x.Column
	}
	return out
}

// Removals returns the removal entries in table order.
func (r Report) Removals() []Removal { return append([]Removal(nil), r.removals...) }

// Reasons maps each removed column to its reason.
func (r Report) Reasons() map[string]Reason {
	m := make(map[string]Reason, len(r.removals))
	for _, x := range r.removals {
		m[x.Column] = x.Reason
	}
	return m
}

// Warnings returns columns that were skipped during content evaluation.
func (r Report) Warnings() []Warning { return append([]Warning(nil), r.warnings...) }

// Kept returns the surviving column names.
func (r Report) Kept() []string { return append([]string(nil), r.kept...) }

// Redactor drops personal-data columns from tables.
type Redactor struct {
	cls *Classifier
	log *zap.Logger
}

// New builds a Redactor from rules.
func New(rules Rules, log *zap.Logger) (*Redactor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cls, err := NewClassifier(rules, log)
	if err != nil {
		return nil, err
	}
	return &Redactor{cls: cls, log: log}, nil
}

// Classifier exposes the underlying classifier.
func (r *Redactor) Classifier() *Classifier { return r.cls }

// Redact evaluates each column once, name rule first and content rule second,
// and returns a new table without the personal columns.
func (r *Redactor) Redact(t *table.Table) (*table.Table, Report) {
	var rep Report
	var drop []string
	for _, col := range t.Columns() {
		d := r.cls.Classify(col.Name)
		if d.Class == PersonalByName {
			rep.removals = append(rep.removals, Removal{Column: col.Name, Reason: ReasonName, Detail: d.Rule})
			drop = append(drop, col.Name)
			r.log.Info("column removed", zap.String("column", col.Name), zap.String("reason", string(ReasonName)), zap.String("rule", d.Rule))
			continue
		}
		if d.SafeKeyword != "" {
			rep.kept = append(rep.kept, col.Name)
			r.log.Info("column kept", zap.String("column", col.Name), zap.String("reason", "safe keyword"), zap.String("keyword", d.SafeKeyword))
			continue
		}
		values, err := sampleValues(col, r.cls.rules.SampleSize)
		if err != nil {
			rep.warnings = append(rep.warnings, Warning{Column: col.Name, Reason: err.Error()})
			rep.kept = append(rep.kept, col.Name)
			r.log.Warn("column not evaluated", zap.String("column", col.Name), zap.Error(err))
			continue
		}
		s := r.cls.ClassifyContent(values, col.Name)
		if s.Personal {
			detail := fmt.Sprintf("score %.2f >= %.2f", s.Ratio, s.Threshold)
			rep.removals = append(rep.removals, Removal{Column: col.Name, Reason: ReasonContent, Detail: detail})
			drop = append(drop, col.Name)
			r.log.Info("column removed", zap.String("column", col.Name), zap.String("reason", string(ReasonContent)),
				zap.Float64("score", s.Ratio), zap.Float64("threshold", s.Threshold))
			continue
		}
		rep.kept = append(rep.kept, col.Name)
		r.log.Info("column kept", zap.String("column", col.Name), zap.String("reason", "content below threshold"),
			zap.Float64("score", s.Ratio), zap.Float64("threshold", s.Threshold))
	}
	return t.Without(drop...), rep
}

// sampleValues collects up to n non-missing values as text.
func sampleValues(col table.Column, n int) ([]string, error) {
	var out []string
	for _, c := range col.Cells {
		switch c.Kind {
		case table.KindMissing:
			continue
		case table.KindString, table.KindNumber:
			out = append(out, c.Text())
		default:
			return nil, fmt.Errorf("unsupported cell kind %s", c.Kind)
		}
		if len(out) >= n {
			break
		}
	}
	return out, nil
}
