package analysis

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/shiftlog-cli/internal/table"
)

// Block is one section of a digest. Omitted blocks carry the reason and no lines.
type Block struct {
	Name    string   `json:"name"`
	Title   string   `json:"title,omitempty"`
	Lines   []string `json:"lines,omitempty"`
	Omitted bool     `json:"omitted,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Digest is the ordered set of blocks built from one table snapshot.
type Digest struct {
	Blocks []Block `json:"blocks"`
	Rows   int     `json:"rows"`
	// Stale is true when no rows fall inside the last year but some are older than two years.
	Stale bool `json:"stale"`
}

// Text renders the included blocks as plain text.
func (d Digest) Text() string {
	var b strings.Builder
	for _, blk := range d.Blocks {
		if blk.Omitted {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(blk.Title)
		b.WriteString("\n")
		for _, l := range blk.Lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Block returns the named block.
func (d Digest) Block(name string) (Block, bool) {
	for _, b := range d.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return Block{}, false
}

// Omitted lists blocks left out of the digest.
func (d Digest) Omitted() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Omitted {
			out = append(out, b)
		}
	}
	return out
}

// Block names.
const (
	BlockGeneral   = "general"
	BlockFreshness = "freshness"
	BlockShift     = "shift"
	BlockEquipment = "equipment"
	BlockIssue     = "issue"
	BlockDuration  = "duration"
	BlockTrend     = "trend"
	BlockExcerpts  = "excerpts"
)

// ExcerptMaxRunes bounds each free-text sample.
const ExcerptMaxRunes = 200

const (
	trendMinDays    = 14
	defaultTopN     = 10
	defaultExcerptN = 3
	staleWithinDays = 365
	staleOlderDays  = 730
)

// Options tune digest construction.
type Options struct {
	// Now anchors the freshness windows; zero means time.Now().
	Now   time.Time
	TopN  int
	Rules []RoleRule
}

// DefaultOptions returns the standard digest settings.
func DefaultOptions() Options {
	return Options{TopN: defaultTopN, Rules: DefaultRoleRules()}
}

// Builder turns a redacted table into a Digest.
type Builder struct {
	opt Options
	log *zap.Logger
}

// NewBuilder returns a Builder. A nil logger discards output.
func NewBuilder(opt Options, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.TopN <= 0 {
		opt.TopN = defaultTopN
	}
	if len(opt.Rules) == 0 {
		opt.Rules = DefaultRoleRules()
	}
	return &Builder{opt: opt, log: log}
}

// errOmit marks a block that does not apply to the table.
type errOmit string

func (e errOmit) Error() string { return string(e) }

type blockFunc func(*buildState) (Block, error)

type buildState struct {
	t     *table.Table
	roles map[Role][]string
	now   time.Time
	dates []time.Time
	valid []bool
	// set when freshness detects stale data
	stale bool
}

// Build computes every block independently; a failing block is recorded as omitted
// and the rest of the digest is unaffected.
func (b *Builder) Build(t *table.Table) Digest {
	now := b.opt.Now
	if now.IsZero() {
		now = time.Now()
	}
	st := &buildState{
		t:     t,
		roles: AssignRoles(t.ColumnNames(), b.opt.Rules),
		now:   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
	if len(st.roles[RoleDate]) == 0 {
		if cands := table.DetectDateColumns(t); len(cands) > 0 {
			st.roles[RoleDate] = cands[:1]
		}
	}
	if cols := st.roles[RoleDate]; len(cols) > 0 {
		c, _ := t.Column(cols[0])
		st.dates, st.valid = table.Dates(c)
	}
	steps := []struct {
		name string
		fn   blockFunc
	}{
		{BlockGeneral, b.general},
		{BlockFreshness, b.freshness},
		{BlockShift, b.shift},
		{BlockEquipment, b.equipment},
		{BlockIssue, b.issue},
		{BlockDuration, b.duration},
		{BlockTrend, b.trend},
		{BlockExcerpts, b.excerpts},
	}
	d := Digest{Rows: t.Rows()}
	for _, s := range steps {
		blk := b.run(s.name, s.fn, st)
		d.Blocks = append(d.Blocks, blk)
	}
	d.Stale = st.stale
	return d
}

func (b *Builder) run(name string, fn blockFunc, st *buildState) (blk Block) {
	defer func() {
		if r := recover(); r != nil {
			blk = Block{Name: name, Omitted: true, Reason: fmt.Sprintf("panic: %v", r)}
			b.log.Warn("digest block failed", zap.String("block", name), zap.Any("panic", r))
		}
	}()
	blk, err := fn(st)
	if err != nil {
		b.log.Debug("digest block omitted", zap.String("block", name), zap.Error(err))
		return Block{Name: name, Omitted: true, Reason: err.Error()}
	}
	blk.Name = name
	return blk
}

func (st *buildState) column(role Role) (table.Column, error) {
	cols := st.roles[role]
	if len(cols) == 0 {
		return table.Column{}, errOmit(fmt.Sprintf("no %s column", role))
	}
	c, _ := st.t.Column(cols[0])
	return c, nil
}

func (st *buildState) dateBounds() (min, max time.Time, ok bool) {
	for i, v := range st.valid {
		if !v {
			continue
		}
		d := st.dates[i]
		if !ok || d.Before(min) {
			min = d
		}
		if !ok || d.After(max) {
			max = d
		}
		ok = true
	}
	return min, max, ok
}

func (b *Builder) general(st *buildState) (Block, error) {
	rng := "N/A"
	if min, max, ok := st.dateBounds(); ok {
		rng = fmt.Sprintf("%s - %s", min.Format("2006-01-02"), max.Format("2006-01-02"))
	}
	return Block{Title: "GENERAL:", Lines: []string{
		fmt.Sprintf("- Total records: %d", st.t.Rows()),
		fmt.Sprintf("- Date range: %s", rng),
		fmt.Sprintf("- Columns: %s", strings.Join(st.t.ColumnNames(), ", ")),
	}}, nil
}

func (b *Builder) freshness(st *buildState) (Block, error) {
	if st.dates == nil {
		return Block{}, errOmit("no date column")
	}
	if _, _, ok := st.dateBounds(); !ok {
		return Block{}, errOmit("no parseable dates")
	}
	var in90, in180, in365, older730 int
	for i, v := range st.valid {
		if !v {
			continue
		}
		age := int(st.now.Sub(st.dates[i]).Hours() / 24)
		if age <= 90 {
			in90++
		}
		if age <= 180 {
			in180++
		}
		if age <= staleWithinDays {
			in365++
		}
		if age > staleOlderDays {
			older730++
		}
	}
	blk := Block{Title: "DATA FRESHNESS:", Lines: []string{
		fmt.Sprintf("- Last 90 days: %d records", in90),
		fmt.Sprintf("- Last 180 days: %d records", in180),
		fmt.Sprintf("- Last 365 days: %d records", in365),
		fmt.Sprintf("- Older than 730 days: %d records", older730),
	}}
	if in365 == 0 && older730 > 0 {
		st.stale = true
		blk.Lines = append(blk.Lines, "- CAUTION: no records within the last 12 months; the data is stale. Do not propose current actions based on it.")
	}
	return blk, nil
}

func texts(c table.Column) []string {
	out := make([]string, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if cell.IsMissing() {
			continue
		}
		out = append(out, cell.Text())
	}
	return out
}

func labelText(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func (b *Builder) shift(st *buildState) (Block, error) {
	c, err := st.column(RoleShift)
	if err != nil {
		return Block{}, err
	}
	dist := TopNCounts(texts(c), b.opt.TopN)
	if len(dist) == 0 {
		return Block{}, errOmit("shift column is empty")
	}
	blk := Block{Title: fmt.Sprintf("SHIFT DISTRIBUTION (top %d):", b.opt.TopN)}
	for _, e := range dist {
		blk.Lines = append(blk.Lines, fmt.Sprintf("- %s: %d", labelText(e.Label), e.Count))
	}
	return blk, nil
}

func normalizedBlock(title string, dist []Entry) (Block, error) {
	if len(dist) == 0 {
		return Block{}, errOmit("no usable values")
	}
	blk := Block{Title: title}
	for _, e := range dist {
		blk.Lines = append(blk.Lines, fmt.Sprintf("- %s: %d records (%d%%)", labelText(e.Label), e.Count, e.Percent))
	}
	blk.Lines = append(blk.Lines, "Total = 100%")
	return blk, nil
}

func (b *Builder) equipment(st *buildState) (Block, error) {
	c, err := st.column(RoleEquipment)
	if err != nil {
		return Block{}, err
	}
	return normalizedBlock(fmt.Sprintf("EQUIPMENT DISTRIBUTION (top %d, normalized):", b.opt.TopN), TopNNormalized(texts(c), b.opt.TopN))
}

func (b *Builder) issue(st *buildState) (Block, error) {
	c, err := st.column(RoleIssue)
	if err != nil {
		return Block{}, err
	}
	vals := texts(c)
	for i, v := range vals {
		vals[i] = lowerTrim(v)
	}
	return normalizedBlock(fmt.Sprintf("ISSUE CATEGORIES (top %d, normalized):", b.opt.TopN), TopNNormalized(vals, b.opt.TopN))
}

var firstNumber = regexp.MustCompile(`\d+[.,]?\d*`)

// ExtractDuration returns the first numeric substring of s, reading a comma as the
// decimal separator.
func ExtractDuration(s string) (float64, bool) {
	m := firstNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimRight(strings.ReplaceAll(m, ",", "."), "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Durations extracts numeric values from a duration column. ok[i] is false for cells
// without a number.
func Durations(c table.Column) (vals []float64, ok []bool) {
	vals = make([]float64, len(c.Cells))
	ok = make([]bool, len(c.Cells))
	for i, cell := range c.Cells {
		switch cell.Kind {
		case table.KindNumber:
			vals[i], ok[i] = cell.Num, true
		case table.KindString:
			vals[i], ok[i] = ExtractDuration(cell.Str)
		}
	}
	return vals, ok
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func (b *Builder) duration(st *buildState) (Block, error) {
	c, err := st.column(RoleDuration)
	if err != nil {
		return Block{}, err
	}
	vals, ok := Durations(c)
	var present []float64
	for i := range vals {
		if ok[i] {
			present = append(present, vals[i])
		}
	}
	if len(present) == 0 {
		return Block{}, errOmit("no numeric durations")
	}
	total := 0.0
	for _, v := range present {
		total += v
	}
	sp := spreadOf(present)
	blk := Block{Title: "DOWNTIME DURATION (minutes):", Lines: []string{
		fmt.Sprintf("- Total: %d min", int(total)),
		fmt.Sprintf("- Mean: %.1f min/record (n=%d)", mean(present), len(present)),
		fmt.Sprintf("- Median: %.1f min (IQR %.1f)", sp.Median, sp.IQR()),
		"- MTBF/MTTR and variance-based reliability metrics depend on timestamped failure/repair data; not computed from this summary.",
	}}
	if st.dates != nil {
		if _, last, okb := st.dateBounds(); okb {
			var recent, prior []float64
			for i := range vals {
				if !ok[i] || !st.valid[i] {
					continue
				}
				age := int(last.Sub(st.dates[i]).Hours() / 24)
				switch {
				case age >= 0 && age < 7:
					recent = append(recent, vals[i])
				case age >= 7 && age < 14:
					prior = append(prior, vals[i])
				}
			}
			blk.Lines = append(blk.Lines,
				"- Mean, last 7 days: "+meanOrNoData(recent),
				"- Mean, previous 7 days: "+meanOrNoData(prior))
		}
	}
	return blk, nil
}

func meanOrNoData(xs []float64) string {
	if len(xs) == 0 {
		return "no data"
	}
	return fmt.Sprintf("%.1f min (n=%d)", mean(xs), len(xs))
}

// Trend compares the latest seven distinct days against the seven before them.
type Trend struct {
	Last, Previous, Delta int
	Direction             string
}

func dailyCounts(dates []time.Time, valid []bool) (days []time.Time, counts []int) {
	m := map[time.Time]int{}
	for i, v := range valid {
		if !v {
			continue
		}
		d := dates[i]
		m[time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)]++
	}
	for d := range m {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for _, d := range days {
		counts = append(counts, m[d])
	}
	return days, counts
}

// ComputeTrend returns ok=false when fewer than 14 distinct days are present.
func ComputeTrend(dates []time.Time, valid []bool) (Trend, bool) {
	_, counts := dailyCounts(dates, valid)
	n := len(counts)
	if n < trendMinDays {
		return Trend{}, false
	}
	var tr Trend
	for _, c := range counts[n-7:] {
		tr.Last += c
	}
	for _, c := range counts[n-14 : n-7] {
		tr.Previous += c
	}
	tr.Delta = tr.Last - tr.Previous
	switch {
	case tr.Delta > 0:
		tr.Direction = "up"
	case tr.Delta < 0:
		tr.Direction = "down"
	default:
		tr.Direction = "flat"
	}
	return tr, true
}

func (b *Builder) trend(st *buildState) (Block, error) {
	if st.dates == nil {
		return Block{}, errOmit("no date column")
	}
	tr, ok := ComputeTrend(st.dates, st.valid)
	if !ok {
		return Block{}, errOmit("fewer than 14 distinct days")
	}
	arrow := map[string]string{"up": "↑", "down": "↓", "flat": "="}[tr.Direction]
	return Block{Title: "TREND (record count):", Lines: []string{
		fmt.Sprintf("- Last 7 days: %d | Previous 7: %d | Delta: %+d %s (%s)", tr.Last, tr.Previous, tr.Delta, arrow, tr.Direction),
	}}, nil
}

// Excerpt truncates s to ExcerptMaxRunes runes with an ellipsis.
func Excerpt(s string) string {
	rs := []rune(strings.TrimSpace(s))
	if len(rs) > ExcerptMaxRunes {
		return string(rs[:ExcerptMaxRunes]) + "..."
	}
	return string(rs)
}

func (b *Builder) excerpts(st *buildState) (Block, error) {
	cols := st.roles[RoleDescription]
	if len(cols) == 0 {
		return Block{}, errOmit("no description column")
	}
	blk := Block{Title: fmt.Sprintf("SAMPLE RECORDS (max %d columns x %d samples):", defaultExcerptN, defaultExcerptN)}
	for _, name := range cols {
		c, _ := st.t.Column(name)
		samples := c.NonMissing(defaultExcerptN)
		if len(samples) == 0 {
			continue
		}
		blk.Lines = append(blk.Lines, fmt.Sprintf("- %s:", name))
		for i, s := range samples {
			blk.Lines = append(blk.Lines, fmt.Sprintf("  %d. %s", i+1, Excerpt(s)))
		}
	}
	if len(blk.Lines) == 0 {
		return Block{}, errOmit("description columns are empty")
	}
	return blk, nil
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
