package analysis

import "strings"

// Role is the inferred purpose of a column.
type Role string

const (
	RoleDate        Role = "date"
	RoleShift       Role = "shift"
	RoleEquipment   Role = "equipment"
	RoleIssue       Role = "issue"
	RoleDuration    Role = "duration"
	RoleDescription Role = "description"
)

// RoleRule maps a role to the name fragments that select it. Limit caps how many
// columns take the role (0 means one).
type RoleRule struct {
	Role     Role     `yaml:"role"`
	Keywords []string `yaml:"keywords"`
	Limit    int      `yaml:"limit"`
}

// DefaultRoleRules is the built-in rule table, evaluated top to bottom.
func DefaultRoleRules() []RoleRule {
	return []RoleRule{
		{Role: RoleDate, Keywords: []string{"tarih", "date"}},
		{Role: RoleShift, Keywords: []string{"vardiya", "shift"}},
		{Role: RoleEquipment, Keywords: []string{"ekipman", "makine", "ünite", "unite", "unit", "equipment", "machine"}},
		{Role: RoleIssue, Keywords: []string{"sorun", "arıza", "ariza", "problem", "kategori", "issue", "category", "fault"}},
		{Role: RoleDuration, Keywords: []string{"süre", "sure", "dakika", "dk", "duration", "downtime", "minutes"}},
		{Role: RoleDescription, Limit: 3, Keywords: []string{
			"açıklama", "aciklama", "iletil", "takip", "kalite", "arıza", "ariza", "bakım", "bakim",
			"not", "yorum", "description", "comment", "remark",
		}},
	}
}

// AssignRoles matches column names against rules. Each role receives the matching
// columns in table order, up to its limit; a column may serve several roles.
func AssignRoles(columns []string, rules []RoleRule) map[Role][]string {
	out := make(map[Role][]string, len(rules))
	for _, r := range rules {
		limit := r.Limit
		if limit <= 0 {
			limit = 1
		}
		for _, c := range columns {
			if len(out[r.Role]) >= limit {
				break
			}
			lower := strings.ToLower(c)
			for _, k := range r.Keywords {
				if strings.Contains(lower, k) {
					out[r.Role] = append(out[r.Role], c)
					break
				}
			}
		}
	}
	return out
}
