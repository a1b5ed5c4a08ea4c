package intake

import "strings"

// Field is a canonical survey column.
type Field string

const (
	FieldTimestamp  Field = "timestamp"
	FieldEmail      Field = "email"
	FieldName       Field = "name"
	FieldFirstName  Field = "first_name"
	FieldLastName   Field = "last_name"
	FieldCohort     Field = "cohort"
	FieldConfidence Field = "confidence"
)

// columnAliases maps lowercase header names to canonical fields. Form tools
// name the same column differently, so every spelling seen in exports is
// listed here.
var columnAliases = map[string]Field{
	// Submission time
	"timestamp":    FieldTimestamp,
	"submitted_at": FieldTimestamp,
	"submitted":    FieldTimestamp,
	"date":         FieldTimestamp,
	"completed":    FieldTimestamp,
	"start time":   FieldTimestamp,

	// Email
	"email":         FieldEmail,
	"email_address": FieldEmail,
	"email address": FieldEmail,
	"e-mail":        FieldEmail,

	// Name
	"name":        FieldName,
	"full_name":   FieldName,
	"full name":   FieldName,
	"your name":   FieldName,
	"participant": FieldName,
	"first_name":  FieldFirstName,
	"firstname":   FieldFirstName,
	"first name":  FieldFirstName,
	"last_name":   FieldLastName,
	"lastname":    FieldLastName,
	"last name":   FieldLastName,

	// Cohort
	"cohort":       FieldCohort,
	"class":        FieldCohort,
	"group":        FieldCohort,
	"cohort_label": FieldCohort,

	// Primary metric
	"confidence":       FieldConfidence,
	"confidence_score": FieldConfidence,
	"overall":          FieldConfidence,
}

// ColumnMapping is the resolved layout of one export.
type ColumnMapping struct {
	Fields     map[Field]int  // canonical field -> column index
	Situations map[int]string // column index -> situation name
}

// MapColumns resolves a header row. A column whose header starts with
// situationPrefix is a situation sub-metric named by the rest of the
// header. The first column wins when a field appears twice.
func MapColumns(header []string, situationPrefix string) *ColumnMapping {
	m := &ColumnMapping{
		Fields:     make(map[Field]int),
		Situations: make(map[int]string),
	}
	prefix := strings.ToLower(situationPrefix)

	for i, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		if h == "" {
			continue
		}
		if prefix != "" && strings.HasPrefix(h, prefix) {
			if name := strings.TrimSpace(strings.TrimPrefix(h, prefix)); name != "" {
				m.Situations[i] = name
			}
			continue
		}
		if f, ok := columnAliases[h]; ok {
			if _, dup := m.Fields[f]; !dup {
				m.Fields[f] = i
			}
		}
	}
	return m
}

// HasIdentity reports whether the layout can identify a respondent.
func (m *ColumnMapping) HasIdentity() bool {
	_, email := m.Fields[FieldEmail]
	_, name := m.Fields[FieldName]
	_, first := m.Fields[FieldFirstName]
	return email || name || first
}
