package cards

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Record is one normalized row of the result grid.
type Record struct {
	PersonName    string `json:"personName"`
	CompanyName   string `json:"companyName"`
	Email         string `json:"email"`
	ContactNumber string `json:"contactNumber"`
}

// Header is the column header used by every export format.
var Header = []string{"Person name", "Company name", "Email", "Contact number"}

// NameSeparator joins several person names found on one card.
const NameSeparator = ", "

// Fields returns the record values in Header order.
func (r Record) Fields() []string {
	return []string{r.PersonName, r.CompanyName, r.Email, r.ContactNumber}
}

// RecordFromFields builds a record from values in Header order. Missing
// trailing values are empty and extra values are ignored.
func RecordFromFields(fields []string) Record {
	get := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	return Record{
		PersonName:    get(0),
		CompanyName:   get(1),
		Email:         get(2),
		ContactNumber: get(3),
	}
}

var personKey = regexp.MustCompile(`^person\s*name(?:\s*(\d+))?$`)

// Normalize converts one decoded entry into a Record. It never fails: absent
// or null keys become empty strings.
func Normalize(entry map[string]any) Record {
	type indexedName struct {
		index int
		value string
	}
	var names []indexedName
	var rec Record

	for key, val := range entry {
		k := canonicalKey(key)
		if m := personKey.FindStringSubmatch(k); m != nil {
			idx := 1
			if m[1] != "" {
				if n, err := strconv.Atoi(m[1]); err == nil {
					idx = n
				}
			}
			if s := stringify(val); s != "" {
				names = append(names, indexedName{index: idx, value: s})
			}
			continue
		}
		switch k {
		case "company name", "company":
			rec.CompanyName = firstNonEmpty(rec.CompanyName, stringify(val))
		case "email", "e-mail", "email address":
			rec.Email = firstNonEmpty(rec.Email, stringify(val))
		case "contact number", "phone", "phone number":
			rec.ContactNumber = firstNonEmpty(rec.ContactNumber, stringify(val))
		}
	}

	sort.SliceStable(names, func(i, j int) bool {
		if names[i].index != names[j].index {
			return names[i].index < names[j].index
		}
		return names[i].value < names[j].value
	})
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n.value)
	}
	rec.PersonName = strings.Join(parts, NameSeparator)
	return rec
}

// NormalizeAll normalizes every entry, preserving order.
func NormalizeAll(entries []map[string]any) []Record {
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, Normalize(e))
	}
	return out
}

func canonicalKey(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), " "))
}

func firstNonEmpty(current, next string) string {
	if current != "" {
		return current
	}
	return next
}

func stringify(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		s := strings.TrimSpace(v)
		if isNullToken(s) {
			return ""
		}
		return s
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, NameSeparator)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func isNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "null", "none", "n/a":
		return true
	}
	return false
}
