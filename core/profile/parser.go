package profile

import (
	"bufio"
	"fmt"
	"strings"
)

// The parser is deliberately tolerant: profiles are hand-written markdown,
// so sections are recognized by heading keywords, unknown headings are
// ignored, and both plain and bold bullet forms are accepted.

type sectionKind int

const (
	sectionNone sectionKind = iota
	sectionRole
	sectionCapabilities
	sectionAuthority
	sectionContext
	sectionQuality
	sectionEscalation
	sectionIntegration
)

// headingKinds maps lowercase heading text fragments to sections. Checked in
// order so that longer, more specific fragments win over generic ones.
var headingKinds = []struct {
	fragment string
	kind     sectionKind
}{
	{"core capabilities", sectionCapabilities},
	{"capabilities", sectionCapabilities},
	{"responsibilities", sectionCapabilities},
	{"authority scope", sectionAuthority},
	{"authority", sectionAuthority},
	{"permissions", sectionAuthority},
	{"context preferences", sectionContext},
	{"context", sectionContext},
	{"quality standards", sectionQuality},
	{"quality", sectionQuality},
	{"escalation criteria", sectionEscalation},
	{"escalation", sectionEscalation},
	{"integration patterns", sectionIntegration},
	{"integration", sectionIntegration},
	{"role", sectionRole},
}

// ParseError indicates a profile document was readable but structurally
// incomplete. The content hash is still populated so callers can log it.
type ParseError struct {
	Path    string
	Hash    string
	Missing []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("profile %s: missing required sections: %s",
		e.Path, strings.Join(e.Missing, ", "))
}

// parseDocument extracts profile sections from raw markdown. Required
// sections are role and capabilities; everything else is optional.
func parseDocument(raw string, into *Profile) error {
	current := sectionNone

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if heading, ok := headingText(line); ok {
			current = classifyHeading(heading)
			continue
		}
		if line == "" {
			continue
		}

		// Inline metadata works anywhere in the document.
		if value, ok := inlineField(line, "role", "primary role"); ok {
			into.Role = value
			continue
		}

		switch current {
		case sectionRole:
			if into.Role == "" && !strings.HasPrefix(line, "#") {
				into.Role = strings.TrimSpace(strings.TrimLeft(line, "-* "))
			}
		case sectionCapabilities:
			appendBullet(line, &into.Capabilities)
		case sectionAuthority:
			appendBullet(line, &into.AuthorityScope)
		case sectionQuality:
			appendBullet(line, &into.QualityStandards)
		case sectionEscalation:
			appendBullet(line, &into.EscalationCriteria)
		case sectionContext:
			parseContextLine(line, &into.ContextPreferences)
		case sectionIntegration:
			parseIntegrationLine(line, into)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning profile document: %w", err)
	}

	var missing []string
	if into.Role == "" {
		missing = append(missing, "role")
	}
	if len(into.Capabilities) == 0 {
		missing = append(missing, "capabilities")
	}
	if len(missing) > 0 {
		return &ParseError{Path: into.SourcePath, Hash: into.ContentHash, Missing: missing}
	}
	return nil
}

func headingText(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(line, "# ")), true
}

func classifyHeading(heading string) sectionKind {
	lower := strings.ToLower(heading)
	for _, hk := range headingKinds {
		if strings.Contains(lower, hk.fragment) {
			return hk.kind
		}
	}
	return sectionNone
}

// inlineField matches lines like "**Role**: Backend implementation specialist".
func inlineField(line string, names ...string) (string, bool) {
	if !strings.HasPrefix(line, "**") {
		return "", false
	}
	rest := strings.TrimPrefix(line, "**")
	idx := strings.Index(rest, "**:")
	if idx < 0 {
		return "", false
	}
	key := strings.ToLower(strings.TrimSpace(rest[:idx]))
	for _, name := range names {
		if key == name {
			return strings.TrimSpace(rest[idx+len("**:"):]), true
		}
	}
	return "", false
}

// appendBullet collects "- item", "* item", and "- **Item**: detail" forms.
// For the bold form only the emphasized label is kept.
func appendBullet(line string, into *[]string) {
	item, ok := bulletItem(line)
	if !ok {
		return
	}
	*into = append(*into, item)
}

func bulletItem(line string) (string, bool) {
	if !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "* ") {
		return "", false
	}
	item := strings.TrimSpace(line[2:])
	if item == "" || strings.HasPrefix(item, "#") {
		return "", false
	}
	if strings.HasPrefix(item, "**") {
		body := strings.TrimPrefix(item, "**")
		if idx := strings.Index(body, "**"); idx >= 0 {
			label := strings.TrimSpace(body[:idx])
			if label != "" {
				return label, true
			}
		}
	}
	return item, true
}

// parseContextLine handles "- **Include**: backend, performance" and the
// plain "- include: backend, performance" form.
func parseContextLine(line string, prefs *ContextPreferences) {
	item, ok := contextEntry(line)
	if !ok {
		return
	}
	key, values, ok := splitKeyValues(item)
	if !ok {
		return
	}
	switch key {
	case "include":
		prefs.Include = append(prefs.Include, values...)
	case "exclude":
		prefs.Exclude = append(prefs.Exclude, values...)
	}
}

func contextEntry(line string) (string, bool) {
	if !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "* ") {
		return "", false
	}
	return strings.TrimSpace(line[2:]), true
}

func splitKeyValues(entry string) (string, []string, bool) {
	entry = strings.ReplaceAll(entry, "**", "")
	idx := strings.Index(entry, ":")
	if idx < 0 {
		return "", nil, false
	}
	key := strings.ToLower(strings.TrimSpace(entry[:idx]))
	var values []string
	for _, v := range strings.Split(entry[idx+1:], ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, strings.ToLower(v))
		}
	}
	return key, values, len(values) > 0
}

// parseIntegrationLine handles "- **With Engineer**: pairs on implementation".
func parseIntegrationLine(line string, into *Profile) {
	item, ok := contextEntry(line)
	if !ok {
		return
	}
	item = strings.ReplaceAll(item, "**", "")
	lower := strings.ToLower(item)
	if !strings.HasPrefix(lower, "with ") {
		return
	}
	idx := strings.Index(item, ":")
	if idx < 0 {
		return
	}
	agent := strings.ToLower(strings.TrimSpace(item[len("with "):idx]))
	desc := strings.TrimSpace(item[idx+1:])
	if agent == "" || desc == "" {
		return
	}
	if into.IntegrationPatterns == nil {
		into.IntegrationPatterns = make(map[string]string)
	}
	into.IntegrationPatterns[agent] = desc
}
