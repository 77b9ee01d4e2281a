package service

import (
	"regexp"

	"inboxpilot/internal/models"
)

// placeholderPattern matches {{field}} with optional inner whitespace
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// TemplateService renders step templates against contacts
type TemplateService struct{}

// NewTemplateService creates a new template service
func NewTemplateService() *TemplateService {
	return &TemplateService{}
}

// contactFields builds the placeholder lookup table for a contact. Missing
// values render as empty strings.
func contactFields(contact *models.Contact) map[string]string {
	fields := map[string]string{
		"first_name": "",
		"last_name":  "",
		"full_name":  "",
		"email":      "",
		"company":    "",
		"title":      "",
	}
	if contact == nil {
		return fields
	}

	deref := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}

	fields["first_name"] = deref(contact.FirstName)
	fields["last_name"] = deref(contact.LastName)
	fields["full_name"] = contact.FullName()
	fields["email"] = contact.Email
	fields["company"] = deref(contact.Company)
	fields["title"] = deref(contact.Title)
	return fields
}

// Render substitutes {{field}} placeholders with the contact's values.
// Unknown placeholders and malformed braces are left as written; Render
// never fails.
func (s *TemplateService) Render(template string, contact *models.Contact) string {
	if template == "" {
		return ""
	}

	fields := contactFields(contact)
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := fields[name]; ok {
			return value
		}
		return match
	})
}

// Placeholders lists the distinct placeholder names in a template, split
// into ones Render substitutes and ones it leaves verbatim
func (s *TemplateService) Placeholders(template string) (known, unknown []string) {
	fields := contactFields(nil)
	seen := map[string]bool{}

	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		if _, ok := fields[name]; ok {
			known = append(known, name)
		} else {
			unknown = append(unknown, name)
		}
	}

	return known, unknown
}
