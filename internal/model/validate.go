package model

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// Tenant IDs are lowercase alphanumeric, no spaces, globally unique.
	tenantIDPattern = regexp.MustCompile(`^[a-z0-9]{2,32}$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	validate = validator.New()
)

// ValidTenantID reports whether id is a well-formed tenant identifier.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// ValidEmail reports whether email is well-formed.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// draftRequired maps the fields a draft must carry before submission to
// their JSON names, in reporting order.
var draftRequired = []struct {
	name    string
	present func(*Draft) bool
}{
	{"tenant_id", func(d *Draft) bool { return d.TenantID != "" }},
	{"company_name", func(d *Draft) bool { return d.CompanyName != "" }},
	{"application_name", func(d *Draft) bool { return d.ApplicationName != "" }},
	{"footer_text", func(d *Draft) bool { return d.FooterText != "" }},
	{"footer_url", func(d *Draft) bool { return d.FooterURL != "" }},
	{"contact_email", func(d *Draft) bool { return d.ContactEmail != "" }},
}

// ValidateDraftForSubmit checks the minimum required fields and their
// formats. It returns a ValidationError listing every offending field so
// the prospective tenant can fix them in one pass.
func ValidateDraftForSubmit(d *Draft) error {
	var fields []string
	for _, req := range draftRequired {
		if !req.present(d) {
			fields = append(fields, req.name)
		}
	}
	if d.TenantID != "" && !ValidTenantID(d.TenantID) {
		fields = append(fields, "tenant_id")
	}
	if d.ContactEmail != "" && !ValidEmail(d.ContactEmail) {
		fields = append(fields, "contact_email")
	}
	if err := validate.Struct(d); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, verr := range verrs {
				name := jsonFieldNames[verr.Field()]
				if name == "" {
					name = verr.Field()
				}
				fields = append(fields, name)
			}
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: dedupe(fields)}
	}
	return nil
}

// jsonFieldNames maps struct field names reported by the validator back to
// their wire names.
var jsonFieldNames = map[string]string{
	"FooterURL": "footer_url",
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
