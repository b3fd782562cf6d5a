package notifications

import (
	"strings"

	"github.com/goatkit/pesflow/internal/models"
)

const (
	gestorPrefix  = "gestor:"
	companyPrefix = "company:"
	userPrefix    = "user:"
)

// GestorRecipient addresses the expansion managers of a zone.
func GestorRecipient(zone models.Zone) string {
	if zone == "" {
		return ""
	}
	return gestorPrefix + string(zone)
}

// CompanyRecipient addresses a collaborator company.
func CompanyRecipient(company string) string {
	company = strings.TrimSpace(company)
	if company == "" {
		return ""
	}
	return companyPrefix + strings.ToUpper(company)
}

// UserRecipient addresses a single user.
func UserRecipient(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return userPrefix + id
}

// RecordRecipients returns the parties following rec: the zone gestores and
// the assigned collaborator company.
func RecordRecipients(rec *models.InspectionRecord) []string {
	if rec == nil {
		return nil
	}
	return compact(GestorRecipient(rec.Zone), CompanyRecipient(rec.AssignedCollaboratorCompany))
}

func compact(values ...string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
