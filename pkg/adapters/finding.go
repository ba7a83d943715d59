package adapters

import (
	"github.com/de-tools/estate-atlas/pkg/models/api"
	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/models/store"
)

func MapSeverityDomainToApi(s domain.Severity) api.Severity {
	switch s {
	case domain.SeverityMedium:
		return api.SeverityMedium
	case domain.SeverityHigh:
		return api.SeverityHigh
	case domain.SeverityCritical:
		return api.SeverityCritical
	default:
		return api.SeverityLow
	}
}

func MapFindingDomainToStore(f domain.Finding) store.Finding {
	return store.Finding{
		ID:             f.ID,
		AssessmentID:   f.AssessmentID,
		ResourceID:     f.Resource.ID,
		ResourceName:   f.Resource.Name,
		ResourceType:   f.Resource.Type,
		Category:       string(f.Category),
		Severity:       int(f.Severity),
		Issue:          f.Issue,
		Recommendation: f.Recommendation,
		Effort:         f.Effort,
	}
}

func MapFindingStoreToDomain(rec store.Finding) domain.Finding {
	return domain.Finding{
		ID:           rec.ID,
		AssessmentID: rec.AssessmentID,
		Resource: domain.ResourceRef{
			ID:   rec.ResourceID,
			Name: rec.ResourceName,
			Type: rec.ResourceType,
		},
		Category:       domain.Category(rec.Category),
		Severity:       domain.Severity(rec.Severity),
		Issue:          rec.Issue,
		Recommendation: rec.Recommendation,
		Effort:         rec.Effort,
	}
}

func MapFindingDomainToApi(f domain.Finding) api.Finding {
	return api.Finding{
		ID: f.ID,
		Resource: api.ResourceRef{
			ID:   f.Resource.ID,
			Name: f.Resource.Name,
			Type: f.Resource.Type,
		},
		Category:       string(f.Category),
		Severity:       MapSeverityDomainToApi(f.Severity),
		Issue:          f.Issue,
		Recommendation: f.Recommendation,
		Effort:         f.Effort,
	}
}
