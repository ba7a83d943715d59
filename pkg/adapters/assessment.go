package adapters

import (
	"github.com/de-tools/estate-atlas/pkg/models/api"
	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/models/store"
)

func MapAssessmentDomainToStore(a domain.Assessment) store.Assessment {
	rec := store.Assessment{
		ID:             a.ID,
		OrgID:          a.OrgID,
		ClientID:       a.ClientID,
		EnvironmentID:  a.EnvironmentID,
		Type:           string(a.Type),
		Status:         string(a.Status),
		Score:          a.Score,
		FailureDetail:  a.FailureDetail,
		CredentialPath: string(a.CredentialPath),
		CreatedAt:      a.CreatedAt,
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
	}
	if a.FailureReason != nil {
		reason := string(*a.FailureReason)
		rec.FailureReason = &reason
	}
	return rec
}

func MapAssessmentStoreToDomain(rec store.Assessment) domain.Assessment {
	a := domain.Assessment{
		ID:             rec.ID,
		OrgID:          rec.OrgID,
		ClientID:       rec.ClientID,
		EnvironmentID:  rec.EnvironmentID,
		Type:           domain.AssessmentType(rec.Type),
		Status:         domain.AssessmentStatus(rec.Status),
		Score:          rec.Score,
		FailureDetail:  rec.FailureDetail,
		CredentialPath: domain.CredentialPath(rec.CredentialPath),
		CreatedAt:      rec.CreatedAt,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
	}
	if rec.FailureReason != nil {
		reason := domain.FailureReason(*rec.FailureReason)
		a.FailureReason = &reason
	}
	return a
}

func MapAssessmentDomainToApi(a domain.Assessment) api.Assessment {
	res := api.Assessment{
		ID:             a.ID,
		OrgID:          a.OrgID,
		ClientID:       a.ClientID,
		EnvironmentID:  a.EnvironmentID,
		Type:           string(a.Type),
		Status:         string(a.Status),
		Score:          a.Score,
		CredentialPath: string(a.CredentialPath),
		CreatedAt:      a.CreatedAt,
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
	}
	if a.FailureReason != nil {
		reason := string(*a.FailureReason)
		res.FailureReason = &reason
	}
	return res
}

func MapPreferencesApiToDomain(p *api.Preferences) domain.PolicyPreferences {
	if p == nil {
		return domain.PolicyPreferences{}
	}
	prefs := domain.PolicyPreferences{
		Naming: domain.NamingRules{
			AllowedPatterns:       p.Naming.AllowedPatterns,
			RequiredPrefixes:      p.Naming.RequiredPrefixes,
			EnvironmentIndicators: p.Naming.EnvironmentIndicators,
		},
		Tagging: domain.TagRules{
			RequiredTags:      p.Tagging.RequiredTags,
			CostAllocationTag: p.Tagging.CostAllocationTag,
		},
	}
	if len(p.Weights) > 0 {
		prefs.Weights = make(map[domain.Category]float64, len(p.Weights))
		for category, weight := range p.Weights {
			prefs.Weights[domain.Category(category)] = weight
		}
	}
	return prefs
}

func MapResultDomainToApi(r domain.AssessmentResult) api.AssessmentResult {
	res := api.AssessmentResult{
		AssessmentID:  r.AssessmentID,
		Score:         r.Score,
		ByCategory:    map[string]float64{},
		ResourceCount: r.ResourceCount,
		FindingCount:  r.FindingCount,
		CompletedAt:   r.CompletedAt,
	}
	for category, score := range r.ByCategory {
		res.ByCategory[string(category)] = score
	}
	return res
}
