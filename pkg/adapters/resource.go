package adapters

import (
	"maps"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/models/store"
)

func MapSnapshotDomainToStore(assessmentID string, snap domain.ResourceSnapshot) store.StoredResource {
	return store.StoredResource{
		ID:             snap.ID,
		AssessmentID:   assessmentID,
		Name:           snap.Name,
		Type:           snap.Type,
		ResourceGroup:  snap.ResourceGroup,
		Location:       snap.Location,
		SubscriptionID: snap.SubscriptionID,
		Tags:           maps.Clone(snap.Tags),
		SKU:            snap.SKU,
		Kind:           snap.Kind,
	}
}

func MapSnapshotStoreToDomain(rec store.StoredResource) domain.ResourceSnapshot {
	return domain.ResourceSnapshot{
		ID:             rec.ID,
		Name:           rec.Name,
		Type:           rec.Type,
		ResourceGroup:  rec.ResourceGroup,
		Location:       rec.Location,
		SubscriptionID: rec.SubscriptionID,
		Tags:           maps.Clone(rec.Tags),
		SKU:            rec.SKU,
		Kind:           rec.Kind,
	}
}

func MapEnvironmentStoreToDomain(rec store.Environment) domain.Environment {
	return domain.Environment{
		ID:              rec.ID,
		OrgID:           rec.OrgID,
		ClientID:        rec.ClientID,
		Name:            rec.Name,
		TenantID:        rec.TenantID,
		SubscriptionIDs: append([]string{}, rec.SubscriptionIDs...),
		LastTestAt:      rec.LastTestAt,
		LastTestOK:      rec.LastTestOK,
	}
}
