package inventory

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/services/credential"
)

// AccessProber implements the vault's probe contract with a one-row graph
// query, so TestAccess can tell insufficient permission apart from a working
// delegated credential.
type AccessProber struct {
	factory GraphClientFactory
}

func NewAccessProber(factory GraphClientFactory) *AccessProber {
	return &AccessProber{factory: factory}
}

func (p *AccessProber) Probe(ctx context.Context, token domain.Token, subscriptionID string) error {
	graph, err := p.factory(credential.NewStaticTokenCredential(token))
	if err != nil {
		return fmt.Errorf("build graph client: %w", err)
	}

	req := armresourcegraph.QueryRequest{
		Query:         to.Ptr(connectionTestQuery),
		Subscriptions: []*string{to.Ptr(subscriptionID)},
		Options: &armresourcegraph.QueryRequestOptions{
			ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
		},
	}

	_, err = graph.Resources(ctx, req)
	if err != nil {
		if IsAuthError(err) {
			return fmt.Errorf("%w: %v", credential.ErrInsufficientScope, err)
		}
		return err
	}
	return nil
}
