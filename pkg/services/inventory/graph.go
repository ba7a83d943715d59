package inventory

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
)

// GraphClient is the slice of the resource graph API the fetcher needs.
type GraphClient interface {
	Resources(ctx context.Context, req armresourcegraph.QueryRequest) (armresourcegraph.QueryResponse, error)
}

// GraphClientFactory builds a graph client for a resolved credential; the
// orchestrator picks the credential per run (delegated or platform).
type GraphClientFactory func(cred azcore.TokenCredential) (GraphClient, error)

type armGraphClient struct {
	client *armresourcegraph.Client
}

func NewGraphClient(cred azcore.TokenCredential) (GraphClient, error) {
	client, err := armresourcegraph.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource graph client: %w", err)
	}
	return &armGraphClient{client: client}, nil
}

func (c *armGraphClient) Resources(ctx context.Context, req armresourcegraph.QueryRequest) (armresourcegraph.QueryResponse, error) {
	resp, err := c.client.Resources(ctx, req, nil)
	if err != nil {
		return armresourcegraph.QueryResponse{}, err
	}
	return resp.QueryResponse, nil
}
