package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
)

const resourcesQuery = `Resources
| project id, name, type, resourceGroup, location, subscriptionId, tags, sku, kind`

const connectionTestQuery = `Resources | limit 1`

// Explorer discovers the resource inventory of a set of subscriptions.
type Explorer interface {
	FetchResources(ctx context.Context, subscriptionIDs []string) (domain.Inventory, error)
	TestConnection(ctx context.Context, subscriptionIDs []string) error
}

type Options struct {
	// PageSize is the graph query page size.
	PageSize int32
	// MaxConcurrency bounds parallel per-subscription fetches.
	MaxConcurrency int
	// RequestsPerSecond and Burst feed the shared query rate limiter.
	RequestsPerSecond float64
	Burst             int
	Retry             RetryPolicy
	// QueryTimeout bounds one graph API round trip.
	QueryTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		PageSize:          500,
		MaxConcurrency:    4,
		RequestsPerSecond: 5,
		Burst:             10,
		Retry:             DefaultRetryPolicy(),
		QueryTimeout:      30 * time.Second,
	}
}

type Fetcher struct {
	graph   GraphClient
	limiter *rate.Limiter
	opts    Options
}

func NewFetcher(graph GraphClient, opts Options) (*Fetcher, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph client is nil")
	}
	if opts.PageSize <= 0 || opts.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("invalid fetcher options")
	}
	return &Fetcher{
		graph:   graph,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		opts:    opts,
	}, nil
}

// FetchResources queries each subscription independently so one bad
// subscription never aborts the batch; its failure becomes a per-subscription
// error in the returned inventory. The call waits for every subscription to
// finish or fail before returning, so callers never see a partial,
// still-filling inventory.
func (f *Fetcher) FetchResources(ctx context.Context, subscriptionIDs []string) (domain.Inventory, error) {
	if len(subscriptionIDs) == 0 {
		return domain.Inventory{}, fmt.Errorf("no subscription ids provided")
	}

	var (
		mu  sync.Mutex
		inv domain.Inventory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.MaxConcurrency)

	for _, subID := range subscriptionIDs {
		g.Go(func() error {
			resources, err := f.fetchSubscription(gctx, subID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Cancellation aborts the whole fetch; anything else is
				// contained to this subscription.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				inv.Errors = append(inv.Errors, domain.SubscriptionError{
					SubscriptionID: subID,
					Message:        err.Error(),
				})
				return nil
			}
			inv.Resources = append(inv.Resources, resources...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.Inventory{}, err
	}
	return inv, nil
}

func (f *Fetcher) fetchSubscription(ctx context.Context, subscriptionID string) ([]domain.ResourceSnapshot, error) {
	logger := zerolog.Ctx(ctx)

	var (
		resources []domain.ResourceSnapshot
		skipToken *string
	)

	for {
		req := armresourcegraph.QueryRequest{
			Query:         to.Ptr(resourcesQuery),
			Subscriptions: []*string{to.Ptr(subscriptionID)},
			Options: &armresourcegraph.QueryRequestOptions{
				ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
				Top:          to.Ptr(f.opts.PageSize),
				SkipToken:    skipToken,
			},
		}

		resp, err := f.query(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("query subscription %s: %w", subscriptionID, err)
		}

		rows, ok := resp.Data.([]any)
		if !ok {
			return nil, fmt.Errorf("unexpected graph response shape for subscription %s", subscriptionID)
		}

		for _, row := range rows {
			fields, ok := row.(map[string]any)
			if !ok {
				logger.Debug().Str("subscription", subscriptionID).Msg("skipping malformed graph row")
				continue
			}
			snap := parseSnapshot(fields, subscriptionID)
			if snap.Name == "" && snap.ID == "" {
				logger.Debug().Str("subscription", subscriptionID).Msg("skipping unnamed resource row")
				continue
			}
			resources = append(resources, snap)
		}

		if resp.SkipToken == nil || *resp.SkipToken == "" {
			break
		}
		skipToken = resp.SkipToken
	}

	return resources, nil
}

// query issues one rate-limited, retried, timeout-bounded graph call.
func (f *Fetcher) query(ctx context.Context, req armresourcegraph.QueryRequest) (armresourcegraph.QueryResponse, error) {
	var resp armresourcegraph.QueryResponse

	err := f.opts.Retry.Do(ctx, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}

		queryCtx, cancel := context.WithTimeout(ctx, f.opts.QueryTimeout)
		defer cancel()

		var err error
		resp, err = f.graph.Resources(queryCtx, req)
		return err
	})
	return resp, err
}

// TestConnection runs a minimal query across the given subscriptions. It
// never mutates state; callers persist the outcome separately.
func (f *Fetcher) TestConnection(ctx context.Context, subscriptionIDs []string) error {
	if len(subscriptionIDs) == 0 {
		return fmt.Errorf("no subscription ids provided")
	}

	subs := make([]*string, 0, len(subscriptionIDs))
	for _, id := range subscriptionIDs {
		subs = append(subs, to.Ptr(id))
	}

	req := armresourcegraph.QueryRequest{
		Query:         to.Ptr(connectionTestQuery),
		Subscriptions: subs,
		Options: &armresourcegraph.QueryRequestOptions{
			ResultFormat: to.Ptr(armresourcegraph.ResultFormatObjectArray),
		},
	}

	_, err := f.query(ctx, req)
	return err
}

func parseSnapshot(fields map[string]any, subscriptionID string) domain.ResourceSnapshot {
	snap := domain.ResourceSnapshot{
		ID:             stringField(fields, "id"),
		Name:           stringField(fields, "name"),
		Type:           stringField(fields, "type"),
		ResourceGroup:  stringField(fields, "resourceGroup"),
		Location:       stringField(fields, "location"),
		SubscriptionID: stringField(fields, "subscriptionId"),
		Kind:           stringField(fields, "kind"),
		Tags:           map[string]string{},
	}
	if snap.SubscriptionID == "" {
		snap.SubscriptionID = subscriptionID
	}

	if tags, ok := fields["tags"].(map[string]any); ok {
		for k, v := range tags {
			if s, ok := v.(string); ok {
				snap.Tags[k] = s
			} else {
				snap.Tags[k] = fmt.Sprintf("%v", v)
			}
		}
	}

	// sku arrives either as a plain string or an object with a name field.
	switch sku := fields["sku"].(type) {
	case string:
		snap.SKU = sku
	case map[string]any:
		snap.SKU = stringField(sku, "name")
	}

	return snap
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
