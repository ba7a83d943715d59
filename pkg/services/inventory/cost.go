package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
)

// CostCollector gathers per-resource spend for one subscription. The data is
// advisory input to the cost analyzer; collection failures degrade the
// assessment (no cost scoring) rather than failing it.
type CostCollector interface {
	Collect(ctx context.Context, subscriptionID string, days int) ([]domain.CostRow, error)
}

// CostCollectorFactory builds a collector for a resolved credential.
type CostCollectorFactory func(cred azcore.TokenCredential) (CostCollector, error)

type armCostCollector struct {
	factory *armcostmanagement.ClientFactory
}

func NewCostCollector(cred azcore.TokenCredential) (CostCollector, error) {
	factory, err := armcostmanagement.NewClientFactory(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost management client factory: %w", err)
	}
	return &armCostCollector{factory: factory}, nil
}

func (c *armCostCollector) Collect(ctx context.Context, subscriptionID string, days int) ([]domain.CostRow, error) {
	client := c.factory.NewQueryClient()
	scope := fmt.Sprintf("/subscriptions/%s", subscriptionID)

	timeFrom := time.Now().AddDate(0, 0, -days)
	timeTo := time.Now()

	exportType := armcostmanagement.ExportTypeActualCost
	timeframe := armcostmanagement.TimeframeTypeCustom
	granularity := armcostmanagement.GranularityType("None")
	dimension := armcostmanagement.QueryColumnTypeDimension
	sum := armcostmanagement.FunctionTypeSum

	params := armcostmanagement.QueryDefinition{
		Type:      &exportType,
		Timeframe: &timeframe,
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &timeFrom,
			To:   &timeTo,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Granularity: &granularity,
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     to.Ptr("Cost"),
					Function: &sum,
				},
			},
			Grouping: []*armcostmanagement.QueryGrouping{
				{
					Name: to.Ptr("ResourceId"),
					Type: &dimension,
				},
			},
		},
	}

	result, err := client.Usage(ctx, scope, params, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query costs: %w", err)
	}

	var rows []domain.CostRow
	for _, row := range result.Properties.Rows {
		if len(row) < 2 {
			continue
		}
		amount, ok := row[0].(float64)
		if !ok {
			continue
		}
		resourceID := fmt.Sprintf("%v", row[1])

		currency := "USD"
		if len(row) >= 3 {
			currency = fmt.Sprintf("%v", row[2])
		}

		rows = append(rows, domain.CostRow{
			ResourceID:     resourceID,
			SubscriptionID: subscriptionID,
			Amount:         amount,
			Currency:       currency,
		})
	}
	return rows, nil
}
