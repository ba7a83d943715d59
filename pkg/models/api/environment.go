package api

import "time"

type Environment struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TenantID        string     `json:"tenant_id"`
	SubscriptionIDs []string   `json:"subscription_ids"`
	LastTestAt      *time.Time `json:"last_test_at,omitempty"`
	LastTestOK      *bool      `json:"last_test_ok,omitempty"`
}

type ConnectionTestResponse struct {
	OK           bool   `json:"ok"`
	AccessStatus string `json:"access_status"`
	Detail       string `json:"detail,omitempty"`
}
