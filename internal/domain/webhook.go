package domain

// UnknownTitle is used when an inbound event carries no event.data.title.
const UnknownTitle = "N/A"

// ProcessedData summarizes what the relay derived from one event.
type ProcessedData struct {
	Title     string `json:"title"`
	OwnerName string `json:"owner_name"`
	OwnerID   string `json:"owner_id"`
}

// WebhookResult is the response body for a processed event.
type WebhookResult struct {
	Status        string        `json:"status"`
	ProcessedData ProcessedData `json:"processed_data"`
	SlackSent     bool          `json:"slack_sent"`
}

// WebhookResultSuccess is the only status a processed event reports.
const WebhookResultSuccess = "success"
