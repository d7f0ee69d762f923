package models

// TokenUsage is a provider cost row joined with its daily token counts
type TokenUsage struct {
	ID           string `db:"id"`
	InputTokens  int64  `db:"input_tokens"`
	OutputTokens int64  `db:"output_tokens"`
	EventDate    string `db:"event_date"`
}

// UnmatchedCost is an active provider cost row with no usage for the day
type UnmatchedCost struct {
	ID    string `db:"id"`
	Model string `db:"model"`
	URL   string `db:"url"`
}

// GPUHourCost is the hourly price of the GPUs backing a cluster
type GPUHourCost struct {
	Model   string  `db:"model"`
	Cluster string  `db:"cluster"`
	CardNum int     `db:"card_num"`
	Price   float64 `db:"price"`
}

// ProviderCost is the derived cost per million tokens of a provider
type ProviderCost struct {
	ID            string
	GPUDailyCost  float64
	InputCostMil  float64
	OutputCostMil float64
}
