package scenario

// ScenarioTransfer is the transfer under test. Amount and Balance are in
// whole tokens, e.g. 1.5 for 1.5 SOL.
type ScenarioTransfer struct {
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Amount    float64 `yaml:"amount"`
	Input     string  `yaml:"input,omitempty"`
	ConfirmTo string  `yaml:"confirm_to,omitempty"`
}

// Case is one test case within a scenario.
type Case struct {
	Transfer ScenarioTransfer `yaml:"transfer"`
	Balance  float64          `yaml:"balance"`
	Expect   string           `yaml:"expect"`             // approve, confirm or block
	Risk     string           `yaml:"risk,omitempty"`     // LOW, MEDIUM, HIGH, CRITICAL
	Contains []string         `yaml:"contains,omitempty"` // substrings of any reason
}

// Scenario is a named collection of transfer test cases. The optional
// fields override the loaded policy for this file only.
type Scenario struct {
	Name          string   `yaml:"name"`
	StrictMode    *bool    `yaml:"strict_mode,omitempty"`
	TokenPriceUSD *float64 `yaml:"token_price_usd,omitempty"`
	Decimals      *uint8   `yaml:"decimals,omitempty"`
	Cases         []Case   `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index        int      `json:"index"`
	Passed       bool     `json:"passed"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	Amount       string   `json:"amount"`
	Expected     string   `json:"expected"`
	Actual       string   `json:"actual"`
	ExpectedRisk string   `json:"expected_risk,omitempty"`
	ActualRisk   string   `json:"actual_risk"`
	Missing      []string `json:"missing,omitempty"`
	Reason       string   `json:"reason"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
