package party

import "time"

// MaxNameLen is counted in characters after trimming.
const MaxNameLen = 60

// Party is a customer whose ledger is tracked.
type Party struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Number    string    `json:"number"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields is the input for creating a party.
type Fields struct {
	Name    string `json:"name"`
	Number  string `json:"number"`
	Address string `json:"address"`
}

// Patch updates only the fields that are set.
type Patch struct {
	Name    *string `json:"name"`
	Number  *string `json:"number"`
	Address *string `json:"address"`
}
