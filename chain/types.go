package chain

import "encoding/json"

// Wire types for the nodeos chain API subset the client uses.

type getTableRowsRequest struct {
	Code       string `json:"code"`
	Scope      string `json:"scope"`
	Table      string `json:"table"`
	LowerBound string `json:"lower_bound,omitempty"`
	UpperBound string `json:"upper_bound,omitempty"`
	Limit      int    `json:"limit"`
	Reverse    bool   `json:"reverse"`
	JSON       bool   `json:"json"`
}

type getTableRowsResult struct {
	Rows []json.RawMessage `json:"rows"`
	More bool              `json:"more"`
}

type getBlockRequest struct {
	BlockNumOrID string `json:"block_num_or_id"`
}

type signedBlock struct {
	Timestamp    string             `json:"timestamp"`
	BlockNum     uint32             `json:"block_num"`
	Transactions []blockTransaction `json:"transactions"`
}

type blockTransaction struct {
	Status string `json:"status"`
	// Deferred transactions show up as a bare id string instead of an
	// object, so this stays raw until inspected.
	Trx json.RawMessage `json:"trx"`
}

type packedTransaction struct {
	ID          string `json:"id"`
	Transaction struct {
		Actions []action `json:"actions"`
	} `json:"transaction"`
}

type action struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	// Decoded by nodeos when the contract ABI is available.
	Data json.RawMessage `json:"data"`
}

// trendingRow is a row of the contract's trending table, ordered by
// score through the table's secondary index.
type trendingRow struct {
	Score uint64          `json:"score"`
	Post  json.RawMessage `json:"post"`
}
