package deposit

import "github.com/dwarvesf/btc-forwarder/internal/model"

// ListDepositsRequest captures the optional query filters for deposit listing
type ListDepositsRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// ListDepositsResponse wraps the filtered deposit page
type ListDepositsResponse struct {
	Total    int             `json:"total"`
	Deposits []model.Deposit `json:"deposits"`
}
