// Package respond shapes prediction results into the documented response
// contract.
package respond

import (
	"fmt"

	"github.com/storeline/siteval-cli/internal/request"
)

// SquareMetersPerSquareFoot converts the request's floor area; 1 ft² is
// exactly 0.09290304 m².
const SquareMetersPerSquareFoot = 0.09290304

// Response is the wire shape of one prediction. Key names are part of the
// published contract, spaces included.
type Response struct {
	SquareMeters     float64 `json:"Square Meters"`
	PredictedRevenue float64 `json:"Predicted Revenue"`
}

// Format builds the response for a request and its predicted revenue,
// converting the requested floor area to square meters.
func Format(req *request.Request, prediction float64) *Response {
	return &Response{
		SquareMeters:     req.LocationSquareFootage * SquareMetersPerSquareFoot,
		PredictedRevenue: prediction,
	}
}

// FormatRevenue formats a revenue amount in human-readable form for
// terminal summaries.
func FormatRevenue(amount float64) string {
	switch {
	case amount >= 1_000_000_000:
		return fmt.Sprintf("$%.1fB", amount/1_000_000_000)
	case amount >= 1_000_000:
		return fmt.Sprintf("$%.1fM", amount/1_000_000)
	case amount >= 1_000:
		return fmt.Sprintf("$%.0fK", amount/1_000)
	default:
		return fmt.Sprintf("$%.0f", amount)
	}
}
