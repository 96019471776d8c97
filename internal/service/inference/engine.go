// Package inference produces an assistant reply for one prepared query.
package inference

import (
	"context"

	"docentgo/internal/models"
)

// Request is one inference call: the directive-prefixed query, the full
// prior history in order, and any text extracted from an attached file.
type Request struct {
	Query       string
	History     []models.Message
	FileContext string
}

// Response is the collaborator's answer plus the sources it cited, in order.
type Response struct {
	Answer  string
	Sources []string
}

// Engine is the collaborator contract used by the pipeline. Exactly one
// round trip per call; streaming is not part of this contract.
type Engine interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
