// Package extract resolves an attached document to plain text, either via
// the remote extraction collaborator or a local document loader.
package extract

import "context"

// Extractor is the collaborator contract used by the pipeline. An empty
// string with a nil error means the file held no readable text; the
// pipeline treats that as a terminal, user-visible condition, not success.
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}
