package roster

import (
	"context"
	"fmt"
	"net/http"

	"github.com/DoyleJ11/operator-board/internal/source"
)

// LoadError reports an unreachable or malformed roster asset.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load roster %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads and parses the roster asset at location. Callers are expected
// to fall back to Empty() on error.
func Load(ctx context.Context, client *http.Client, location string) (*Index, error) {
	data, err := source.Read(ctx, client, location)
	if err != nil {
		return nil, &LoadError{Source: location, Err: err}
	}
	idx, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Source: location, Err: err}
	}
	return idx, nil
}
