package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses connections from a JSON array.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed connections.
func (p *JSONParser) Parse(r io.Reader) ([]RawConnection, error) {
	var conns []RawConnection

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&conns); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Array index + 1
	for i := range conns {
		conns[i].LineNum = i + 1
	}

	return conns, nil
}
