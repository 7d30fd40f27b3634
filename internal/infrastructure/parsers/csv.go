package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// AttributeSeparator separates attributes inside the CSV attributes column.
const AttributeSeparator = ";"

// CSVParser parses connections from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed connections.
// Expected columns: from, type, to, tree, notes, attributes
func (p *CSVParser) Parse(r io.Reader) ([]RawConnection, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	for _, col := range []string{"from", "type", "to"} {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawConnection, error) {
	var conns []RawConnection
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		conns = append(conns, RawConnection{
			From:       getColumn(record, colIndex, "from"),
			Type:       getColumn(record, colIndex, "type"),
			To:         getColumn(record, colIndex, "to"),
			Tree:       getColumn(record, colIndex, "tree"),
			Notes:      getColumn(record, colIndex, "notes"),
			Attributes: splitAttributes(getColumn(record, colIndex, "attributes")),
			LineNum:    lineNum,
		})
	}

	return conns, nil
}

func splitAttributes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var attrs []string
	for _, a := range strings.Split(s, AttributeSeparator) {
		if a = strings.TrimSpace(a); a != "" {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
