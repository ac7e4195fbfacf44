// Package request normalizes loose inference request JSON into a typed
// record. Callers send fields as whatever JSON type their tooling produced,
// so every field is coerced individually: numbers may arrive as numeric
// strings, booleans as "yes"/"no" strings or 0/1 numbers, and the neighbor
// count as a float that truncates to an integer. Unknown fields are ignored.
package request

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/storeline/siteval-cli/internal/faults"
)

// Request is one normalized inference request.
type Request struct {
	Latitude              float64 `json:"Latitude"`
	Longitude             float64 `json:"Longitude"`
	LocationSquareFootage float64 `json:"LocationSquareFootage"`
	PopulationDensity     string  `json:"PopulationDensity"`
	PropBoomers           string  `json:"PropBoomers"`
	HighlyEducated        bool    `json:"HighlyEducated"`
	ManyWidows            bool    `json:"ManyWidows"`
	LargePopulation       bool    `json:"LargePopulation"`
	NeighborsToUse        int     `json:"NeighborsToUse"`
}

// Normalize parses raw JSON and coerces each known field to its declared
// type. The first field that is missing or uncoercible fails the whole
// request with a faults.ValidationError naming it.
func Normalize(raw []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, faults.NewValidationError("request", "body is not a JSON object")
	}

	req := &Request{}
	var err error

	if req.Latitude, err = floatField(obj, "Latitude"); err != nil {
		return nil, err
	}
	if req.Longitude, err = floatField(obj, "Longitude"); err != nil {
		return nil, err
	}
	if req.LocationSquareFootage, err = floatField(obj, "LocationSquareFootage"); err != nil {
		return nil, err
	}
	if req.PopulationDensity, err = stringField(obj, "PopulationDensity"); err != nil {
		return nil, err
	}
	if req.PropBoomers, err = stringField(obj, "PropBoomers"); err != nil {
		return nil, err
	}
	if req.HighlyEducated, err = boolField(obj, "HighlyEducated"); err != nil {
		return nil, err
	}
	if req.ManyWidows, err = boolField(obj, "ManyWidows"); err != nil {
		return nil, err
	}
	if req.LargePopulation, err = boolField(obj, "LargePopulation"); err != nil {
		return nil, err
	}
	if req.NeighborsToUse, err = intField(obj, "NeighborsToUse"); err != nil {
		return nil, err
	}

	return req, nil
}

func floatField(obj map[string]any, field string) (float64, error) {
	v, ok := obj[field]
	if !ok {
		return 0, faults.NewValidationError(field, "missing")
	}
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, faults.NewValidationError(field, "cannot parse "+strconv.Quote(n.String())+" as number")
		}
		return finite(f, field)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, faults.NewValidationError(field, "cannot parse "+strconv.Quote(n)+" as number")
		}
		return finite(f, field)
	default:
		return 0, faults.NewValidationError(field, "cannot coerce to number")
	}
}

// finite rejects NaN and infinities, which parse fine but poison every
// downstream distance and dot product.
func finite(f float64, field string) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, faults.NewValidationError(field, "not a finite number")
	}
	return f, nil
}

func stringField(obj map[string]any, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", faults.NewValidationError(field, "missing")
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), nil
	case json.Number:
		return s.String(), nil
	default:
		return "", faults.NewValidationError(field, "cannot coerce to string")
	}
}

func boolField(obj map[string]any, field string) (bool, error) {
	v, ok := obj[field]
	if !ok {
		return false, faults.NewValidationError(field, "missing")
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0":
			return false, nil
		}
		return false, faults.NewValidationError(field, "cannot parse "+strconv.Quote(b)+" as boolean")
	case json.Number:
		f, err := b.Float64()
		if err != nil {
			return false, faults.NewValidationError(field, "cannot parse "+strconv.Quote(b.String())+" as boolean")
		}
		return f != 0, nil
	default:
		return false, faults.NewValidationError(field, "cannot coerce to boolean")
	}
}

func intField(obj map[string]any, field string) (int, error) {
	f, err := floatField(obj, field)
	if err != nil {
		return 0, err
	}
	return int(math.Trunc(f)), nil
}
