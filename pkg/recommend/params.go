package recommend

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidParam marks a request parameter that failed parsing or
// validation. Handlers map it to a client error.
var ErrInvalidParam = errors.New("invalid parameter")

var validate = validator.New()

// Params are the engine's request parameters, parsed and validated once at
// the boundary.
type Params struct {
	MinRating      int     `json:"min_rating" validate:"gte=0,lte=10"`
	YearWindow     int     `json:"year_window" validate:"gt=0"`
	MinVoteAverage float64 `json:"min_vote_average" validate:"gte=0"`
	MinVoteCount   int     `json:"min_vote_count" validate:"gte=0"`
	Pages          int     `json:"pages" validate:"gte=1,lte=3"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		MinRating:      7,
		YearWindow:     10,
		MinVoteAverage: 7.0,
		MinVoteCount:   200,
		Pages:          2,
	}
}

// paramBounds is the human-readable constraint per field, keyed by the
// query parameter name.
var paramBounds = map[string]string{
	"MinRating":      "min_rating must be between 0 and 10",
	"YearWindow":     "year_window must be greater than 0",
	"MinVoteAverage": "min_vote_average must be >= 0",
	"MinVoteCount":   "min_vote_count must be >= 0",
	"Pages":          "pages must be between 1 and 3",
}

// ParseParams reads engine parameters from query values on top of the given
// defaults. Non-numeric or out-of-range values are a hard failure; no
// clamping happens here.
func ParseParams(values url.Values, defaults Params) (Params, error) {
	p := defaults

	if v := values.Get("min_rating"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: min_rating must be an integer", ErrInvalidParam)
		}
		p.MinRating = n
	}
	if v := values.Get("year_window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: year_window must be an integer", ErrInvalidParam)
		}
		p.YearWindow = n
	}
	if v := values.Get("min_vote_average"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%w: min_vote_average must be a number", ErrInvalidParam)
		}
		p.MinVoteAverage = f
	}
	if v := values.Get("min_vote_count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: min_vote_count must be an integer", ErrInvalidParam)
		}
		p.MinVoteCount = n
	}
	if v := values.Get("pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: pages must be an integer", ErrInvalidParam)
		}
		p.Pages = n
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate checks the parameter bounds.
func (p Params) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := paramBounds[verrs[0].StructField()]; ok {
			return fmt.Errorf("%w: %s", ErrInvalidParam, msg)
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidParam, err)
}
