package httpx

import (
	"net/url"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// DateRange reads optional from/to query parameters in YYYY-MM-DD form.
func DateRange(q url.Values) (*time.Time, *time.Time, error) {
	from, err := optionalDate(q, "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := optionalDate(q, "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func optionalDate(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, shared.Invalid(key, "must be YYYY-MM-DD")
	}
	return &t, nil
}
