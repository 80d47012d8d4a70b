package orcid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PartialDate is an ORCID date where any suffix may be absent: a bare year,
// year+month, or a full year/month/day. Zero fields mean "absent".
type PartialDate struct {
	Year  int
	Month int
	Day   int
}

// IsZero reports whether no part of the date is set.
func (d PartialDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d PartialDate) String() string {
	switch {
	case d.IsZero():
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

type dateValue struct {
	Value string `json:"value"`
}

type orcidDate struct {
	Year  *dateValue `json:"year"`
	Month *dateValue `json:"month"`
	Day   *dateValue `json:"day"`
}

// MarshalJSON renders the ORCID dict form, e.g.
// {"year":{"value":"2003"},"month":null,"day":null}.
func (d PartialDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	od := orcidDate{}
	if d.Year != 0 {
		od.Year = &dateValue{Value: fmt.Sprintf("%04d", d.Year)}
	}
	if d.Month != 0 {
		od.Month = &dateValue{Value: fmt.Sprintf("%02d", d.Month)}
	}
	if d.Day != 0 {
		od.Day = &dateValue{Value: fmt.Sprintf("%02d", d.Day)}
	}
	return json.Marshal(od)
}

// UnmarshalJSON parses the ORCID dict form back losslessly.
func (d *PartialDate) UnmarshalJSON(b []byte) error {
	*d = PartialDate{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var od orcidDate
	if err := json.Unmarshal(b, &od); err != nil {
		return err
	}
	parse := func(v *dateValue) (int, error) {
		if v == nil || v.Value == "" {
			return 0, nil
		}
		return strconv.Atoi(v.Value)
	}
	var err error
	if d.Year, err = parse(od.Year); err != nil {
		return fmt.Errorf("invalid year: %w", err)
	}
	if d.Month, err = parse(od.Month); err != nil {
		return fmt.Errorf("invalid month: %w", err)
	}
	if d.Day, err = parse(od.Day); err != nil {
		return fmt.Errorf("invalid day: %w", err)
	}
	return nil
}
