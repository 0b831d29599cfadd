// Package wiretime implements the three timestamp encodings generated
// marshalling code selects between: fractional seconds since the epoch, an
// RFC3339-style date-time, and the HTTP date format. Formatting always
// normalizes to UTC so round-trips are canonical.
package wiretime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Format names a timestamp encoding. The zero value is not a valid format;
// generators resolve the member override or the protocol default before
// emitting a leaf codec call.
type Format string

const (
	EpochSeconds Format = "epoch-seconds"
	DateTime     Format = "date-time"
	HTTPDate     Format = "http-date"
)

// dateTimeLayout keeps millisecond precision; trailing zeros are not trimmed
// so output is stable.
const dateTimeLayout = "2006-01-02T15:04:05.999Z07:00"

// httpDateLayout is the IMF-fixdate form required on the wire; parsing also
// accepts the obsolete RFC850 and asctime forms.
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Valid reports whether f names a supported encoding.
func (f Format) Valid() bool {
	switch f {
	case EpochSeconds, DateTime, HTTPDate:
		return true
	}
	return false
}

// Format renders t in the encoding f.
func (f Format) Format(t time.Time) (string, error) {
	switch f {
	case EpochSeconds:
		return FormatEpochSeconds(t), nil
	case DateTime:
		return FormatDateTime(t), nil
	case HTTPDate:
		return FormatHTTPDate(t), nil
	}
	return "", fmt.Errorf("wiretime: unknown format %q", string(f))
}

// Parse decodes s in the encoding f.
func (f Format) Parse(s string) (time.Time, error) {
	switch f {
	case EpochSeconds:
		return ParseEpochSeconds(s)
	case DateTime:
		return ParseDateTime(s)
	case HTTPDate:
		return ParseHTTPDate(s)
	}
	return time.Time{}, fmt.Errorf("wiretime: unknown format %q", string(f))
}

// FormatEpochSeconds renders seconds since the Unix epoch with millisecond
// precision, trimming a zero fractional part ("1515531081.123", "1515531081").
func FormatEpochSeconds(t time.Time) string {
	ms := t.UnixMilli()
	sec, frac := ms/1000, ms%1000
	if frac < 0 {
		sec--
		frac += 1000
	}
	if frac == 0 {
		return strconv.FormatInt(sec, 10)
	}
	s := fmt.Sprintf("%d.%03d", sec, frac)
	return strings.TrimRight(s, "0")
}

// ParseEpochSeconds accepts integral or fractional epoch seconds.
func ParseEpochSeconds(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("wiretime: invalid epoch-seconds %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("wiretime: invalid epoch-seconds %q", s)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

// FormatDateTime renders an RFC3339 date-time in UTC with millisecond
// precision.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeLayout)
}

// ParseDateTime accepts RFC3339 with any sub-second precision and offset.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("wiretime: invalid date-time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatHTTPDate renders an IMF-fixdate ("Tue, 29 Apr 2014 18:30:38 GMT").
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(httpDateLayout)
}

// ParseHTTPDate accepts IMF-fixdate and the obsolete forms HTTP parsers must
// tolerate.
func ParseHTTPDate(s string) (time.Time, error) {
	for _, layout := range []string{httpDateLayout, time.RFC850, time.ANSIC} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("wiretime: invalid http-date %q", s)
}
