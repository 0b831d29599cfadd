package wiretime

import (
	"testing"
	"time"
)

func TestFormatEpochSeconds(t *testing.T) {
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Unix(1515531081, 0), "1515531081"},
		{time.Unix(1515531081, 123_000_000), "1515531081.123"},
		{time.Unix(1515531081, 100_000_000), "1515531081.1"},
		{time.Unix(0, 0), "0"},
	}
	for _, c := range cases {
		if got := FormatEpochSeconds(c.in); got != c.want {
			t.Errorf("FormatEpochSeconds(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseEpochSecondsFractional(t *testing.T) {
	got, err := ParseEpochSeconds("1515531081.123")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Unix(1515531081, 123_000_000).UTC()
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if _, err := ParseEpochSeconds("not-a-number"); err == nil {
		t.Fatalf("want error for garbage input")
	}
	if _, err := ParseEpochSeconds("NaN"); err == nil {
		t.Fatalf("want error for NaN")
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	in := time.Date(2014, 4, 29, 18, 30, 38, 123_000_000, time.UTC)
	s := FormatDateTime(in)
	if s != "2014-04-29T18:30:38.123Z" {
		t.Fatalf("FormatDateTime = %q", s)
	}
	back, err := ParseDateTime(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !back.Equal(in) {
		t.Fatalf("round trip: got %v, want %v", back, in)
	}
}

func TestParseDateTimeNormalizesOffset(t *testing.T) {
	got, err := ParseDateTime("2014-04-29T20:30:38+02:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2014, 4, 29, 18, 30, 38, 0, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Fatalf("got %v in %v, want %v in UTC", got, got.Location(), want)
	}
}

func TestHTTPDateAcceptsObsoleteForms(t *testing.T) {
	want := time.Date(1994, 11, 6, 8, 49, 37, 0, time.UTC)
	for _, s := range []string{
		"Sun, 06 Nov 1994 08:49:37 GMT",
		"Sunday, 06-Nov-94 08:49:37 GMT",
		"Sun Nov  6 08:49:37 1994",
	} {
		got, err := ParseHTTPDate(s)
		if err != nil {
			t.Fatalf("ParseHTTPDate(%q): %v", s, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseHTTPDate(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseHTTPDate("tomorrow"); err == nil {
		t.Fatalf("want error for garbage input")
	}
}

func TestFormatDispatch(t *testing.T) {
	in := time.Date(2014, 4, 29, 18, 30, 38, 0, time.UTC)
	for f, want := range map[Format]string{
		EpochSeconds: "1398796238",
		DateTime:     "2014-04-29T18:30:38Z",
		HTTPDate:     "Tue, 29 Apr 2014 18:30:38 GMT",
	} {
		if !f.Valid() {
			t.Fatalf("%s should be valid", f)
		}
		got, err := f.Format(in)
		if err != nil || got != want {
			t.Fatalf("%s.Format = %q, %v; want %q", f, got, err, want)
		}
		back, err := f.Parse(got)
		if err != nil || !back.Equal(in) {
			t.Fatalf("%s.Parse(%q) = %v, %v", f, got, back, err)
		}
	}
	if Format("nanos").Valid() {
		t.Fatalf("unknown format must be invalid")
	}
	if _, err := Format("nanos").Format(in); err == nil {
		t.Fatalf("want error for unknown format")
	}
}
