package types

import "testing"

func TestDateTimeReplace(t *testing.T) {
	dt := NewDateTime()
	data := make([]byte, dt.DataSize())
	if err := dt.SetYMD(data, 2013, 2, 28); err != nil {
		t.Fatalf("SetYMD: %v", err)
	}

	year, month, day := 2000, -1, -1
	if err := dt.Replace(data, &year, &month, &day); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	gy, gm, gd := dt.YMD(data)
	if gy != 2000 || gm != 12 || gd != 31 {
		t.Errorf("Replace(year=2000, month=-1, day=-1) = %04d-%02d-%02d, want 2000-12-31", gy, gm, gd)
	}
}

func TestDateTimeReplaceRejectsInvalidMonth(t *testing.T) {
	dt := NewDateTime()
	data := make([]byte, dt.DataSize())
	if err := dt.SetYMD(data, 2020, 1, 1); err != nil {
		t.Fatalf("SetYMD: %v", err)
	}
	month := 13
	if err := dt.Replace(data, nil, &month, nil); err == nil {
		t.Fatal("expected an error replacing month with an out-of-range value")
	}
}

func TestDateTimeSetYMDRejectsInvalidDate(t *testing.T) {
	dt := NewDateTime()
	data := make([]byte, dt.DataSize())
	if err := dt.SetYMD(data, 2021, 2, 29); err == nil {
		t.Fatal("expected an error for Feb 29 in a non-leap year")
	}
}

func TestDateTimePrintData(t *testing.T) {
	dt := NewDateTime()
	data := make([]byte, dt.DataSize())
	if err := dt.SetYMD(data, 1999, 12, 31); err != nil {
		t.Fatalf("SetYMD: %v", err)
	}
	if got := dt.PrintData(nil, data); got != "1999-12-31" {
		t.Errorf("PrintData = %q, want %q", got, "1999-12-31")
	}
}

// TestDateTimeMicrosecondRoundTrip is
// "2013-02-16T12:13:19.012345".cast(datetime[usec]).as_string() ==
// "2013-02-16T12:13:19.012345", matching
// test_datetime_type.cpp's ConvertToString case for datetime_unit_usecond.
func TestDateTimeMicrosecondRoundTrip(t *testing.T) {
	dt := NewDateTimeWithUnit("usec", "")
	data := make([]byte, dt.DataSize())
	const text = "2013-02-16T12:13:19.012345"
	if err := dt.ParseInto(data, text); err != nil {
		t.Fatalf("ParseInto: %v", err)
	}
	got, err := dt.Format(data)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got != text {
		t.Errorf("round trip = %q, want %q", got, text)
	}
}

// TestDateTimeConvertToStringPerUnit mirrors ConvertToString's other
// unit cases: hour/min/sec print no fractional part, msec/nsec keep
// their own digit count rather than always six.
func TestDateTimeConvertToStringPerUnit(t *testing.T) {
	cases := []struct {
		unit, tz, text string
	}{
		{"hour", "", "2013-02-16T12"},
		{"hour", "UTC", "2013-02-16T12Z"},
		{"min", "", "2013-02-16T12:13"},
		{"sec", "", "2013-02-16T12:13:19"},
		{"msec", "", "2013-02-16T12:13:19.012"},
		{"nsec", "", "2013-02-16T12:13:19.012345678"},
	}
	for _, c := range cases {
		dt := NewDateTimeWithUnit(c.unit, c.tz)
		data := make([]byte, dt.DataSize())
		if err := dt.ParseInto(data, c.text); err != nil {
			t.Fatalf("unit %q: ParseInto(%q): %v", c.unit, c.text, err)
		}
		got, err := dt.Format(data)
		if err != nil {
			t.Fatalf("unit %q: Format: %v", c.unit, err)
		}
		if got != c.text {
			t.Errorf("unit %q: round trip = %q, want %q", c.unit, got, c.text)
		}
	}
}

// TestDateTimeFields mirrors the Properties test's field-by-field
// decomposition of a live datetime['usec'] value.
func TestDateTimeFields(t *testing.T) {
	dt := NewDateTimeWithUnit("usec", "")
	data := make([]byte, dt.DataSize())
	if err := dt.ParseInto(data, "1963-02-28T16:12:14.123654"); err != nil {
		t.Fatalf("ParseInto: %v", err)
	}
	y, m, d, hh, mm, ss, nanos, err := dt.Fields(data)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if y != 1963 || m != 2 || d != 28 || hh != 16 || mm != 12 || ss != 14 || nanos != 123654000 {
		t.Errorf("Fields = %04d-%02d-%02d %02d:%02d:%02d.%09d, want 1963-02-28 16:12:14.123654000",
			y, m, d, hh, mm, ss, nanos)
	}
}

// TestDateTimeZuluRejectedForAbstractTimezone matches
// ValueCreationAbstractMinutes's EXPECT_THROW: parsing a "Z"-suffixed
// timestamp into an abstract-timezone datetime is an error, since the
// abstract zone carries no UTC-conversion semantics to reconcile it
// against.
func TestDateTimeZuluRejectedForAbstractTimezone(t *testing.T) {
	dt := NewDateTimeWithUnit("min", "")
	data := make([]byte, dt.DataSize())
	if err := dt.ParseInto(data, "2000-01-01T03:00Z"); err == nil {
		t.Fatal("expected an error parsing a Z-suffixed timestamp into an abstract-timezone datetime")
	}
}
