package ingest

import (
	"errors"
	"testing"
)

func TestParseBatch_CSVWithHeader(t *testing.T) {
	data := []byte("timestamp,src_ip,message\n2025-01-01T00:00:00Z,10.0.0.1,connection established\n2025-01-01T00:00:01Z,10.0.0.2,port scan detected\n")
	batch, err := ParseBatch("firewall.csv", data)
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("Got %d records, want 2", len(batch.Records))
	}
	if batch.Records[0].Fields["src_ip"] != "10.0.0.1" {
		t.Errorf("src_ip = %q", batch.Records[0].Fields["src_ip"])
	}
	if batch.Profile != ProfileIDSLog {
		t.Errorf("Profile = %q, want %q", batch.Profile, ProfileIDSLog)
	}
}

func TestParseBatch_FreeformLines(t *testing.T) {
	data := []byte("line one\n\nline two\r\nline three\n")
	batch, err := ParseBatch("app.log", data)
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if len(batch.Records) != 3 {
		t.Fatalf("Got %d records, want 3 (blank lines skipped)", len(batch.Records))
	}
	if batch.Records[1].Content() != "line two" {
		t.Errorf("Record content = %q", batch.Records[1].Content())
	}
	if batch.Profile != ProfileFreeform {
		t.Errorf("Profile = %q, want freeform", batch.Profile)
	}
}

func TestParseBatch_TabularTxt(t *testing.T) {
	// Exports saved as .txt still get column treatment when the first
	// rows line up.
	data := []byte("endpoint,status_code,detail\n/api/users,200,ok\n/api/login,401,failed login\n")
	batch, err := ParseBatch("export.txt", data)
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("Got %d records, want 2", len(batch.Records))
	}
	if batch.Records[0].Fields["endpoint"] != "/api/users" {
		t.Errorf("endpoint = %q", batch.Records[0].Fields["endpoint"])
	}
	if batch.Profile != ProfileServiceLog {
		t.Errorf("Profile = %q, want %q", batch.Profile, ProfileServiceLog)
	}
}

func TestParseBatch_Empty(t *testing.T) {
	for _, data := range [][]byte{nil, []byte(""), []byte("   \n \n")} {
		if _, err := ParseBatch("x.log", data); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("ParseBatch(%q) = %v, want ErrEmptyInput", data, err)
		}
	}
}

func TestParseBatch_HeaderOnlyCSV(t *testing.T) {
	// A lone header row must be rejected outright, never demoted to a
	// one-line freeform record of column names.
	for _, data := range [][]byte{
		[]byte("timestamp,src_ip,signature\n"),
		[]byte("timestamp,src_ip,signature"),
	} {
		if _, err := ParseBatch("ids_export.csv", data); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("ParseBatch(%q) = %v, want ErrEmptyInput", data, err)
		}
	}
}

func TestDetectProfile_FilenameFallback(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"ids_export.log", ProfileIDSLog},
		{"meter_readings.log", ProfileSensor},
		{"api_gateway.log", ProfileServiceLog},
		{"whatever.log", ProfileFreeform},
	}
	for _, c := range cases {
		if got := detectProfile(nil, c.filename); got != c.want {
			t.Errorf("detectProfile(%q) = %q, want %q", c.filename, got, c.want)
		}
	}
}
