package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    interface{}
	}{
		{"JobID", KeyJobID, "123", JobID("123")},
		{"ReviewID", KeyReviewID, "r-1", ReviewID("r-1")},
		{"Step", KeyStep, "clone_repo", Step("clone_repo")},
		{"Event", KeyEvent, "clone_repo_start", Event("clone_repo_start")},
		{"Status", KeyStatus, "success", Status("success")},
		{"Component", KeyComponent, "worker", Component("worker")},
		{"RepoURL", KeyRepo, "https://github.com/a/b", RepoURL("https://github.com/a/b")},
		{"Image", KeyImage, "arandu-job-1:latest", Image("arandu-job-1:latest")},
		{"Queue", KeyQueue, "reviews", Queue("reviews")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
		{"AID", KeyAID, "abc123DEF-_x", AID("abc123DEF-_x")},
	}

	for _, tc := range cases {
		a := tc.attr.(slog.Attr)
		if a.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, a.Key)
		}
		if got := a.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
	if v := HTTPStatus(200); v.Key != KeyHTTPStatus {
		t.Fatalf("HTTPStatus key mismatch: %s", v.Key)
	}
	if v := Version(3); v.Key != KeyVersion {
		t.Fatalf("Version key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
