package hawkeye

import (
	"strings"
	"testing"
)

func TestWebPageUploadControls(t *testing.T) {
	data, err := WebFS.ReadFile("web/templates/index.html")
	if err != nil {
		t.Fatalf("index.html not embedded: %v", err)
	}
	page := string(data)

	// Both the picker and drag-and-drop post to the same upload endpoint
	for _, want := range []string{
		`type="file"`,
		`addEventListener('drop'`,
		`e.dataTransfer.files[0]`,
		"/upload`, form)",
		"upload-error",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("index.html is missing %q", want)
		}
	}
}
