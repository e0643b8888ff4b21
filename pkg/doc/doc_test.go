package doc

import "testing"

func TestTopicsLoad(t *testing.T) {
	topics, err := Topics()
	if err != nil {
		t.Fatalf("Topics failed: %v", err)
	}
	if len(topics) == 0 {
		t.Fatal("expected embedded topics")
	}

	slugs := []string{
		"file-context",
		"generation-settings",
		"history-rework",
	}
	for _, slug := range slugs {
		topic, err := Get(slug)
		if err != nil {
			t.Fatalf("expected slug %q to load: %v", slug, err)
		}
		if topic.Title == "" {
			t.Fatalf("expected slug %q to have a title", slug)
		}
		if topic.Body == "" {
			t.Fatalf("expected slug %q to have a body", slug)
		}
	}
}

func TestGetUnknownTopic(t *testing.T) {
	if _, err := Get("no-such-topic"); err == nil {
		t.Fatal("expected an error for an unknown topic")
	}
}
