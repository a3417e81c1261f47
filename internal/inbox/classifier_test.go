package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/circuitbreaker"
)

// Without an API key the classifier runs on keyword matching alone, which is
// the interesting path to pin down: it must still catch every opt-out.
func keywordClassifier() *Classifier {
	return NewClassifier("", "gpt-4o-mini")
}

func TestClassifyOptOutShortcut(t *testing.T) {
	c := keywordClassifier()
	cases := []struct{ subject, body string }{
		{"Re: hello", "Please remove me from your list."},
		{"Unsubscribe", ""},
		{"", "STOP EMAILING me immediately"},
		{"re: agents", "take me off this list, thanks"},
	}
	for _, tc := range cases {
		if got := c.Classify(context.Background(), tc.subject, tc.body); got != models.ReplyOptOut {
			t.Fatalf("Classify(%q, %q) = %s, want opt_out", tc.subject, tc.body, got)
		}
	}
}

func TestClassifyDeferralShortcut(t *testing.T) {
	c := keywordClassifier()
	got := c.Classify(context.Background(), "Automatic reply: Out of Office", "I am on vacation until Sept 1.")
	if got != models.ReplyDeferral {
		t.Fatalf("classification = %s, want deferral", got)
	}
}

func TestClassifyOptOutBeatsDeferral(t *testing.T) {
	// Both phrase sets match; the opt-out check runs first.
	c := keywordClassifier()
	got := c.Classify(context.Background(), "Out of office", "Also, unsubscribe me please.")
	if got != models.ReplyOptOut {
		t.Fatalf("classification = %s, want opt_out", got)
	}
}

func TestClassifyInterestKeywords(t *testing.T) {
	c := keywordClassifier()
	got := c.Classify(context.Background(), "Re: Quick question", "Sure, do you have time for a quick demo next week?")
	if got != models.ReplyInterest {
		t.Fatalf("classification = %s, want interest", got)
	}
}

func TestClassifyRejectKeywords(t *testing.T) {
	c := keywordClassifier()
	got := c.Classify(context.Background(), "Re: Quick question", "No thanks.")
	if got != models.ReplyIrrelevance {
		t.Fatalf("classification = %s, want irrelevance", got)
	}
}

func TestClassifyDefaultsToIrrelevance(t *testing.T) {
	c := keywordClassifier()
	got := c.Classify(context.Background(), "FYI", "Forwarding this to the team.")
	if got != models.ReplyIrrelevance {
		t.Fatalf("classification = %s, want irrelevance", got)
	}
}

// A tripped breaker must short-circuit the model call and leave keyword
// matching as the routing path.
func TestClassifyFallsBackWhenBreakerIsOpen(t *testing.T) {
	c := NewClassifier("test-key", "gpt-4o-mini")

	boom := errors.New("model down")
	for i := 0; i < 5; i++ {
		c.breaker.Execute(context.Background(), func() error { return boom })
	}
	if c.breaker.State() != circuitbreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", c.breaker.State())
	}

	got := c.Classify(context.Background(), "Re: Quick question", "Sure, do you have time for a quick demo?")
	if got != models.ReplyInterest {
		t.Fatalf("classification = %s, want interest via keyword fallback", got)
	}
}
