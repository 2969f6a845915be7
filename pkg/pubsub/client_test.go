package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/clinicvax-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	cases := []struct {
		name    string
		project string
		kind    func(string, string) string
		input   string
		want    string
	}{
		{name: "topic id", project: "clinic", kind: topicResourceName, input: "budget-events", want: "projects/clinic/topics/budget-events"},
		{name: "topic full name", project: "other", kind: topicResourceName, input: "projects/clinic/topics/budget-events", want: "projects/clinic/topics/budget-events"},
		{name: "subscription id", project: "clinic", kind: subscriptionResourceName, input: " budget-sub ", want: "projects/clinic/subscriptions/budget-sub"},
		{name: "empty name", project: "clinic", kind: topicResourceName, input: "  ", want: ""},
		{name: "no project", project: "", kind: topicResourceName, input: "budget-events", want: ""},
		{name: "topic path is not a subscription", project: "clinic", kind: subscriptionResourceName, input: "projects/x/topics/y", want: "projects/clinic/subscriptions/projects/x/topics/y"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.kind(tc.project, tc.input); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	if got := clientOptions(config.GCPConfig{}); len(got) != 0 {
		t.Fatalf("expected no options without credentials, got %d", len(got))
	}
	if got := clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"}); len(got) != 1 {
		t.Fatalf("expected a single credential option, got %d", len(got))
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{BudgetsTopic: "t"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected errProjectIDRequired, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("topic") != nil {
		t.Fatalf("nil client should not return a publisher")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping on nil client to fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op: %v", err)
	}
}
