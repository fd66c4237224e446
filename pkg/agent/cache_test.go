package agent

import (
	"testing"

	"github.com/leadergroupsaudi/chatkit-go/pkg/core/chat"
)

func msg(id, text string) chat.Message {
	return chat.Message{ID: id, Sender: chat.SenderAgent, Text: text}
}

func TestAddOlderPagePrepends(t *testing.T) {
	t.Parallel()

	c := NewPageCache()
	c.AddOlderPage([]chat.Message{msg("3", "newer a"), msg("4", "newer b")})
	c.AddOlderPage([]chat.Message{msg("1", "older a"), msg("2", "older b")})

	got := c.Messages()
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	for i, want := range []string{"1", "2", "3", "4"} {
		if got[i].ID != want {
			t.Errorf("messages[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestAppendLiveGoesToNewestPage(t *testing.T) {
	t.Parallel()

	c := NewPageCache()
	c.AddOlderPage([]chat.Message{msg("1", "history")})
	if !c.AppendLive(msg("2", "live")) {
		t.Fatal("live message rejected")
	}

	got := c.Messages()
	if len(got) != 2 || got[1].ID != "2" {
		t.Fatalf("messages = %+v", got)
	}
}

func TestDuplicateIDsCollapseAcrossPages(t *testing.T) {
	t.Parallel()

	c := NewPageCache()
	c.AppendLive(msg("5", "live first"))
	admitted := c.AddOlderPage([]chat.Message{msg("4", "history"), msg("5", "refetched")})
	if admitted != 1 {
		t.Errorf("admitted = %d, want 1", admitted)
	}
	if c.AppendLive(msg("4", "echo")) {
		t.Error("duplicate live message admitted")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestResetEmptiesCache(t *testing.T) {
	t.Parallel()

	c := NewPageCache()
	c.AppendLive(msg("1", "x"))
	c.Reset()
	if c.Len() != 0 {
		t.Errorf("len after reset = %d", c.Len())
	}
	if !c.AppendLive(msg("1", "x")) {
		t.Error("reset did not clear the dedup set")
	}
}
