package activity

import (
	"encoding/json"
	"testing"
)

func TestIsKnownType(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{TypeNote, TypeImage, TypeAudio, TypeVideo} {
		if !IsKnownType(typ) {
			t.Fatalf("IsKnownType(%q) = false, want true", typ)
		}
	}
	if IsKnownType("Poll") {
		t.Fatal("IsKnownType(Poll) = true, want false")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	original := Activity{
		Type:      TypeNote,
		Actor:     &Entity{ID: "a"},
		Object:    &Object{Content: "hi"},
		To:        &Entity{ID: "b"},
		Generator: &Generator{Name: "nexmo", ID: "1"},
	}

	clone := original.Clone()
	clone.Actor.ID = "changed"
	clone.Object.Content = "changed"
	clone.To.ID = "changed"
	clone.Generator.ID = "changed"

	if original.Actor.ID != "a" || original.Object.Content != "hi" || original.To.ID != "b" || original.Generator.ID != "1" {
		t.Fatalf("original mutated through clone: %#v", original)
	}
}

func TestActivityOmitsAbsentFields(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(Activity{Type: TypeNote, Object: &Object{Content: "hi"}})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	if got, want := string(encoded), `{"type":"Note","object":{"content":"hi"}}`; got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}

func TestConfirmationShape(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(Confirmation{Type: ConfirmationSent, ServiceID: "svc", IDs: []string{"abc123"}})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	if got, want := string(encoded), `{"type":"sent","serviceID":"svc","ids":["abc123"]}`; got != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}
