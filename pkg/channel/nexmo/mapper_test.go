package nexmo

import (
	"errors"
	"reflect"
	"testing"

	"smsbridge/pkg/activity"
	"smsbridge/pkg/carrier"
)

func noteTo(to, text string) activity.Activity {
	return activity.Activity{
		Type:   activity.TypeNote,
		Object: &activity.Object{Content: text},
		To:     &activity.Entity{ID: to},
	}
}

func TestToSendParamsUsesFallbackSender(t *testing.T) {
	t.Parallel()

	params, err := ToSendParams(noteTo("15557654321", "hello"), "nexmo")
	if err != nil {
		t.Fatalf("ToSendParams error: %v", err)
	}
	if params.From != "nexmo" || params.To != "15557654321" || params.Text != "hello" {
		t.Fatalf("params = %#v", params)
	}
	if params.Options == nil || len(params.Options) != 0 {
		t.Fatalf("options = %#v, want empty map", params.Options)
	}
}

func TestToSendParamsPrefersActor(t *testing.T) {
	t.Parallel()

	doc := noteTo("15557654321", "hello")
	doc.Actor = &activity.Entity{ID: "ACME"}

	params, err := ToSendParams(doc, "nexmo")
	if err != nil {
		t.Fatalf("ToSendParams error: %v", err)
	}
	if params.From != "ACME" {
		t.Fatalf("from = %q, want ACME", params.From)
	}
}

func TestToSendParamsRejectsNonNote(t *testing.T) {
	t.Parallel()

	image := noteTo("1555", "pic")
	image.Type = activity.TypeImage

	mismatched := noteTo("1555", "pic")
	mismatched.Object.Type = activity.TypeAudio

	for name, doc := range map[string]activity.Activity{"image": image, "object type": mismatched} {
		if _, err := ToSendParams(doc, "nexmo"); !errors.Is(err, ErrOnlyNote) {
			t.Fatalf("%s: err = %v, want ErrOnlyNote", name, err)
		}
	}
}

func TestToConfirmationKeepsSegmentOrder(t *testing.T) {
	t.Parallel()

	conf := ToConfirmation("svc", carrier.SendResponse{
		MessageCount: "2",
		Messages: []carrier.Message{
			{MessageID: "seg-1", Status: "0"},
			{MessageID: "seg-2", Status: "0"},
		},
	})

	want := activity.Confirmation{Type: activity.ConfirmationSent, ServiceID: "svc", IDs: []string{"seg-1", "seg-2"}}
	if !reflect.DeepEqual(conf, want) {
		t.Fatalf("confirmation = %#v, want %#v", conf, want)
	}
}
