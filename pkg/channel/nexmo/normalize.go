package nexmo

import "smsbridge/pkg/activity"

// Normalize maps one raw webhook record onto a receive-direction candidate.
// Absent fields stay absent; nothing is validated here.
func Normalize(rec activity.RawRecord, generator activity.Generator) activity.Activity {
	doc := activity.Activity{
		Type: activity.TypeNote,
		Object: &activity.Object{
			Type:      activity.TypeNote,
			ID:        rec.MessageID,
			Content:   rec.Text,
			Keyword:   rec.Keyword,
			Published: rec.Timestamp,
		},
		Generator: &generator,
	}

	if rec.MSISDN != "" {
		doc.Actor = &activity.Entity{ID: rec.MSISDN}
	}
	if rec.To != "" {
		doc.To = &activity.Entity{ID: rec.To}
	}

	return doc
}
