package nexmo

import (
	"smsbridge/pkg/activity"
	"smsbridge/pkg/carrier"
)

// ToSendParams maps a validated send activity onto the carrier call. The
// sender is the activity's actor when present, otherwise fallbackFrom.
func ToSendParams(doc activity.Activity, fallbackFrom string) (carrier.SendParams, error) {
	if !isNote(doc) {
		return carrier.SendParams{}, ErrOnlyNote
	}

	from := fallbackFrom
	if doc.Actor != nil && doc.Actor.ID != "" {
		from = doc.Actor.ID
	}

	params := carrier.SendParams{
		From:    from,
		Options: map[string]string{},
	}
	if doc.To != nil {
		params.To = doc.To.ID
	}
	if doc.Object != nil {
		params.Text = doc.Object.Content
	}

	return params, nil
}

// ToConfirmation lists the provider message ids in segment order.
func ToConfirmation(serviceID string, resp carrier.SendResponse) activity.Confirmation {
	ids := make([]string, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		ids = append(ids, msg.MessageID)
	}

	return activity.Confirmation{
		Type:      activity.ConfirmationSent,
		ServiceID: serviceID,
		IDs:       ids,
	}
}

// isNote accepts only Note activities; an explicit object type must agree.
func isNote(doc activity.Activity) bool {
	if doc.Type != activity.TypeNote {
		return false
	}
	_, rejected := unsupportedType(doc)
	return !rejected
}

// unsupportedType returns the first type set on doc that is not Note. An
// empty type is left for the schema to report as missing.
func unsupportedType(doc activity.Activity) (activity.Type, bool) {
	if doc.Type != "" && doc.Type != activity.TypeNote {
		return doc.Type, true
	}
	if doc.Object != nil && doc.Object.Type != "" && doc.Object.Type != activity.TypeNote {
		return doc.Object.Type, true
	}
	return "", false
}
