// internal/notifications/templates/merge.go
package templates

import "notification-dispatch/internal/models"

// MergeMessages combines the messages of an update with the stored ones. For each event
// kind an empty incoming value keeps the stored one; when both are set, sub-fields merge
// independently and an absent incoming sub-field keeps the stored value. The result always
// has every event kind. Neither argument is modified.
func MergeMessages(incoming, stored models.Messages) models.Messages {
	out := models.DefaultMessages()
	for _, kind := range models.EventKinds {
		in, old := incoming.Get(kind), stored.Get(kind)

		switch {
		case in.IsEmpty() && old.IsEmpty():
			out[kind] = nil
		case in.IsEmpty():
			out[kind] = old.Clone()
		case old.IsEmpty():
			out[kind] = in.Clone()
		default:
			merged := in.Clone()
			if merged.Message == nil && old.Message != nil {
				merged.Message = old.Clone().Message
			}
			if merged.Body == nil && old.Body != nil {
				merged.Body = old.Clone().Body
			}
			out[kind] = merged
		}
	}
	return out
}
