package orchestrator

import "strings"

// ModelDescriptor names one selectable model by both its canonical id and
// the id the remote service expects on the wire.
type ModelDescriptor struct {
	ID    string
	APIID string
}

// ResolveModel implements spec §4.3's "resolve the selected model (exact id
// -> api_id -> case-insensitive)": try an exact ID match first, then an
// exact APIID match, then a case-insensitive ID match. Returns the APIID to
// send on the wire.
func ResolveModel(models []ModelDescriptor, requested string) (apiID string, ok bool) {
	for _, m := range models {
		if m.ID == requested {
			return m.APIID, true
		}
	}
	for _, m := range models {
		if m.APIID == requested {
			return m.APIID, true
		}
	}
	lower := strings.ToLower(requested)
	for _, m := range models {
		if strings.ToLower(m.ID) == lower {
			return m.APIID, true
		}
	}
	return "", false
}
