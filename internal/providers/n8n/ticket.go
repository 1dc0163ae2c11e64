package n8n

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Ticket identifies a job enqueued on n8n. Status is empty when the backend
// did not report one.
type Ticket struct {
	ID     int64  `json:"id"`
	Status string `json:"status,omitempty"`
}

// ticketMatcher extracts a ticket from one known response shape.
type ticketMatcher func(doc gjson.Result) (Ticket, bool)

// ticketShapes lists the response shapes n8n has been observed to return, in
// the order they are tried.
var ticketShapes = []ticketMatcher{
	bareObject,
	envelope("results"),
	envelope("data"),
	topLevelArray,
}

// ParseTicket returns the first valid ticket found in raw, trying a bare
// object, a {results:[...]} envelope, a {data:[...]} envelope and a top-level
// array in that order.
func ParseTicket(raw []byte) (Ticket, bool) {
	if !gjson.ValidBytes(raw) {
		return Ticket{}, false
	}
	doc := gjson.ParseBytes(raw)
	for _, match := range ticketShapes {
		if t, ok := match(doc); ok {
			return t, true
		}
	}
	return Ticket{}, false
}

func bareObject(doc gjson.Result) (Ticket, bool) {
	if !doc.IsObject() {
		return Ticket{}, false
	}
	return ticketFrom(doc)
}

func envelope(key string) ticketMatcher {
	return func(doc gjson.Result) (Ticket, bool) {
		if !doc.IsObject() {
			return Ticket{}, false
		}
		inner := doc.Get(key)
		if inner.IsObject() {
			return ticketFrom(inner)
		}
		return firstTicket(inner)
	}
}

func topLevelArray(doc gjson.Result) (Ticket, bool) {
	return firstTicket(doc)
}

func firstTicket(list gjson.Result) (Ticket, bool) {
	if !list.IsArray() {
		return Ticket{}, false
	}
	var (
		found Ticket
		ok    bool
	)
	list.ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			found, ok = ticketFrom(item)
		}
		return !ok
	})
	return found, ok
}

func ticketFrom(obj gjson.Result) (Ticket, bool) {
	for _, key := range []string{"task_id", "id"} {
		id, ok := numericID(obj.Get(key))
		if !ok {
			continue
		}
		status := obj.Get("status")
		t := Ticket{ID: id}
		if status.Type == gjson.String {
			t.Status = strings.TrimSpace(status.String())
		}
		return t, true
	}
	return Ticket{}, false
}

func numericID(v gjson.Result) (int64, bool) {
	switch v.Type {
	case gjson.Number:
		f := v.Float()
		if f != float64(int64(f)) {
			return 0, false
		}
		return int64(f), true
	case gjson.String:
		id, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
