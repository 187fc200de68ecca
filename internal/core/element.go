package core

import "encoding/json"

// Element kinds, matching the drawing tool palette.
const (
	KindPen       = "pen"
	KindLine      = "line"
	KindRectangle = "rectangle"
	KindEllipse   = "ellipse"
	KindArrow     = "arrow"
	KindText      = "text"
	KindShape     = "shape"
)

// Point is a single coordinate of a freehand stroke or line.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Element is one drawable object. It carries two identities: ID is generated
// by the client and stable for the element's lifetime; ChatID is assigned by
// the shape store on first persistence and is the upsert key afterwards.
//
// Bounding-box fields are pointers so that a legitimate zero coordinate
// survives a round-trip through JSON.
type Element struct {
	ID          string   `json:"id"`
	Kind        string   `json:"type"`
	Points      []Point  `json:"points,omitempty"`
	Color       string   `json:"color,omitempty"`
	StrokeWidth float64  `json:"strokeWidth,omitempty"`
	Text        string   `json:"text,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	CustomShape string   `json:"customShape,omitempty"`

	// Selected is client-local presentation state. It must never survive a
	// broadcast; the relay scrubs it before fanning an update out.
	Selected bool `json:"selected,omitempty"`

	ChatID *int64 `json:"chatId,omitempty"`
}

// DecodeElement parses a JSON-encoded element payload.
func DecodeElement(payload string) (Element, error) {
	var el Element
	if err := json.Unmarshal([]byte(payload), &el); err != nil {
		return Element{}, err
	}
	return el, nil
}

// EncodeElement serializes an element back to its wire payload form.
func EncodeElement(el Element) (string, error) {
	data, err := json.Marshal(el)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ScrubSelected clears the transient selection flag on a raw element object
// without disturbing any other field, known or unknown.
func ScrubSelected(shape json.RawMessage) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(shape, &obj); err != nil {
		return shape
	}
	if _, ok := obj["selected"]; !ok {
		return shape
	}
	delete(obj, "selected")
	out, err := json.Marshal(obj)
	if err != nil {
		return shape
	}
	return out
}

// AttachChatID injects the store-assigned identity into a JSON-encoded
// element payload. On any decode failure the payload is returned unchanged;
// the top-level frame still carries the identity.
func AttachChatID(payload string, chatID int64) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return payload
	}
	obj["chatId"] = chatID
	out, err := json.Marshal(obj)
	if err != nil {
		return payload
	}
	return string(out)
}
