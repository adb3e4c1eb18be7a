package portal

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// PostbackState is the snapshot of hidden form fields a Web Forms page
// issues with every response. The server accepts a state for exactly one
// subsequent request, so a fresh value is parsed from each response body
// and the previous one must be discarded. The struct is treated as
// immutable: WithEvent derives a copy instead of mutating.
type PostbackState struct {
	ViewState          string
	ViewStateGenerator string
	EventValidation    string
	EventTarget        string
	EventArgument      string
}

// ParsePostbackState extracts the hidden fields from a page body. A page
// without __VIEWSTATE is not a Web Forms page we can talk to.
func ParsePostbackState(body []byte) (PostbackState, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PostbackState{}, fmt.Errorf("failed to parse page: %w", err)
	}
	return postbackStateFromDoc(doc)
}

func postbackStateFromDoc(doc *goquery.Document) (PostbackState, error) {
	viewState, ok := doc.Find(`input[name="__VIEWSTATE"]`).Attr("value")
	if !ok {
		return PostbackState{}, fmt.Errorf("%w: missing __VIEWSTATE", ErrUnexpectedResponse)
	}

	state := PostbackState{ViewState: viewState}
	state.ViewStateGenerator, _ = doc.Find(`input[name="__VIEWSTATEGENERATOR"]`).Attr("value")
	state.EventValidation, _ = doc.Find(`input[name="__EVENTVALIDATION"]`).Attr("value")
	return state, nil
}

// WithEvent derives a copy of the state carrying the synthetic event a
// control would raise, e.g. a GridView page change.
func (s PostbackState) WithEvent(target, argument string) PostbackState {
	s.EventTarget = target
	s.EventArgument = argument
	return s
}

// Form renders the state as the form fields the server expects back.
func (s PostbackState) Form() url.Values {
	form := url.Values{
		"__VIEWSTATE":          {s.ViewState},
		"__VIEWSTATEGENERATOR": {s.ViewStateGenerator},
		"__EVENTVALIDATION":    {s.EventValidation},
	}
	if s.EventTarget != "" {
		form.Set("__EVENTTARGET", s.EventTarget)
		form.Set("__EVENTARGUMENT", s.EventArgument)
	}
	return form
}
