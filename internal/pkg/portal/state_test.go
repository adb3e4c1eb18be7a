package portal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><body><form>
<input type="hidden" name="__VIEWSTATE" value="dDwtNTI3O"/>
<input type="hidden" name="__VIEWSTATEGENERATOR" value="CA0B0334"/>
<input type="hidden" name="__EVENTVALIDATION" value="/wEWAgL"/>
</form></body></html>`

func TestParsePostbackState(t *testing.T) {
	state, err := ParsePostbackState([]byte(samplePage))
	require.NoError(t, err)

	assert.Equal(t, "dDwtNTI3O", state.ViewState)
	assert.Equal(t, "CA0B0334", state.ViewStateGenerator)
	assert.Equal(t, "/wEWAgL", state.EventValidation)
	assert.Empty(t, state.EventTarget)
}

func TestParsePostbackState_MissingViewState(t *testing.T) {
	_, err := ParsePostbackState([]byte("<html><body>Server Error</body></html>"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedResponse))
}

func TestPostbackState_Form(t *testing.T) {
	state := PostbackState{
		ViewState:          "vs",
		ViewStateGenerator: "gen",
		EventValidation:    "ev",
	}

	form := state.Form()
	assert.Equal(t, "vs", form.Get("__VIEWSTATE"))
	assert.Equal(t, "gen", form.Get("__VIEWSTATEGENERATOR"))
	assert.Equal(t, "ev", form.Get("__EVENTVALIDATION"))
	assert.False(t, form.Has("__EVENTTARGET"))

	paging := state.WithEvent("ctl00$ContentPlaceHolder1$gvWeb012", "Page$2")
	form = paging.Form()
	assert.Equal(t, "ctl00$ContentPlaceHolder1$gvWeb012", form.Get("__EVENTTARGET"))
	assert.Equal(t, "Page$2", form.Get("__EVENTARGUMENT"))

	// WithEvent derives a copy; the original state is untouched.
	assert.Empty(t, state.EventTarget)
}
