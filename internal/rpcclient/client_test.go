package rpcclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo/gphotoctl/internal/model"
)

const landingPageFixture = `<script>AF_initDataCallback({key: 'ds:0', data: ["oPEP7c":"acct-1","FdrFJe":"sid-123","cfb2h":"boq_photos","eptZe":"\/_\/PhotosUi\/","SNlM0e":"tok-abc"]});</script>`

func TestExtractWizValue(t *testing.T) {
	assert.Equal(t, "sid-123", extractWizValue(landingPageFixture, "f_sid"))
	assert.Equal(t, "boq_photos", extractWizValue(landingPageFixture, "bl"))
	assert.Equal(t, "/_/PhotosUi/", extractWizValue(landingPageFixture, "path"))
	assert.Equal(t, "tok-abc", extractWizValue(landingPageFixture, "at"))
	assert.Equal(t, "", extractWizValue(landingPageFixture, "rapt"))
}

func TestParseWrbPayloadRoundTrip(t *testing.T) {
	body := ")]}'\n\n[[\"wrb.fr\",\"EzwWhf\",\"[[null,null,null,null,null,null,[10,100,null,3]]]\",null,null,null,\"generic\"]]\n"
	node, err := ParseWrbPayload(body)
	require.NoError(t, err)
	inner := At(node, 0)
	assert.Equal(t, float64(10), NumOrZero(At(inner, 6).(ListNode)[0]))
}

func TestParseWrbPayloadMissingEnvelope(t *testing.T) {
	_, err := ParseWrbPayload("not an envelope at all")
	require.Error(t, err)
}

func TestBootstrapRebootstrapOn401(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/_/PhotosUi/":
			w.Write([]byte(landingPageFixture))
		case "/_/PhotosUi/data/batchexecute":
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(")]}'\n\n[[\"wrb.fr\",\"EzwWhf\",\"[10,20]\",null,null,null,\"generic\"]]\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxRetries: 3, RetryBaseDelay: 0})
	jar := []model.Cookie{{Name: "SID", Value: "x"}}

	session, err := client.Bootstrap(context.Background(), jar, "/_/PhotosUi/")
	require.NoError(t, err)
	assert.Equal(t, "sid-123", session.SessionID)

	node, refreshed, err := client.Execute(context.Background(), jar, session, "EzwWhf", map[string]any{}, "/_/PhotosUi/")
	require.NoError(t, err)
	require.NotNil(t, refreshed)
	assert.Equal(t, 2, calls)
	assert.Equal(t, float64(10), NumOrZero(At(node, 0)))
}
