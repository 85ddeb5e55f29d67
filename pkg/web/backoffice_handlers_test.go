package web_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/eventiq/eventiq/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/participants",
		map[string]any{"name": "Grace", "company": "Acme"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var doc persistence.Document
	require.NoError(t, json.Unmarshal(body, &doc))
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, "Grace", doc.Data["name"])

	resp, body = doJSON(t, app, http.MethodPost, "/participants/"+doc.ID+"/check-in", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var checked persistence.Document
	require.NoError(t, json.Unmarshal(body, &checked))
	assert.Equal(t, true, checked.Data["checked_in"])

	// second check-in is a conflict
	resp, body = doJSON(t, app, http.MethodPost, "/participants/"+doc.ID+"/check-in", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodGet, "/participants/", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var list struct {
		Participants []*persistence.Document `json:"participants"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Participants, 1)

	resp, body = doJSON(t, app, http.MethodDelete, "/participants/"+doc.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))
}

func TestVolunteerHoursOverHTTP(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/volunteers",
		map[string]any{"name": "Hugo"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var doc persistence.Document
	require.NoError(t, json.Unmarshal(body, &doc))

	resp, body = doJSON(t, app, http.MethodPost, "/volunteers/"+doc.ID+"/hours",
		map[string]any{"hours": 3.5, "note": "setup shift"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated persistence.Document
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.InDelta(t, 3.5, updated.Data["total_hours"], 0.001)

	resp, body = doJSON(t, app, http.MethodPost, "/volunteers/"+doc.ID+"/hours",
		map[string]any{"hours": -1}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
}

func TestCreateRecordValidation(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	// missing required field for the collection
	resp, body := doJSON(t, app, http.MethodPost, "/booths",
		map[string]any{"size": "3x3"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodGet, "/vendors/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}
