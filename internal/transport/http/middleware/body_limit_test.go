package httpmw_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpmw "github.com/cwrk-planet/meeting-service/internal/transport/http/middleware"

	"github.com/stretchr/testify/require"
)

func TestBodyLimit(t *testing.T) {
	var readErr error
	h := httpmw.BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	require.NoError(t, readErr)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("way too long body")))
	var maxErr *http.MaxBytesError
	require.ErrorAs(t, readErr, &maxErr)
}
