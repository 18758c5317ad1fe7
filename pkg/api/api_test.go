package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lc/ipsniper/internal/buildinfo"
	"github.com/lc/ipsniper/internal/engine"
	"github.com/lc/ipsniper/pkg/api"
)

type staticSource struct{ stats engine.Stats }

func (s staticSource) Snapshot() engine.Stats { return s.stats }

type APITestSuite struct {
	suite.Suite
	srv *api.Server
}

func (s *APITestSuite) SetupTest() {
	s.srv = api.New(staticSource{stats: engine.Stats{
		RunID:     "run-1",
		Total:     10,
		Processed: 4,
		Matched:   1,
		Timeouts:  []engine.ResolverTimeouts{{Server: "8.8.8.8:53", Count: 2}},
	}})
}

func (s *APITestSuite) TestStatus() {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, api.StatusPath, nil))

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var resp api.StatusResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("run-1", resp.RunID)
	s.Equal(int64(10), resp.Total)
	s.Equal(uint64(4), resp.Processed)
	s.Equal(int64(1), resp.Matched)
	s.Equal([]engine.ResolverTimeouts{{Server: "8.8.8.8:53", Count: 2}}, resp.Timeouts)
	s.Equal(buildinfo.Version, resp.Version)
	s.Equal(buildinfo.Commit, resp.Commit)
}

func (s *APITestSuite) TestStatusRejectsOtherMethods() {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.StatusPath, nil))
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *APITestSuite) TestUnknownRoute() {
	rec := httptest.NewRecorder()
	s.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rules", nil))
	s.Equal(http.StatusNotFound, rec.Code)
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
