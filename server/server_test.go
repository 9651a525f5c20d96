package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/pixelpress/fetch"
	"github.com/setanarut/pixelpress/grid"
	"github.com/setanarut/pixelpress/job"
	"github.com/setanarut/pixelpress/palette"
	"github.com/setanarut/pixelpress/replay"
)

// stubSource returns a fixed raster for every prompt.
type stubSource struct {
	buf []byte
	err error
}

func (s *stubSource) Generate(ctx context.Context, prompt string) ([]byte, error) {
	return s.buf, s.err
}

// stubDriver answers the replay engine just enough to publish.
type stubDriver struct {
	titles *[]string
}

func (d *stubDriver) Navigate(ctx context.Context, url string) error   { return nil }
func (d *stubDriver) CellCount(ctx context.Context) (int, error)       { return grid.Rows * grid.Cols, nil }
func (d *stubDriver) SelectColor(ctx context.Context, idx int) error   { return nil }
func (d *stubDriver) ClickCell(ctx context.Context, idx int) error     { return nil }
func (d *stubDriver) ClickButton(ctx context.Context, index int) error { return nil }
func (d *stubDriver) Buttons(ctx context.Context) ([]replay.ButtonCandidate, error) {
	return []replay.ButtonCandidate{{Text: "Publish", Index: 0, Y: 100}}, nil
}
func (d *stubDriver) SetTitle(ctx context.Context, value string) error {
	*d.titles = append(*d.titles, value)
	return nil
}
func (d *stubDriver) Links(ctx context.Context) ([]string, error) {
	return []string{"https://gallery.example.com/art/7"}, nil
}
func (d *stubDriver) Close() error { return nil }

func rasterPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 96; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x < 48 {
				c = color.RGBA{220, 40, 40, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testServer(t *testing.T, src fetch.Source) (*Server, *[]string) {
	t.Helper()
	titles := &[]string{}
	site := replay.DefaultSite("https://place.example.com/draw")
	site.SettleDelay = 0
	site.ConfirmSettle = 0
	site.ClickDelay = 0
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	engine := &replay.Engine{
		Site: site,
		NewDriver: func(ctx context.Context, s replay.Site) (replay.Driver, error) {
			return &stubDriver{titles: titles}, nil
		},
		Log: log,
	}
	return New(src, engine, job.NewMemStore(nil), palette.Default(), grid.PolicyLightBackground, log), titles
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGenerateReturnsPreview(t *testing.T) {
	srv, _ := testServer(t, &stubSource{buf: rasterPNG(t)})
	r := srv.Router()

	w := postJSON(t, r, "/generate", `{"prompt":"red fox"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Preview string `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "previewed", resp.Status)
	require.Contains(t, resp.Preview, "<svg")
	require.Contains(t, resp.Preview, "<rect")
}

func TestGenerateRejectsMissingPrompt(t *testing.T) {
	srv, _ := testServer(t, &stubSource{buf: rasterPNG(t)})
	w := postJSON(t, srv.Router(), "/generate", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublishFlowToDone(t *testing.T) {
	srv, titles := testServer(t, &stubSource{buf: rasterPNG(t)})
	r := srv.Router()

	w := postJSON(t, r, "/generate", `{"prompt":"red fox"}`)
	var gen struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))

	// Publishing returns immediately with a processing status.
	w = postJSON(t, r, "/jobs/"+gen.ID+"/publish", `{"title":"my fox"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	// Poll until the background replay completes.
	require.Eventually(t, func() bool {
		j, ok := srv.Jobs.Get(gen.ID)
		return ok && j.Status == job.StatusDone
	}, 5*time.Second, 10*time.Millisecond)

	j, _ := srv.Jobs.Get(gen.ID)
	require.Equal(t, "https://gallery.example.com/art/7", j.URL)
	require.Equal(t, []string{"my fox"}, *titles)

	// A second publish of the same job is rejected.
	w = postJSON(t, r, "/jobs/"+gen.ID+"/publish", `{}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestPublishUsesPromptFallbackTitle(t *testing.T) {
	srv, titles := testServer(t, &stubSource{buf: rasterPNG(t)})
	r := srv.Router()

	w := postJSON(t, r, "/generate", `{"prompt":"a quiet mountain village at dusk"}`)
	var gen struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))

	postJSON(t, r, "/jobs/"+gen.ID+"/publish", `{}`)
	require.Eventually(t, func() bool {
		j, ok := srv.Jobs.Get(gen.ID)
		return ok && j.Status == job.StatusDone
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, []string{"a quiet mountain village at dusk"}, *titles)
}

func TestGetJobNotFound(t *testing.T) {
	srv, _ := testServer(t, &stubSource{buf: rasterPNG(t)})
	req := httptest.NewRequest(http.MethodGet, "/jobs/nope", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateUpstreamFailure(t *testing.T) {
	srv, _ := testServer(t, &stubSource{err: &fetch.HTTPError{Status: 503}})
	w := postJSON(t, srv.Router(), "/generate", `{"prompt":"x"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
}
