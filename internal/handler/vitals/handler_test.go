package vitals

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/phms-engine/internal/model"
	apperrors "github.com/jwalitptl/phms-engine/pkg/errors"
)

type fakeEngine struct {
	mu         sync.Mutex
	history    []model.VitalSample
	thresholds model.ThresholdValues
	saveErr    error
	alerts     []string
	subs       []chan model.VitalSample
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		thresholds: model.DefaultThresholds(),
		history: []model.VitalSample{
			{TimestampMs: 1000, HeartRate: model.Float(80)},
			{TimestampMs: 4500, HeartRate: model.Float(82)},
		},
	}
}

func (f *fakeEngine) History() []model.VitalSample       { return f.history }
func (f *fakeEngine) Thresholds() model.ThresholdValues { return f.thresholds }

func (f *fakeEngine) SaveThresholds(_ context.Context, t model.ThresholdValues) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.thresholds = t
	return nil
}

func (f *fakeEngine) Subscribe(buffer int) (<-chan model.VitalSample, func()) {
	ch := make(chan model.VitalSample, buffer)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *fakeEngine) push(s model.VitalSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- s
	}
}

func (f *fakeEngine) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeEngine) EmitTestAlert(_ context.Context, name string, value float64) (model.VitalAlert, error) {
	f.alerts = append(f.alerts, name)
	return model.VitalAlert{VitalName: name, Value: value}, nil
}

func setupRouter(engine Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(engine, time.UTC).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetThresholds(t *testing.T) {
	r := setupRouter(newFakeEngine())

	w := do(r, http.MethodGet, "/vitals/thresholds", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.ThresholdValues `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.DefaultThresholds(), resp.Data)
}

func TestUpdateThresholds(t *testing.T) {
	engine := newFakeEngine()
	r := setupRouter(engine)

	next := model.DefaultThresholds()
	next.HRHigh = 110
	body, err := json.Marshal(next)
	require.NoError(t, err)

	w := do(r, http.MethodPut, "/vitals/thresholds", string(body))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 110.0, engine.thresholds.HRHigh)

	engine.saveErr = apperrors.BadRequest("HRHigh must be greater than HRLow", nil)
	w = do(r, http.MethodPut, "/vitals/thresholds", string(body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "HRHigh must be greater than HRLow")

	w = do(r, http.MethodPut, "/vitals/thresholds", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistory(t *testing.T) {
	r := setupRouter(newFakeEngine())

	w := do(r, http.MethodGet, "/vitals/history", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Samples []model.VitalSample `json:"samples"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Samples, 2)
}

func TestExportHistory(t *testing.T) {
	r := setupRouter(newFakeEngine())

	w := do(r, http.MethodGet, "/vitals/history/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, exportContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 2)
}

func TestTestAlert(t *testing.T) {
	engine := newFakeEngine()
	r := setupRouter(engine)

	w := do(r, http.MethodPost, "/vitals/alerts/test", `{"vitalName":"Glucose High","value":150}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = do(r, http.MethodPost, "/vitals/alerts/test", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"Glucose High", ""}, engine.alerts)
}

func TestStream(t *testing.T) {
	engine := newFakeEngine()
	srv := httptest.NewServer(setupRouter(engine))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/vitals/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first streamMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "history", first.Type)
	assert.Len(t, first.Samples, 2)

	require.Eventually(t, func() bool { return engine.subscribers() == 1 }, time.Second, 10*time.Millisecond)
	engine.push(model.VitalSample{TimestampMs: 8000, HeartRate: model.Float(84)})

	var next streamMessage
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "sample", next.Type)
	require.NotNil(t, next.Sample)
	assert.Equal(t, int64(8000), next.Sample.TimestampMs)
}
