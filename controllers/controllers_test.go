package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"fenix-advisor/backend/config"
	"fenix-advisor/backend/datasource"
	"fenix-advisor/backend/engine"
	"fenix-advisor/backend/models"
	"fenix-advisor/backend/oracle"
	"fenix-advisor/backend/routes"
	"fenix-advisor/backend/session"
	"fenix-advisor/backend/utils"
)

const ledgerCSV = "Fecha,Monto,Cliente,Estado\n" +
	"2024-01-15,1000,Acme,Pagado\n" +
	"2024-01-20,500,Beta,Pendiente\n" +
	"2024-02-10,1500,Acme,Pagado\n" +
	"2024-03-05,200,Gamma,Pagado\n" +
	"2024-03-18,800,Beta,Pagado\n" +
	"2023-12-01,300,Acme,Pendiente\n"

var layout = datasource.Layout{DateColumn: "Fecha", AmountColumn: "Monto", EntityColumn: "Cliente", StatusColumn: "Estado", Decimal: utils.DecimalAuto}

type stubOracle struct {
	plan    string
	planErr error
}

func (s stubOracle) Complete(context.Context, string) (string, error) { return "texto libre", nil }

func (s stubOracle) CompleteJSON(context.Context, string, *oracle.Schema) (string, error) {
	return s.plan, s.planErr
}

type server struct {
	router *gin.Engine
	store  *session.Store
}

func newServer(t *testing.T, o oracle.Oracle, src datasource.Source) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Config{JWTSecret: "test-secret", SessionTTL: time.Hour}
	cache := datasource.NewCache(4, time.Minute, layout, engine.Profile, zap.NewNop())
	eng := engine.New(o, cache, engine.Options{PlanTimeout: time.Second, AnswerTimeout: time.Second, SampleRows: 5, TableRowLimit: 100}, zap.NewNop())
	store := session.NewStore(5, time.Hour, func() datasource.Source { return src })
	r := gin.New()
	routes.Register(r, cfg, eng, cache, store)
	return &server{router: r, store: store}
}

func (s *server) do(t *testing.T, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) login(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/session", "", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (s *server) ask(t *testing.T, token, question string) (*httptest.ResponseRecorder, models.Answer) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"question": question})
	w := s.do(t, http.MethodPost, "/api/ask", token, bytes.NewBuffer(body), "application/json")
	var ans models.Answer
	_ = json.Unmarshal(w.Body.Bytes(), &ans)
	return w, ans
}

func planJSON(t *testing.T, kind models.CalculationKind, tmpl string) string {
	t.Helper()
	p := models.Plan{
		VisualizationKind: models.VizNone,
		ExtraFilters:      []models.FieldValue{},
		TimeBucket:        models.BucketNone,
		TableFields:       []string{},
		CalculationKind:   kind,
		ResponseTemplate:  tmpl,
	}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return string(b)
}

func csvSource(t *testing.T) datasource.Source {
	t.Helper()
	f, err := datasource.NewFile("ledger.csv", []byte(ledgerCSV), "")
	require.NoError(t, err)
	return f
}

func upload(t *testing.T, s *server, token, name string, content []byte, sheet string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	if sheet != "" {
		require.NoError(t, mw.WriteField("sheet", sheet))
	}
	require.NoError(t, mw.Close())
	return s.do(t, http.MethodPost, "/api/data/upload", token, &body, mw.FormDataContentType())
}

func TestSessionLifecycle(t *testing.T) {
	s := newServer(t, stubOracle{}, nil)

	w := s.do(t, http.MethodGet, "/api/session", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/session", "not-a-jwt", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login(t)
	w = s.do(t, http.MethodGet, "/api/session", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":""`)
	assert.Equal(t, 1, s.store.Len())

	w = s.do(t, http.MethodDelete, "/api/session", token, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/session", token, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAskAnswersAndRecordsHistory(t *testing.T) {
	s := newServer(t, stubOracle{plan: planJSON(t, models.CalcTotal, "Total: {total}")}, csvSource(t))
	token := s.login(t)

	w, ans := s.ask(t, token, "¿Cuánto vendimos?")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AnswerProse, ans.Kind)
	assert.Equal(t, "Total: $4,300.00", ans.Text)

	w = s.do(t, http.MethodGet, "/api/history", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		History []session.Entry `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.History, 1)
	assert.Equal(t, "¿Cuánto vendimos?", hist.History[0].Question)
}

func TestAskStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		oracle stubOracle
		src    bool
		status int
		code   string
	}{
		{"unparsable plan", stubOracle{plan: "{"}, true, http.StatusUnprocessableEntity, "plan_parse_error"},
		{"oracle down", stubOracle{planErr: errors.New("unavailable")}, true, http.StatusBadGateway, "oracle_transport_error"},
		{"oracle timeout", stubOracle{planErr: context.DeadlineExceeded}, true, http.StatusGatewayTimeout, "oracle_timeout"},
		{"no ledger", stubOracle{}, false, http.StatusServiceUnavailable, "source_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var src datasource.Source
			if tc.src {
				src = csvSource(t)
			}
			s := newServer(t, tc.oracle, src)
			w, ans := s.ask(t, s.login(t), "q")
			assert.Equal(t, tc.status, w.Code)
			require.NotNil(t, ans.Error)
			assert.Equal(t, tc.code, ans.Error.Code)
		})
	}

	s := newServer(t, stubOracle{}, nil)
	w := s.do(t, http.MethodPost, "/api/ask", s.login(t), bytes.NewBufferString(`{"question":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadPreviewAndSchema(t *testing.T) {
	s := newServer(t, stubOracle{plan: planJSON(t, models.CalcTotal, "{total}")}, nil)
	token := s.login(t)

	w := upload(t, s, token, "notas.txt", []byte("hola"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	csv := ledgerCSV + ",,,\n2024-04-01,abc,Delta,Pagado\n"
	w = upload(t, s, token, "ledger.csv", []byte(csv), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var up struct {
		Columns []string              `json:"columns"`
		Report  datasource.LoadReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.Equal(t, []string{"Fecha", "Monto", "Cliente", "Estado"}, up.Columns)
	assert.Equal(t, 1, up.Report.DroppedBlank)
	assert.Equal(t, 1, up.Report.DroppedAmount)
	assert.Equal(t, 6, up.Report.RowsKept)

	w = s.do(t, http.MethodGet, "/api/data/preview?limit=2", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var prev struct {
		Rows      [][]string `json:"rows"`
		TotalRows int        `json:"total_rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prev))
	assert.Len(t, prev.Rows, 2)
	assert.Equal(t, 6, prev.TotalRows)

	w = s.do(t, http.MethodGet, "/api/data/preview?limit=abc", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/data/schema", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Filas: 6")

	w = s.do(t, http.MethodPost, "/api/data/reload", token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/data/sheets", token, nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, ans := s.ask(t, token, "total")
	assert.Equal(t, "$4,300.00", ans.Text)
}

func TestUploadWorkbookWithSheet(t *testing.T) {
	wb := excelize.NewFile()
	_, err := wb.NewSheet("Ventas")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Ventas", "A1", &[]interface{}{"Fecha", "Monto", "Cliente"}))
	require.NoError(t, wb.SetSheetRow("Ventas", "A2", &[]interface{}{"2024-05-01", 250, "Acme"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	s := newServer(t, stubOracle{}, nil)
	token := s.login(t)

	w := upload(t, s, token, "libro.xlsx", buf.Bytes(), "Nope")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = upload(t, s, token, "libro.xlsx", buf.Bytes(), "Ventas")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/data/sheets", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Sheets   []string `json:"sheets"`
		Selected string   `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, []string{"Sheet1", "Ventas"}, out.Sheets)
	assert.Equal(t, "Ventas", out.Selected)
}

func TestDataEndpointsWithoutLedger(t *testing.T) {
	s := newServer(t, stubOracle{}, nil)
	token := s.login(t)
	w := s.do(t, http.MethodGet, "/api/data/schema", token, nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "source_unavailable")
}
