package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUnderage compares age values the way a JavaScript runtime evaluates age < 18.
func TestUnderage(t *testing.T) {
	tests := []struct {
		body     string
		expected bool
	}{
		{`{"age": 17}`, true},
		{`{"age": 17.9}`, true},
		{`{"age": -1}`, true},
		{`{"age": 18}`, false},
		{`{"age": 42}`, false},
		{`{"age": 1e1}`, true},
		{`{"age": "17"}`, true},
		{`{"age": " 30 "}`, false},
		{`{"age": ""}`, true},
		{`{"age": "   "}`, true},
		{`{"age": ".5"}`, true},
		{`{"age": "1e3"}`, false},
		{`{"age": "seventeen"}`, false},
		{`{"age": "17 years"}`, false},
		{`{"age": "0x10"}`, true},
		{`{"age": "0x12"}`, false},
		{`{"age": "0b1"}`, true},
		{`{"age": "0o21"}`, true},
		{`{"age": "-0x10"}`, false},
		{`{"age": "0x1_0"}`, false},
		{`{"age": "Infinity"}`, false},
		{`{"age": "-Infinity"}`, true},
		{`{"age": "-inf"}`, false},
		{`{"age": "NaN"}`, false},
		{`{"age": "1_0"}`, false},
		{`{"age": null}`, true},
		{`{"age": false}`, true},
		{`{"age": true}`, true},
		{`{"age": {}}`, false},
		{`{"age": []}`, true},
		{`{"age": [17]}`, true},
		{`{"age": ["17"]}`, true},
		{`{"age": [[17]]}`, true},
		{`{"age": [null]}`, true},
		{`{"age": [18]}`, false},
		{`{"age": [17, 1]}`, false},
		{`{"age": [true]}`, false},
		{`{"age": [{}]}`, false},
		{`{"name": "Ana"}`, false},
		{``, false},
		{`not JSON`, false},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, underage([]byte(test.body)), "request body: "+test.body)
	}
}

// TestAgeGateRejectsUnderage expects a FORBIDDEN response on POST and PUT and that no SQL
// statement is executed.
func TestAgeGateRejectsUnderage(t *testing.T) {
	for _, method := range []string{"POST", "PUT"} {
		db, mock := createMockObjects(t)

		url := "/api/personas"
		if method == "PUT" {
			url += "/123"
		}
		recorder := runTest(db, method, url, strings.NewReader(`{"id": "123", "name": "Ana", "age": 17}`))
		assert.Equal(t, http.StatusForbidden, recorder.Code, method)
		assert.Equal(t, msgUnderage, decodeObject(t, recorder)["message"])
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
		db.Close()
	}
}

// TestAgeGatePassesAdults expects that the body is still available to the handler after the
// gate has read it.
func TestAgeGatePassesAdults(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(insertPattern)).
		WithArgs("123", "Ana", "x", "555").
		WillReturnResult(sqlmock.NewResult(0, 1))

	recorder := runTest(db, "POST", "/api/personas", strings.NewReader(`{"id": "123", "name": "Ana", "secret": "x", "phone": "555", "age": 18}`))
	assert.Equal(t, http.StatusCreated, recorder.Code)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// TestAgeGateIgnoresReads expects that the gate is not attached to GET routes.
func TestAgeGateIgnoresReads(t *testing.T) {
	db, mock := createMockObjects(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectAllPattern)).
		WillReturnRows(mock.NewRows(personaColumns).AddRow("1", "Ana", "x", "555"))

	recorder := runTest(db, "GET", "/api/personas", strings.NewReader(`{"age": 3}`))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

// TestAdminGroupRejected expects that every route of the admin group is answered with
// FORBIDDEN, before the age gate and without any SQL statement.
func TestAdminGroupRejected(t *testing.T) {
	requests := []struct {
		method string
		url    string
		body   string
	}{
		{"GET", "/api/admin/personas", ""},
		{"GET", "/api/admin/personas/1", ""},
		{"POST", "/api/admin/personas", `{"id": "1", "age": 12}`},
		{"PUT", "/api/admin/personas/1", `{"name": "Ana"}`},
		{"DELETE", "/api/admin/personas/1", ""},
	}
	for _, request := range requests {
		db, mock := createMockObjects(t)

		recorder := runTest(db, request.method, request.url, strings.NewReader(request.body))
		assert.Equal(t, http.StatusForbidden, recorder.Code, request.method+" "+request.url)
		assert.Equal(t, msgGroupDenied, decodeObject(t, recorder)["message"])
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
		db.Close()
	}
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var out bytes.Buffer
	router := gin.New()
	router.Use(RequestLogger(zerolog.New(&out)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	expected := map[string]string{"/ok": "info", "/missing": "warn", "/broken": "error"}
	for _, path := range []string{"/ok", "/missing", "/broken"} {
		out.Reset()
		request, _ := http.NewRequest("GET", path, nil)
		router.ServeHTTP(httptest.NewRecorder(), request)

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &line))
		assert.Equal(t, expected[path], line["level"], path)
		assert.Equal(t, "GET", line["method"])
		assert.Equal(t, path, line["path"])
		assert.Contains(t, line, "latency")
	}
}
