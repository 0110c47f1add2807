package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotedesk/go_backend/internal/app/config"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug", "text")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	log, err = NewLogger("warn", "json")
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
	_, err = NewLogger("info", "xml")
	assert.Error(t, err)
}

func TestCatalogFromCompany(t *testing.T) {
	c := CatalogFrom(config.Company{Name: "Quote Desk", Currency: "USD", Footer: "Thanks"})

	assert.Equal(t, "Quote Desk", c.CompanyName)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, "Thanks", c.Footer)
}

func TestBuildServesLedgerFromSheets(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    [][]string{{"Timestamp", "Serial"}},
		})
	}))
	defer store.Close()

	log, _ := logtest.NewNullLogger()
	cfg := config.Config{
		InternalToken:     "secret",
		SheetsEndpoint:    store.URL,
		SheetsContainerID: "sheet-1",
		LedgerSheet:       "Quotations",
		ThumbnailSize:     400,
	}
	a, err := Build(context.Background(), cfg, log)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.DB)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	qs, err := a.Ledger.ListQuotations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, qs)
}
