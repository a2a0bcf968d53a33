package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockTime(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC)
	c := NewGetTime().(*clock)
	c.now = func() time.Time { return fixed }

	data, err := c.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "15:09", data["time"])
	assert.Equal(t, "3:09 PM", data["spoken"])
}

func TestClockDate(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 15, 9, 0, 0, time.UTC)
	c := NewGetDate().(*clock)
	c.now = func() time.Time { return fixed }

	data, err := c.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", data["date"])
	assert.Equal(t, "Friday", data["weekday"])
}

func TestSimpleMath(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512},
		{"-5 + 3", -2},
		{"3.5 * 2", 7},
	}
	m := NewSimpleMath()
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			data, err := m.Execute(context.Background(), map[string]any{"expression": tc.expr})
			require.NoError(t, err)
			assert.InDelta(t, tc.want, data["result"].(float64), 1e-9)
		})
	}
}

func TestSimpleMathSpokenForm(t *testing.T) {
	m := NewSimpleMath()
	data, err := m.Execute(context.Background(), map[string]any{"expression": "6*7"})
	require.NoError(t, err)
	assert.Equal(t, "42", data["spoken"])
}

func TestSimpleMathErrors(t *testing.T) {
	m := NewSimpleMath()
	for _, expr := range []string{"", "1 / 0", "2 +", "(1 + 2", "two plus two", "1; import os"} {
		t.Run(expr, func(t *testing.T) {
			_, err := m.Execute(context.Background(), map[string]any{"expression": expr})
			assert.Error(t, err)
		})
	}
}

func TestWeatherAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/current", r.URL.Path)
		assert.Equal(t, "Lisbon", r.URL.Query().Get("location"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"location":"Lisbon","temperature":17,"condition":"rain","humidity":80,"windSpeed":12}`))
	}))
	defer srv.Close()

	c := NewGetWeather(srv.URL, srv.Client())
	data, err := c.Execute(context.Background(), map[string]any{"location": "Lisbon"})
	require.NoError(t, err)
	assert.Equal(t, true, data["isRainy"])
	assert.Equal(t, "rain", data["condition"])
	assert.Contains(t, data["spoken"], "Lisbon")
}

func TestWeatherAdapterProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewGetWeather(srv.URL, srv.Client())
	_, err := c.Execute(context.Background(), map[string]any{"location": "Lisbon"})
	assert.Error(t, err)
}

func TestFetchPageExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Release Notes</title>
			<script>var hidden = 1;</script></head>
			<body><nav>menu</nav><p>Version 2.0 ships today.</p></body></html>`))
	}))
	defer srv.Close()

	c := NewFetchPage(srv.Client())
	data, err := c.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", data["title"])
	text := data["text"].(string)
	assert.Contains(t, text, "Version 2.0 ships today.")
	assert.NotContains(t, text, "hidden")
	assert.NotContains(t, text, "menu")
}

func TestFetchPageRejectsBadURL(t *testing.T) {
	c := NewFetchPage(nil)
	for _, raw := range []string{"", "ftp://example.com", "not a url"} {
		_, err := c.Execute(context.Background(), map[string]any{"url": raw})
		assert.Error(t, err, raw)
	}
}
