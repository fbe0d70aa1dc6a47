package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackWithoutCredentials(t *testing.T) {
	assert.IsType(t, LogDispatcher{}, New("", "", "", ""))
	assert.IsType(t, LogDispatcher{}, New("AC123", "", "+15550001111", ""))
	assert.IsType(t, LogDispatcher{}, New("AC123", "token", "", ""))
	assert.IsType(t, &ProviderDispatcher{}, New("AC123", "token", "+15550001111", ""))
}

func TestLogDispatcherNeverFails(t *testing.T) {
	err := LogDispatcher{}.Send(context.Background(), "+13035550101", "Your SitterLink code is 123456")
	assert.NoError(t, err)
}

func TestProviderDispatcherSend(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"To":   r.PostForm.Get("To"),
			"From": r.PostForm.Get("From"),
			"Body": r.PostForm.Get("Body"),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	d := New("AC123", "secrettoken", "+15550001111", srv.URL)
	err := d.Send(context.Background(), "+13035550101", "Your SitterLink code is 738291")
	require.NoError(t, err)

	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "secrettoken", gotPass)
	assert.Equal(t, "+13035550101", gotForm["To"])
	assert.Equal(t, "+15550001111", gotForm["From"])
	assert.Equal(t, "Your SitterLink code is 738291", gotForm["Body"])
}

func TestProviderDispatcherNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code": 21211, "message": "invalid 'To' number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	d := New("AC123", "token", "+15550001111", srv.URL)
	err := d.Send(context.Background(), "not-a-number", "code 111111")
	assert.ErrorContains(t, err, "400")
}

func TestProviderDispatcherTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New("AC123", "token", "+15550001111", srv.URL+"/")
	require.NoError(t, d.Send(context.Background(), "+13035550101", "code 222222"))
	assert.Equal(t, "/Accounts/AC123/Messages.json", gotPath)
}
