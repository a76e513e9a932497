package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-credentials"
	"github.com/goliatone/go-credentials/client"
)

func validRegistration() auth.RegistrationInput {
	return auth.RegistrationInput{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Phone:           "+12015550123",
		Password:        "Secret#2024",
		ConfirmPassword: "Secret#2024",
		Accepted:        true,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSignUpForm_InvalidInputNeverReachesServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusCreated, auth.AuthResponse{OK: true})
	}))
	t.Cleanup(srv.Close)

	form := client.NewSignUpForm(client.New(srv.URL))

	in := validRegistration()
	in.Password = "secret1"
	in.ConfirmPassword = "secret2"

	res, err := form.Submit(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, auth.ErrValidationFailed))
	assert.Equal(t, "Passwords must match", auth.ValidationFields(err)["confirm_password"])
	assert.Equal(t, int32(0), hits.Load())
	assert.False(t, form.Submitting())
}

func TestSignInForm_InvalidInputNeverReachesServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	form := client.NewSignInForm(client.New(srv.URL))

	_, err := form.Submit(context.Background(), auth.SignInInput{Email: "not-an-email"})
	require.Error(t, err)

	fields := auth.ValidationFields(err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_SignInKeepsSessionToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var in auth.SignInInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "ada@example.com", in.Email)

		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "token-123", Path: "/"})
		writeJSON(w, http.StatusOK, auth.AuthResponse{
			OK:     true,
			Status: http.StatusOK,
			URL:    "/",
			User:   &auth.SanitizedUser{ID: "u1", Email: in.Email},
		})
	})
	mux.HandleFunc("/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-123" {
			writeJSON(w, http.StatusOK, auth.AnonymousSession())
			return
		}
		writeJSON(w, http.StatusOK, auth.Session{
			Status: auth.SessionAuthenticated,
			User:   &auth.SanitizedUser{ID: "u1", Email: "ada@example.com"},
		})
	})
	mux.HandleFunc("/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, auth.AuthResponse{OK: true, Status: http.StatusOK, URL: "/"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := client.New(srv.URL)
	form := client.NewSignInForm(c)

	res, err := form.Submit(context.Background(), auth.SignInInput{
		Email:    "ada@example.com",
		Password: "Secret#2024",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "token-123", c.Token())

	session, err := c.Session(context.Background())
	require.NoError(t, err)
	assert.True(t, session.IsAuthenticated())

	require.NoError(t, c.SignOut(context.Background()))
	assert.Empty(t, c.Token())

	session, err = c.Session(context.Background())
	require.NoError(t, err)
	assert.False(t, session.IsAuthenticated())
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     auth.AuthResponse
		category errors.Category
		check    func(t *testing.T, err *errors.Error)
	}{
		{
			name:     "rejected credentials",
			status:   http.StatusUnauthorized,
			body:     auth.AuthResponse{Status: http.StatusUnauthorized, Error: auth.InvalidCredentialsMessage},
			category: errors.CategoryAuth,
			check: func(t *testing.T, err *errors.Error) {
				assert.Equal(t, auth.InvalidCredentialsMessage, err.Message)
			},
		},
		{
			name:   "duplicate email",
			status: http.StatusConflict,
			body: auth.AuthResponse{
				Status:   http.StatusConflict,
				Error:    "An account with this email already exists",
				TextCode: auth.TextCodeDuplicateEmail,
			},
			category: errors.CategoryConflict,
			check: func(t *testing.T, err *errors.Error) {
				assert.Equal(t, auth.TextCodeDuplicateEmail, err.TextCode)
			},
		},
		{
			name:   "server side validation",
			status: http.StatusUnprocessableEntity,
			body: auth.AuthResponse{
				Status:     http.StatusUnprocessableEntity,
				Error:      "Validation failed",
				Validation: map[string]string{"email": "Please enter a valid email address"},
			},
			category: errors.CategoryValidation,
			check: func(t *testing.T, err *errors.Error) {
				assert.Equal(t, "Please enter a valid email address", err.ValidationMap()["email"])
			},
		},
		{
			name:     "store unavailable",
			status:   http.StatusServiceUnavailable,
			body:     auth.AuthResponse{Status: http.StatusServiceUnavailable, Error: "Service temporarily unavailable, please try again"},
			category: errors.CategoryExternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}))
			t.Cleanup(srv.Close)

			_, err := client.NewSignUpForm(client.New(srv.URL)).Submit(context.Background(), validRegistration())
			require.Error(t, err)

			var rich *errors.Error
			require.True(t, errors.As(err, &rich))
			assert.Equal(t, tt.category, rich.Category)
			assert.Equal(t, tt.status, rich.Code)
			if tt.check != nil {
				tt.check(t, rich)
			}
		})
	}
}

func TestSignUpForm_SecondSubmitWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		writeJSON(w, http.StatusCreated, auth.AuthResponse{OK: true, Status: http.StatusCreated})
	}))
	t.Cleanup(srv.Close)

	form := client.NewSignUpForm(client.New(srv.URL))

	done := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background(), validRegistration())
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first submission never reached the server")
	}

	assert.True(t, form.Submitting())

	_, err := form.Submit(context.Background(), validRegistration())
	assert.True(t, errors.Is(err, client.ErrSubmitInFlight))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, form.Submitting())
}

func TestSignUpForm_Strength(t *testing.T) {
	form := client.NewSignUpForm(client.New("http://localhost"))

	score, label := form.Strength("Abcdef1!xy")
	assert.Equal(t, auth.StrengthStrong, score)
	assert.Equal(t, "Strong", label)

	score, _ = form.Strength("abc")
	assert.Equal(t, auth.StrengthTooWeak, score)
}
