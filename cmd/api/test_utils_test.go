package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain/categories"
	"storefront/internal/domain/categories/categoriestest"
	"storefront/internal/domain/products"
	"storefront/internal/domain/storage"
	"storefront/internal/domain/users"
	"storefront/internal/domain/users/userstest"
	"storefront/internal/media/mediatest"
	"storefront/internal/ratelimiter"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	template string
	email    string
	data     any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(templateFile, username, email string, data any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentMail{template: templateFile, email: email, data: data})
	return "<test@storefront>", nil
}

// lastOTP returns the code carried by the most recent mail.
func (m *fakeMailer) lastOTP(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	data, ok := m.sent[len(m.sent)-1].data.(otpMail)
	require.True(t, ok)
	return data.OTP
}

// fakeProducts is a products.Store over a slice, enough for the listing
// handlers.
type fakeProducts struct {
	mu   sync.Mutex
	rows []*products.Product
}

func (f *fakeProducts) match(p *products.Product, flt products.Filter) bool {
	if flt.Featured && !p.IsFeatured {
		return false
	}
	if flt.Rating != nil && p.Rating != *flt.Rating {
		return false
	}
	var id *int64
	var name string
	switch flt.Level {
	case products.LevelCategory:
		id, name = p.CatID, p.CatName
	case products.LevelSubCategory:
		id, name = p.SubCatID, p.SubCatName
	case products.LevelThirdCategory:
		id, name = p.ThirdCatID, p.ThirdCatName
	default:
		return true
	}
	if flt.CatID != 0 && (id == nil || *id != flt.CatID) {
		return false
	}
	if flt.CatName != "" && name != flt.CatName {
		return false
	}
	return true
}

func (f *fakeProducts) ListAll(_ context.Context, flt products.Filter) ([]*products.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*products.Product{}
	for _, p := range f.rows {
		if f.match(p, flt) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeProducts) List(ctx context.Context, flt products.Filter, limit, offset int) ([]*products.Product, int, error) {
	all, _ := f.ListAll(ctx, flt)
	if offset >= len(all) {
		return []*products.Product{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (f *fakeProducts) Count(ctx context.Context, flt products.Filter) (int, error) {
	all, _ := f.ListAll(ctx, flt)
	return len(all), nil
}

func (f *fakeProducts) GetByID(_ context.Context, id int64) (*products.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, products.ErrNotFound
}

func (f *fakeProducts) Create(_ context.Context, p *products.Product) (*products.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, p)
	return p, nil
}

func (f *fakeProducts) Update(context.Context, int64, products.UpdateFields) (*products.Product, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProducts) RemoveImage(context.Context, int64, string) (*products.Product, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProducts) Delete(context.Context, int64) error {
	return errors.New("not implemented")
}

type testApp struct {
	*application
	users      *userstest.Store
	categories *categoriestest.Store
	products   *fakeProducts
	media      *mediatest.Store
	mail       *fakeMailer
}

func newTestApplication(t *testing.T, cfg config) *testApp {
	t.Helper()

	logger := zap.NewNop().Sugar()

	us := userstest.New()
	cs := categoriestest.New()
	ps := &fakeProducts{}
	ms := mediatest.New()
	mail := &fakeMailer{}

	store := &storage.Container{
		Users:      us,
		Categories: cs,
		Products:   ps,
	}

	if cfg.auth.basic.user == "" {
		cfg.auth.basic = basicConfig{user: "ops", pass: "secret"}
	}

	app := &application{
		config:        cfg,
		store:         store,
		categories:    categories.NewService(cs, ms, logger),
		media:         ms,
		logger:        logger,
		mailer:        mail,
		authenticator: auth.NewJWTAuthenticator("access-secret", "refresh-secret", "test", "test", time.Hour, 2*time.Hour),
	}
	if cfg.rateLimiter.Enabled {
		app.rateLimiter = ratelimiter.NewFixedWindowLimiter(cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame)
	}

	return &testApp{application: app, users: us, categories: cs, products: ps, media: ms, mail: mail}
}

// seedUser stores an active, verified user and returns it with a valid
// access token.
func (a *testApp) seedUser(t *testing.T, email string, role users.Role) (*users.User, string) {
	t.Helper()
	u := a.users.Seed(&users.User{Name: "Test", Email: email, Role: role, VerifyEmail: true}, "password123")
	access, _, err := a.authenticator.GenerateTokens(u.ID, string(u.Role))
	require.NoError(t, err)
	return u, access
}

func executeRequest(req *http.Request, mux http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func newJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// decodeData unwraps the {"data": ...} envelope into v.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	return e
}
