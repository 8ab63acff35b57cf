package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/shramba/internal/auth"
	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/notify"
	"github.com/erazemk/shramba/internal/reminder"
	"github.com/erazemk/shramba/internal/store"
)

const testJWTSecret = "test-secret"

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

type testServer struct {
	*httptest.Server
	DB    *sql.DB
	Token string
}

func newTestServer(t *testing.T, deps Deps) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	deps.DB = database
	deps.JWTSecret = testJWTSecret
	if deps.Now == nil {
		deps.Now = testClock
	}
	server := httptest.NewServer(NewRouter(deps))
	t.Cleanup(server.Close)
	return &testServer{Server: server, DB: database}
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := newTestServer(t, Deps{})
	ts.Token = register(t, ts, "ana", "password1")
	return ts
}

func register(t *testing.T, ts *testServer, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d", resp.StatusCode)
	}

	var tr tokenResponse
	json.NewDecoder(resp.Body).Decode(&tr)
	if tr.Token == "" {
		t.Fatal("empty token from register")
	}
	return tr.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func do(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func createItem(t *testing.T, ts *testServer, token string, fields map[string]any) model.Item {
	t.Helper()
	body := map[string]any{
		"name":        "Milk",
		"quantity":    1,
		"unit":        "l",
		"category":    "Dairy",
		"expiry_date": "2025-06-20",
	}
	for k, v := range fields {
		body[k] = v
	}
	var item model.Item
	if code := do(t, "POST", ts.URL+"/api/items", token, body, &item); code != http.StatusCreated {
		t.Fatalf("create item: expected 201, got %d", code)
	}
	return item
}

func TestRegisterAndLogin(t *testing.T) {
	ts := setupTestServer(t)

	// Duplicate username.
	body, _ := json.Marshal(map[string]string{"username": "ana", "password": "password2"})
	resp, _ := http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Short password.
	body, _ = json.Marshal(map[string]string{"username": "bo", "password": "short"})
	resp, _ = http.Post(ts.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Wrong password.
	body, _ = json.Marshal(map[string]string{"username": "ana", "password": "wrong-password"})
	resp, _ = http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Valid login.
	body, _ = json.Marshal(map[string]string{"username": "ana", "password": "password1"})
	resp, _ = http.Post(ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for valid login, got %d", resp.StatusCode)
	}
	var tr tokenResponse
	json.NewDecoder(resp.Body).Decode(&tr)
	resp.Body.Close()

	claims, err := auth.ValidateToken(testJWTSecret, tr.Token)
	if err != nil {
		t.Fatalf("validating login token: %v", err)
	}
	if claims.OwnerID != tr.User.ID {
		t.Errorf("token owner %d, user %d", claims.OwnerID, tr.User.ID)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	ts := newTestServer(t, Deps{})

	for _, path := range []string{"/api/items", "/api/reminders"} {
		resp, _ := http.Get(ts.URL + path)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	// Token signed with another secret.
	token, _ := auth.GenerateToken("other-secret", 1, "mallory")
	if code := do(t, "GET", ts.URL+"/api/items", token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("expected 401 for foreign token, got %d", code)
	}
}

func TestItemsAPIFlow(t *testing.T) {
	ts := setupTestServer(t)

	created := createItem(t, ts, ts.Token, map[string]any{"reminder_days": 3})
	if created.Status != model.StatusGood {
		t.Errorf("expected Good for item 10 days out, got %q", created.Status)
	}

	// Move the expiry into the soon window.
	var updated model.Item
	code := do(t, "PUT", ts.URL+"/api/items/"+itoa(created.ID), ts.Token,
		map[string]any{"expiry_date": "2025-06-12"}, &updated)
	if code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", code)
	}
	if updated.Status != model.StatusExpiringSoon {
		t.Errorf("expected Expiring Soon, got %q", updated.Status)
	}
	if updated.Name != "Milk" {
		t.Errorf("unpatched name changed to %q", updated.Name)
	}

	var items []model.Item
	if code := do(t, "GET", ts.URL+"/api/items", ts.Token, nil, &items); code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", code)
	}
	if len(items) != 1 || items[0].Status != model.StatusExpiringSoon {
		t.Fatalf("unexpected list: %+v", items)
	}

	if code := do(t, "DELETE", ts.URL+"/api/items/"+itoa(created.ID), ts.Token, nil, nil); code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", code)
	}
	if code := do(t, "GET", ts.URL+"/api/items/"+itoa(created.ID), ts.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", code)
	}
}

func TestItemValidation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"quantity": 1, "unit": "kg", "category": "Meat", "expiry_date": "2025-06-20"}},
		{"zero quantity", map[string]any{"name": "Rice", "quantity": 0, "unit": "kg", "category": "Grain", "expiry_date": "2025-06-20"}},
		{"unknown unit", map[string]any{"name": "Rice", "quantity": 1, "unit": "cup", "category": "Grain", "expiry_date": "2025-06-20"}},
		{"unknown category", map[string]any{"name": "Rice", "quantity": 1, "unit": "kg", "category": "Snacks", "expiry_date": "2025-06-20"}},
		{"bad date", map[string]any{"name": "Rice", "quantity": 1, "unit": "kg", "category": "Grain", "expiry_date": "20/06/2025"}},
		{"missing date", map[string]any{"name": "Rice", "quantity": 1, "unit": "kg", "category": "Grain"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := do(t, "POST", ts.URL+"/api/items", ts.Token, tt.body, nil); code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", code)
			}
		})
	}

	item := createItem(t, ts, ts.Token, nil)
	if code := do(t, "PUT", ts.URL+"/api/items/"+itoa(item.ID), ts.Token, map[string]any{}, nil); code != http.StatusBadRequest {
		t.Errorf("empty patch: expected 400, got %d", code)
	}
	if code := do(t, "PUT", ts.URL+"/api/items/"+itoa(item.ID), ts.Token, map[string]any{"quantity": -1}, nil); code != http.StatusBadRequest {
		t.Errorf("invalid patch: expected 400, got %d", code)
	}
	if code := do(t, "GET", ts.URL+"/api/items/abc", ts.Token, nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", code)
	}
}

func TestItemsAreOwnerScoped(t *testing.T) {
	ts := setupTestServer(t)
	other := register(t, ts, "bo", "password2")

	item := createItem(t, ts, ts.Token, nil)

	if code := do(t, "GET", ts.URL+"/api/items/"+itoa(item.ID), other, nil, nil); code != http.StatusNotFound {
		t.Errorf("foreign get: expected 404, got %d", code)
	}
	if code := do(t, "DELETE", ts.URL+"/api/items/"+itoa(item.ID), other, nil, nil); code != http.StatusNotFound {
		t.Errorf("foreign delete: expected 404, got %d", code)
	}
	if code := do(t, "POST", ts.URL+"/api/items/"+itoa(item.ID)+"/open", other, nil, nil); code != http.StatusNotFound {
		t.Errorf("foreign open: expected 404, got %d", code)
	}

	var items []model.Item
	do(t, "GET", ts.URL+"/api/items", other, nil, &items)
	if len(items) != 0 {
		t.Errorf("expected empty list for other owner, got %d items", len(items))
	}
}

func TestOpenItem(t *testing.T) {
	ts := setupTestServer(t)
	item := createItem(t, ts, ts.Token, nil)

	var resp openItemResponse
	if code := do(t, "POST", ts.URL+"/api/items/"+itoa(item.ID)+"/open", ts.Token, nil, &resp); code != http.StatusOK {
		t.Fatalf("open: expected 200, got %d", code)
	}
	if !resp.Changed || !resp.Item.IsOpened {
		t.Fatalf("expected item to be opened: %+v", resp)
	}
	// Dairy keeps 4 days once opened.
	if got := resp.Item.ExpiryDate.String(); got != "2025-06-14" {
		t.Errorf("expected expiry 2025-06-14, got %s", got)
	}
	if resp.Item.OpenedDate == nil || resp.Item.OpenedDate.String() != "2025-06-10" {
		t.Errorf("expected opened date 2025-06-10, got %v", resp.Item.OpenedDate)
	}

	// Opening again is a no-op.
	resp = openItemResponse{}
	do(t, "POST", ts.URL+"/api/items/"+itoa(item.ID)+"/open", ts.Token,
		map[string]string{"opened_date": "2025-06-12"}, &resp)
	if resp.Changed {
		t.Error("second open should not change the item")
	}
	if got := resp.Item.ExpiryDate.String(); got != "2025-06-14" {
		t.Errorf("expiry moved on second open: %s", got)
	}
}

func TestOpenItemWithDate(t *testing.T) {
	ts := setupTestServer(t)
	item := createItem(t, ts, ts.Token, map[string]any{"name": "Chicken", "category": "Meat", "unit": "kg"})

	var resp openItemResponse
	do(t, "POST", ts.URL+"/api/items/"+itoa(item.ID)+"/open", ts.Token,
		map[string]string{"opened_date": "2025-06-08"}, &resp)
	if got := resp.Item.ExpiryDate.String(); got != "2025-06-11" {
		t.Errorf("expected expiry 2025-06-11, got %s", got)
	}
}

func TestItemImage(t *testing.T) {
	ts := setupTestServer(t)
	item := createItem(t, ts, ts.Token, nil)
	url := ts.URL + "/api/items/" + itoa(item.ID) + "/image"

	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := 0; x < 400; x++ {
		img.Set(x, 100, color.RGBA{R: 200, A: 255})
	}
	var pngBuf bytes.Buffer
	png.Encode(&pngBuf, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "milk.png")
	fw.Write(pngBuf.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", url, &body)
	req.Header.Set("Authorization", "Bearer "+ts.Token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}

	for _, u := range []string{url, url + "?thumb=1"} {
		req, _ := authRequest("GET", u, ts.Token, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("get image: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", u, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("%s: expected image/jpeg, got %q", u, ct)
		}
	}
}

func TestItemImageMissing(t *testing.T) {
	ts := setupTestServer(t)
	item := createItem(t, ts, ts.Token, nil)

	if code := do(t, "GET", ts.URL+"/api/items/"+itoa(item.ID)+"/image", ts.Token, nil, nil); code != http.StatusNotFound {
		t.Errorf("expected 404 without image, got %d", code)
	}
}

type stubFinder struct {
	mu     sync.Mutex
	name   string
	others []string
	err    error
}

func (f *stubFinder) Find(_ context.Context, name string, others []string) ([]model.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name, f.others = name, others
	if f.err != nil {
		return nil, f.err
	}
	return []model.Recipe{{ID: "1", Name: "Chicken curry", MatchScore: 2}}, nil
}

func TestItemRecipes(t *testing.T) {
	finder := &stubFinder{}
	ts := newTestServer(t, Deps{Recipes: finder})
	ts.Token = register(t, ts, "ana", "password1")

	item := createItem(t, ts, ts.Token, map[string]any{"name": "Chicken", "category": "Meat", "unit": "kg"})
	createItem(t, ts, ts.Token, map[string]any{"name": "Rice", "category": "Grain", "unit": "kg"})

	var found []model.Recipe
	if code := do(t, "GET", ts.URL+"/api/items/"+itoa(item.ID)+"/recipes", ts.Token, nil, &found); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(found) != 1 || found[0].Name != "Chicken curry" {
		t.Errorf("unexpected recipes: %+v", found)
	}
	finder.mu.Lock()
	if finder.name != "Chicken" || len(finder.others) != 1 || finder.others[0] != "Rice" {
		t.Errorf("finder called with %q %v", finder.name, finder.others)
	}
	finder.err = errors.New("quota exceeded")
	finder.mu.Unlock()
	found = nil
	do(t, "GET", ts.URL+"/api/items/"+itoa(item.ID)+"/recipes", ts.Token, nil, &found)
	if found == nil || len(found) != 0 {
		t.Errorf("expected empty list on lookup failure, got %v", found)
	}
}

func TestReminderFeed(t *testing.T) {
	ts := setupTestServer(t)

	for name, date := range map[string]string{
		"Old":     "2025-06-08",
		"Today":   "2025-06-10",
		"Soon":    "2025-06-12",
		"Later":   "2025-06-15",
		"Distant": "2025-07-30",
	} {
		createItem(t, ts, ts.Token, map[string]any{"name": name, "expiry_date": date})
	}

	var feed reminderFeed
	if code := do(t, "GET", ts.URL+"/api/reminders", ts.Token, nil, &feed); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	check := func(group string, entries []feedEntry, name string, days int) {
		t.Helper()
		if len(entries) != 1 || entries[0].Name != name || entries[0].DaysLeft != days {
			t.Errorf("%s: expected %s (%d days), got %+v", group, name, days, entries)
		}
	}
	check("expired", feed.Expired, "Old", -2)
	check("today", feed.DueToday, "Today", 0)
	check("soon", feed.Soon, "Soon", 2)
	check("later", feed.Later, "Later", 5)

	feed = reminderFeed{}
	do(t, "GET", ts.URL+"/api/reminders?days=2", ts.Token, nil, &feed)
	if len(feed.Later) != 0 || len(feed.Soon) != 1 {
		t.Errorf("days=2: expected only the soon item, got soon=%d later=%d", len(feed.Soon), len(feed.Later))
	}

	if code := do(t, "GET", ts.URL+"/api/reminders?days=-1", ts.Token, nil, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative days, got %d", code)
	}
}

type stubDispatcher struct {
	result notify.Result
	calls  atomic.Int32
}

func (d *stubDispatcher) DispatchOn(context.Context, model.Item, []string, model.Date) notify.Result {
	d.calls.Add(1)
	return d.result
}

func TestReminderRun(t *testing.T) {
	dispatcher := &stubDispatcher{result: notify.Result{EmailSent: true}}
	database := db.NewTestDB(t)
	scheduler := reminder.NewScheduler(store.NewItemStore(database), dispatcher, nil,
		reminder.Config{Concurrency: 1}, nil)

	server := httptest.NewServer(NewRouter(Deps{
		DB: database, JWTSecret: testJWTSecret, Scheduler: scheduler, Now: testClock,
	}))
	t.Cleanup(server.Close)
	ts := &testServer{Server: server, DB: database}
	ts.Token = register(t, ts, "ana", "password1")

	due := createItem(t, ts, ts.Token, map[string]any{
		"expiry_date": "2025-06-12", "reminder_days": 3, "reminder_email": "ana@example.com",
	})
	createItem(t, ts, ts.Token, map[string]any{"name": "Rice", "expiry_date": "2025-06-12"})

	var report reminder.PassReport
	if code := do(t, "POST", ts.URL+"/api/reminders/run", ts.Token, nil, &report); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if report.Due != 1 || report.Marked != 1 {
		t.Errorf("expected 1 due and marked, got %+v", report)
	}

	var item model.Item
	do(t, "GET", ts.URL+"/api/items/"+itoa(due.ID), ts.Token, nil, &item)
	if !item.ReminderSent {
		t.Error("expected reminder_sent after run")
	}

	// The reminder is consumed.
	do(t, "POST", ts.URL+"/api/reminders/run", ts.Token, nil, nil)
	if n := dispatcher.calls.Load(); n != 1 {
		t.Errorf("expected 1 dispatch across two runs, got %d", n)
	}

	last, err := store.LastReminderPass(context.Background(), database)
	if err != nil || last.IsZero() {
		t.Errorf("expected last pass to be recorded, got %v %v", last, err)
	}
}

func TestReminderRunDisabled(t *testing.T) {
	ts := setupTestServer(t)
	if code := do(t, "POST", ts.URL+"/api/reminders/run", ts.Token, nil, nil); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without scheduler, got %d", code)
	}
}

type stubMailer struct {
	mu  sync.Mutex
	to  string
	err error
}

func (m *stubMailer) SendTestEmail(_ context.Context, to string, _ model.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = to
	return m.err
}

func (m *stubMailer) set(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func TestTestEmail(t *testing.T) {
	mailer := &stubMailer{}
	ts := newTestServer(t, Deps{Mailer: mailer})
	ts.Token = register(t, ts, "ana", "password1")
	url := ts.URL + "/api/reminders/test-email"

	if code := do(t, "POST", url, ts.Token, map[string]string{"to": "not-an-address"}, nil); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad address, got %d", code)
	}

	if code := do(t, "POST", url, ts.Token, map[string]string{"to": "ana@example.com"}, nil); code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	mailer.mu.Lock()
	if mailer.to != "ana@example.com" {
		t.Errorf("mailer got %q", mailer.to)
	}
	mailer.mu.Unlock()

	mailer.set(notify.ErrNotConfigured)
	if code := do(t, "POST", url, ts.Token, map[string]string{"to": "ana@example.com"}, nil); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when unconfigured, got %d", code)
	}

	mailer.set(errors.New("smtp: 535 auth failed"))
	if code := do(t, "POST", url, ts.Token, map[string]string{"to": "ana@example.com"}, nil); code != http.StatusBadGateway {
		t.Errorf("expected 502 on send failure, got %d", code)
	}
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t, Deps{})

	var cats []categoryInfo
	if code := do(t, "GET", ts.URL+"/api/categories", "", nil, &cats); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(cats) != len(model.Categories) {
		t.Fatalf("expected %d categories, got %d", len(model.Categories), len(cats))
	}
	for _, c := range cats {
		if c.Name == model.CategoryDairy && c.OpenedShelfLifeDays != 4 {
			t.Errorf("Dairy opened shelf life: expected 4, got %d", c.OpenedShelfLifeDays)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Deps{Providers: Providers{Email: true}})

	var h healthResponse
	if code := do(t, "GET", ts.URL+"/api/health", "", nil, &h); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if h.Status != "ok" || !h.Providers.Email || h.Providers.Messaging {
		t.Errorf("unexpected health: %+v", h)
	}
	if h.LastPass != nil {
		t.Errorf("expected no last pass, got %v", h.LastPass)
	}
}
