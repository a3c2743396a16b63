package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"coffeestatsweb/internal/domain"
	"coffeestatsweb/internal/service"
)

type stubAPICaffeineStore struct {
	t *testing.T

	createCaffeineFunc func(context.Context, string, domain.DrinkType, time.Time, string) (domain.Caffeine, error)
	findRecentFunc     func(context.Context, string, time.Time, domain.DrinkType, time.Duration) (domain.Caffeine, error)
	getCaffeineFunc    func(context.Context, string) (domain.CaffeineActivity, error)
	deleteCaffeineFunc func(context.Context, string, string) error
	listForUserFunc    func(context.Context, string, int, int) ([]domain.Caffeine, error)
	listAllFunc        func(context.Context, int, int) ([]domain.CaffeineActivity, error)
}

func (s *stubAPICaffeineStore) CreateCaffeine(ctx context.Context, userID string, ctype domain.DrinkType, date time.Time, timezone string) (domain.Caffeine, error) {
	if s.createCaffeineFunc != nil {
		return s.createCaffeineFunc(ctx, userID, ctype, date, timezone)
	}
	s.t.Fatalf("CreateCaffeine called unexpectedly")
	return domain.Caffeine{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) FindRecentCaffeine(ctx context.Context, userID string, date time.Time, ctype domain.DrinkType, distance time.Duration) (domain.Caffeine, error) {
	if s.findRecentFunc != nil {
		return s.findRecentFunc(ctx, userID, date, ctype, distance)
	}
	s.t.Fatalf("FindRecentCaffeine called unexpectedly")
	return domain.Caffeine{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) GetCaffeine(ctx context.Context, id string) (domain.CaffeineActivity, error) {
	if s.getCaffeineFunc != nil {
		return s.getCaffeineFunc(ctx, id)
	}
	s.t.Fatalf("GetCaffeine called unexpectedly")
	return domain.CaffeineActivity{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) DeleteCaffeine(ctx context.Context, userID, id string) error {
	if s.deleteCaffeineFunc != nil {
		return s.deleteCaffeineFunc(ctx, userID, id)
	}
	s.t.Fatalf("DeleteCaffeine called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Caffeine, error) {
	if s.listForUserFunc != nil {
		return s.listForUserFunc(ctx, userID, limit, offset)
	}
	s.t.Fatalf("ListForUser called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) ListAll(ctx context.Context, limit, offset int) ([]domain.CaffeineActivity, error) {
	if s.listAllFunc != nil {
		return s.listAllFunc(ctx, limit, offset)
	}
	s.t.Fatalf("ListAll called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) LatestForUser(ctx context.Context, userID string, count int) ([]domain.Caffeine, error) {
	s.t.Fatalf("LatestForUser called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) LatestActivity(ctx context.Context, count int) ([]domain.CaffeineActivity, error) {
	s.t.Fatalf("LatestActivity called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) TotalCounts(ctx context.Context, userID string) (domain.TotalCounts, error) {
	s.t.Fatalf("TotalCounts called unexpectedly")
	return domain.TotalCounts{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) HourlyToday(ctx context.Context, userID string) (domain.TimeSeries, error) {
	s.t.Fatalf("HourlyToday called unexpectedly")
	return domain.TimeSeries{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) DailyThisMonth(ctx context.Context, userID string) (domain.TimeSeries, error) {
	s.t.Fatalf("DailyThisMonth called unexpectedly")
	return domain.TimeSeries{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) MonthlyThisYear(ctx context.Context, userID string) (domain.TimeSeries, error) {
	s.t.Fatalf("MonthlyThisYear called unexpectedly")
	return domain.TimeSeries{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) HourlyOverall(ctx context.Context, userID string) (domain.TimeSeries, error) {
	s.t.Fatalf("HourlyOverall called unexpectedly")
	return domain.TimeSeries{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) WeekdayOverall(ctx context.Context, userID string) (domain.TimeSeries, error) {
	s.t.Fatalf("WeekdayOverall called unexpectedly")
	return domain.TimeSeries{}, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) TopConsumersTotal(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error) {
	s.t.Fatalf("TopConsumersTotal called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) TopConsumersAverage(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error) {
	s.t.Fatalf("TopConsumersAverage called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPICaffeineStore) TopConsumersRecent(ctx context.Context, ctype domain.DrinkType, count, windowDays int) ([]domain.TopConsumer, error) {
	s.t.Fatalf("TopConsumersRecent called unexpectedly")
	return nil, errors.New("unexpected call")
}

type stubAPIUsersStore struct {
	t *testing.T

	getUserByUsernameFunc func(context.Context, string) (domain.User, error)
	getUserByTokenFunc    func(context.Context, string, string) (domain.User, error)
	listUsersFunc         func(context.Context, int, int) ([]domain.User, error)
	randomUsersFunc       func(context.Context, int) ([]domain.UserCard, error)
}

func (s *stubAPIUsersStore) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	if s.getUserByUsernameFunc != nil {
		return s.getUserByUsernameFunc(ctx, username)
	}
	s.t.Fatalf("GetUserByUsername called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubAPIUsersStore) GetUserByToken(ctx context.Context, username, token string) (domain.User, error) {
	if s.getUserByTokenFunc != nil {
		return s.getUserByTokenFunc(ctx, username, token)
	}
	s.t.Fatalf("GetUserByToken called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubAPIUsersStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if s.listUsersFunc != nil {
		return s.listUsersFunc(ctx, limit, offset)
	}
	s.t.Fatalf("ListUsers called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPIUsersStore) RandomUsers(ctx context.Context, count int) ([]domain.UserCard, error) {
	if s.randomUsersFunc != nil {
		return s.randomUsersFunc(ctx, count)
	}
	s.t.Fatalf("RandomUsers called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPIUsersStore) RecentlyJoined(ctx context.Context, count int) ([]domain.UserCard, error) {
	s.t.Fatalf("RecentlyJoined called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubAPIUsersStore) LongestJoined(ctx context.Context, count, days int) ([]domain.UserCard, error) {
	s.t.Fatalf("LongestJoined called unexpectedly")
	return nil, errors.New("unexpected call")
}

func testAPI(store *stubAPICaffeineStore, users *stubAPIUsersStore, now func() time.Time) *api {
	return &api{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		caffeineSvc: &service.CaffeineService{
			Store:                store,
			Users:                users,
			MinimumDrinkDistance: 5,
			Now:                  now,
		},
	}
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

var apiUser = domain.User{
	ID:       "user-1",
	Username: "alice",
	Token:    "sekrit",
	Timezone: "Europe/Berlin",
	IsActive: true,
	Public:   true,
}

func TestV1AuthMissingCredentials(t *testing.T) {
	api := testAPI(&stubAPICaffeineStore{t: t}, &stubAPIUsersStore{t: t}, nil)

	called := false
	handler := api.apiTokenAuth(func(http.ResponseWriter, *http.Request, domain.User, []string) {
		called = true
	})

	rr := httptest.NewRecorder()
	handler(rr, postForm("/api/v1/add-drink", url.Values{}))

	if called {
		t.Fatalf("handler called without credentials")
	}
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp v1Envelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected success false")
	}
	for _, want := range []string{v1ErrNoUsername, v1ErrNoToken, v1ErrAuthRequired} {
		if !containsString(resp.Error, want) {
			t.Fatalf("missing error %q in %v", want, resp.Error)
		}
	}
}

func TestV1AuthInvalidCredentials(t *testing.T) {
	users := &stubAPIUsersStore{
		t: t,
		getUserByTokenFunc: func(_ context.Context, username, token string) (domain.User, error) {
			return domain.User{}, domain.ErrNotFound
		},
	}
	api := testAPI(&stubAPICaffeineStore{t: t}, users, nil)

	handler := api.apiTokenAuth(func(http.ResponseWriter, *http.Request, domain.User, []string) {
		t.Fatalf("handler called with bad credentials")
	})

	rr := httptest.NewRecorder()
	handler(rr, postForm("/api/v1/add-drink", url.Values{"u": {"alice"}, "t": {"wrong"}}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp v1Envelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || !containsString(resp.Error, v1ErrInvalidCredentials) {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestV1AddDrink(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &stubAPICaffeineStore{
		t: t,
		findRecentFunc: func(_ context.Context, userID string, _ time.Time, _ domain.DrinkType, _ time.Duration) (domain.Caffeine, error) {
			return domain.Caffeine{}, domain.ErrNotFound
		},
		createCaffeineFunc: func(_ context.Context, userID string, ctype domain.DrinkType, date time.Time, timezone string) (domain.Caffeine, error) {
			if userID != "user-1" || ctype != domain.DrinkCoffee || timezone != "Europe/Berlin" {
				t.Fatalf("unexpected create: %s %s %s", userID, ctype, timezone)
			}
			return domain.Caffeine{ID: "caf-1", UserID: userID, CType: ctype, Date: date, Timezone: timezone}, nil
		},
	}
	users := &stubAPIUsersStore{
		t: t,
		getUserByTokenFunc: func(_ context.Context, username, token string) (domain.User, error) {
			if username != "alice" || token != "sekrit" {
				return domain.User{}, domain.ErrNotFound
			}
			return apiUser, nil
		},
	}
	api := testAPI(store, users, func() time.Time { return now })

	rr := httptest.NewRecorder()
	api.apiTokenAuth(api.handleV1AddDrink)(rr, postForm("/api/v1/add-drink", url.Values{
		"u": {"alice"}, "t": {"sekrit"},
		"beverage": {"coffee"},
		"time":     {"2025-06-01 09:30"},
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rr.Code, rr.Body.String())
	}

	var resp v1Envelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || len(resp.Error) != 0 || len(resp.Warning) != 0 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestV1AddDrinkNoTimezoneWarns(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &stubAPICaffeineStore{
		t: t,
		findRecentFunc: func(context.Context, string, time.Time, domain.DrinkType, time.Duration) (domain.Caffeine, error) {
			return domain.Caffeine{}, domain.ErrNotFound
		},
		createCaffeineFunc: func(_ context.Context, userID string, ctype domain.DrinkType, date time.Time, timezone string) (domain.Caffeine, error) {
			if timezone != "UTC" {
				t.Fatalf("expected UTC fallback, got %q", timezone)
			}
			return domain.Caffeine{ID: "caf-1"}, nil
		},
	}
	noTZ := apiUser
	noTZ.Timezone = ""
	users := &stubAPIUsersStore{
		t: t,
		getUserByTokenFunc: func(context.Context, string, string) (domain.User, error) {
			return noTZ, nil
		},
	}
	api := testAPI(store, users, func() time.Time { return now })

	rr := httptest.NewRecorder()
	api.apiTokenAuth(api.handleV1AddDrink)(rr, postForm("/api/v1/add-drink", url.Values{
		"u": {"alice"}, "t": {"sekrit"},
		"beverage": {"mate"},
		"time":     {"2025-06-01 09:30:15"},
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body %s", rr.Code, rr.Body.String())
	}

	var resp v1Envelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || !containsString(resp.Warning, v1WarnTimezoneNotSet) {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestV1AddDrinkGuardViolation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &stubAPICaffeineStore{
		t: t,
		findRecentFunc: func(_ context.Context, _ string, date time.Time, _ domain.DrinkType, _ time.Duration) (domain.Caffeine, error) {
			return domain.Caffeine{ID: "caf-0", Date: date.Add(-2 * time.Minute)}, nil
		},
	}
	users := &stubAPIUsersStore{
		t: t,
		getUserByTokenFunc: func(context.Context, string, string) (domain.User, error) {
			return apiUser, nil
		},
	}
	api := testAPI(store, users, func() time.Time { return now })

	rr := httptest.NewRecorder()
	api.apiTokenAuth(api.handleV1AddDrink)(rr, postForm("/api/v1/add-drink", url.Values{
		"u": {"alice"}, "t": {"sekrit"},
		"beverage": {"coffee"},
		"time":     {"2025-06-01 09:30"},
	}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp v1Envelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || len(resp.Error) == 0 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestV1AddDrinkParamValidation(t *testing.T) {
	users := &stubAPIUsersStore{
		t: t,
		getUserByTokenFunc: func(context.Context, string, string) (domain.User, error) {
			return apiUser, nil
		},
	}
	api := testAPI(&stubAPICaffeineStore{t: t}, users, nil)

	rr := httptest.NewRecorder()
	api.apiTokenAuth(api.handleV1AddDrink)(rr, postForm("/api/v1/add-drink", url.Values{
		"u": {"alice"}, "t": {"sekrit"},
		"beverage": {"water"},
		"time":     {"yesterday-ish"},
	}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp v1Envelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	for _, want := range []string{v1ErrInvalidBeverage, v1ErrInvalidTime} {
		if !containsString(resp.Error, want) {
			t.Fatalf("missing error %q in %v", want, resp.Error)
		}
	}
}

func TestV1RandomUsersDefaultCount(t *testing.T) {
	users := &stubAPIUsersStore{
		t: t,
		getUserByTokenFunc: func(context.Context, string, string) (domain.User, error) {
			return apiUser, nil
		},
		randomUsersFunc: func(_ context.Context, count int) ([]domain.UserCard, error) {
			if count != defaultRandomUserCount {
				t.Fatalf("unexpected count: %d", count)
			}
			return []domain.UserCard{
				{Username: "bob", Name: "Bob B", Location: "Berlin", Coffees: 3, Mate: 1},
			}, nil
		},
	}
	api := testAPI(&stubAPICaffeineStore{t: t}, users, nil)

	rr := httptest.NewRecorder()
	api.apiTokenAuth(api.handleV1RandomUsers)(rr, postForm("/api/v1/random-users", url.Values{
		"u": {"alice"}, "t": {"sekrit"},
	}))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var cards []v1UserCard
	if err := json.NewDecoder(rr.Body).Decode(&cards); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(cards) != 1 || cards[0].Username != "bob" || cards[0].Coffees != 3 {
		t.Fatalf("unexpected cards: %+v", cards)
	}
	if !strings.Contains(cards[0].Profile, "/profile/bob/") {
		t.Fatalf("unexpected profile url: %s", cards[0].Profile)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
