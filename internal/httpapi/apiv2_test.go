package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coffeestatsweb/internal/domain"
)

func authedRequest(method, target, body string, u domain.User) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(context.WithValue(req.Context(), authUserKey, u))
}

func TestV2UsersGet(t *testing.T) {
	users := &stubAPIUsersStore{
		t: t,
		getUserByUsernameFunc: func(_ context.Context, username string) (domain.User, error) {
			if username != "alice" {
				return domain.User{}, domain.ErrNotFound
			}
			return apiUser, nil
		},
	}
	api := testAPI(&stubAPICaffeineStore{t: t}, users, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/users/alice/", nil)
	req.SetPathValue("username", "alice")
	rr := httptest.NewRecorder()
	api.handleV2UsersGet(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp v2User
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Username != "alice" {
		t.Fatalf("unexpected username: %s", resp.Username)
	}
	if !strings.HasSuffix(resp.URL, "/api/v2/users/alice/") {
		t.Fatalf("unexpected url: %s", resp.URL)
	}
	if !strings.HasSuffix(resp.Caffeine, "/api/v2/users/alice/caffeine/") {
		t.Fatalf("unexpected caffeine url: %s", resp.Caffeine)
	}
}

func TestV2CaffeineGet(t *testing.T) {
	entry := domain.CaffeineActivity{
		Caffeine: domain.Caffeine{
			ID:        "caf-1",
			UserID:    "user-1",
			CType:     domain.DrinkCoffee,
			Date:      time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
			Timezone:  "Europe/Berlin",
			EntryTime: time.Date(2025, 6, 1, 8, 31, 2, 0, time.UTC),
		},
		Username: "alice",
	}
	store := &stubAPICaffeineStore{
		t: t,
		getCaffeineFunc: func(_ context.Context, id string) (domain.CaffeineActivity, error) {
			if id != "caf-1" {
				return domain.CaffeineActivity{}, domain.ErrNotFound
			}
			return entry, nil
		},
	}
	api := testAPI(store, &stubAPIUsersStore{t: t}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/caffeine/caf-1/", nil)
	req.SetPathValue("id", "caf-1")
	rr := httptest.NewRecorder()
	api.handleV2CaffeineGet(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp v2Caffeine
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Date != "2025-06-01T09:30:00" || resp.CType != "coffee" {
		t.Fatalf("unexpected resource: %+v", resp)
	}
	if !strings.HasSuffix(resp.User, "/api/v2/users/alice/") {
		t.Fatalf("unexpected user url: %s", resp.User)
	}
}

func TestV2UserCaffeineCreate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &stubAPICaffeineStore{
		t: t,
		findRecentFunc: func(context.Context, string, time.Time, domain.DrinkType, time.Duration) (domain.Caffeine, error) {
			return domain.Caffeine{}, domain.ErrNotFound
		},
		createCaffeineFunc: func(_ context.Context, userID string, ctype domain.DrinkType, date time.Time, timezone string) (domain.Caffeine, error) {
			return domain.Caffeine{ID: "caf-9", UserID: userID, CType: ctype, Date: date, Timezone: timezone, EntryTime: now}, nil
		},
	}
	api := testAPI(store, &stubAPIUsersStore{t: t}, func() time.Time { return now })

	req := authedRequest(http.MethodPost, "/api/v2/users/alice/caffeine/",
		`{"ctype":"coffee","date":"2025-06-01T09:30:00"}`, apiUser)
	req.SetPathValue("username", "alice")
	rr := httptest.NewRecorder()
	api.handleV2UserCaffeineCreate(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d body %s", rr.Code, rr.Body.String())
	}

	var resp v2Caffeine
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasSuffix(resp.URL, "/api/v2/caffeine/caf-9/") {
		t.Fatalf("unexpected url: %s", resp.URL)
	}
}

func TestV2UserCaffeineCreateForeignCollection(t *testing.T) {
	api := testAPI(&stubAPICaffeineStore{t: t}, &stubAPIUsersStore{t: t}, nil)

	req := authedRequest(http.MethodPost, "/api/v2/users/bob/caffeine/",
		`{"ctype":"coffee","date":"2025-06-01T09:30:00"}`, apiUser)
	req.SetPathValue("username", "bob")
	rr := httptest.NewRecorder()
	api.handleV2UserCaffeineCreate(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestV2UserCaffeineGetWrongOwner(t *testing.T) {
	store := &stubAPICaffeineStore{
		t: t,
		getCaffeineFunc: func(context.Context, string) (domain.CaffeineActivity, error) {
			return domain.CaffeineActivity{
				Caffeine: domain.Caffeine{ID: "caf-1", UserID: "user-2"},
				Username: "bob",
			}, nil
		},
	}
	api := testAPI(store, &stubAPIUsersStore{t: t}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/users/alice/caffeine/caf-1/", nil)
	req.SetPathValue("username", "alice")
	req.SetPathValue("id", "caf-1")
	rr := httptest.NewRecorder()
	api.handleV2UserCaffeineGet(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestV2UserCaffeineDelete(t *testing.T) {
	deleted := false
	store := &stubAPICaffeineStore{
		t: t,
		deleteCaffeineFunc: func(_ context.Context, userID, id string) error {
			if userID != "user-1" || id != "caf-1" {
				t.Fatalf("unexpected delete: %s %s", userID, id)
			}
			deleted = true
			return nil
		},
	}
	api := testAPI(store, &stubAPIUsersStore{t: t}, nil)

	req := authedRequest(http.MethodDelete, "/api/v2/users/alice/caffeine/caf-1/", "", apiUser)
	req.SetPathValue("username", "alice")
	req.SetPathValue("id", "caf-1")
	rr := httptest.NewRecorder()
	api.handleV2UserCaffeineDelete(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if !deleted {
		t.Fatalf("delete not forwarded to store")
	}
}

func TestV2UserCaffeineList(t *testing.T) {
	users := &stubAPIUsersStore{
		t: t,
		getUserByUsernameFunc: func(context.Context, string) (domain.User, error) {
			return apiUser, nil
		},
	}
	store := &stubAPICaffeineStore{
		t: t,
		listForUserFunc: func(_ context.Context, userID string, limit, offset int) ([]domain.Caffeine, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return []domain.Caffeine{
				{ID: "caf-1", UserID: userID, CType: domain.DrinkMate,
					Date: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)},
			}, nil
		},
	}
	api := testAPI(store, users, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/users/alice/caffeine/", nil)
	req.SetPathValue("username", "alice")
	rr := httptest.NewRecorder()
	api.handleV2UserCaffeineList(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	var resp []v2Caffeine
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].CType != "mate" {
		t.Fatalf("unexpected list: %+v", resp)
	}
}
