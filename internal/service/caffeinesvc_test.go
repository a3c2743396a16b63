package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"coffeestatsweb/internal/domain"
)

type stubCaffeineStore struct {
	t *testing.T

	createCaffeineFunc     func(context.Context, string, domain.DrinkType, time.Time, string) (domain.Caffeine, error)
	findRecentFunc         func(context.Context, string, time.Time, domain.DrinkType, time.Duration) (domain.Caffeine, error)
	getCaffeineFunc        func(context.Context, string) (domain.CaffeineActivity, error)
	deleteCaffeineFunc     func(context.Context, string, string) error
	latestForUserFunc      func(context.Context, string, int) ([]domain.Caffeine, error)
	latestActivityFunc     func(context.Context, int) ([]domain.CaffeineActivity, error)
	totalCountsFunc        func(context.Context, string) (domain.TotalCounts, error)
	seriesFunc             func(context.Context, string) (domain.TimeSeries, error)
	topConsumersFunc       func(context.Context, domain.DrinkType, int) ([]domain.TopConsumer, error)
	topConsumersRecentFunc func(context.Context, domain.DrinkType, int, int) ([]domain.TopConsumer, error)
}

func (s *stubCaffeineStore) CreateCaffeine(ctx context.Context, userID string, ctype domain.DrinkType, date time.Time, timezone string) (domain.Caffeine, error) {
	if s.createCaffeineFunc != nil {
		return s.createCaffeineFunc(ctx, userID, ctype, date, timezone)
	}
	s.t.Fatalf("CreateCaffeine called unexpectedly")
	return domain.Caffeine{}, errors.New("unexpected call")
}

func (s *stubCaffeineStore) FindRecentCaffeine(ctx context.Context, userID string, date time.Time, ctype domain.DrinkType, distance time.Duration) (domain.Caffeine, error) {
	if s.findRecentFunc != nil {
		return s.findRecentFunc(ctx, userID, date, ctype, distance)
	}
	s.t.Fatalf("FindRecentCaffeine called unexpectedly")
	return domain.Caffeine{}, errors.New("unexpected call")
}

func (s *stubCaffeineStore) GetCaffeine(ctx context.Context, id string) (domain.CaffeineActivity, error) {
	if s.getCaffeineFunc != nil {
		return s.getCaffeineFunc(ctx, id)
	}
	s.t.Fatalf("GetCaffeine called unexpectedly")
	return domain.CaffeineActivity{}, errors.New("unexpected call")
}

func (s *stubCaffeineStore) DeleteCaffeine(ctx context.Context, userID, id string) error {
	if s.deleteCaffeineFunc != nil {
		return s.deleteCaffeineFunc(ctx, userID, id)
	}
	s.t.Fatalf("DeleteCaffeine called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubCaffeineStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Caffeine, error) {
	s.t.Fatalf("ListForUser called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCaffeineStore) ListAll(ctx context.Context, limit, offset int) ([]domain.CaffeineActivity, error) {
	s.t.Fatalf("ListAll called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCaffeineStore) LatestForUser(ctx context.Context, userID string, count int) ([]domain.Caffeine, error) {
	if s.latestForUserFunc != nil {
		return s.latestForUserFunc(ctx, userID, count)
	}
	s.t.Fatalf("LatestForUser called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCaffeineStore) LatestActivity(ctx context.Context, count int) ([]domain.CaffeineActivity, error) {
	if s.latestActivityFunc != nil {
		return s.latestActivityFunc(ctx, count)
	}
	s.t.Fatalf("LatestActivity called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCaffeineStore) TotalCounts(ctx context.Context, userID string) (domain.TotalCounts, error) {
	if s.totalCountsFunc != nil {
		return s.totalCountsFunc(ctx, userID)
	}
	s.t.Fatalf("TotalCounts called unexpectedly")
	return domain.TotalCounts{}, errors.New("unexpected call")
}

func (s *stubCaffeineStore) series(ctx context.Context, userID string) (domain.TimeSeries, error) {
	if s.seriesFunc != nil {
		return s.seriesFunc(ctx, userID)
	}
	s.t.Fatalf("time series query called unexpectedly")
	return domain.TimeSeries{}, errors.New("unexpected call")
}

func (s *stubCaffeineStore) HourlyToday(ctx context.Context, userID string) (domain.TimeSeries, error) {
	return s.series(ctx, userID)
}

func (s *stubCaffeineStore) DailyThisMonth(ctx context.Context, userID string) (domain.TimeSeries, error) {
	return s.series(ctx, userID)
}

func (s *stubCaffeineStore) MonthlyThisYear(ctx context.Context, userID string) (domain.TimeSeries, error) {
	return s.series(ctx, userID)
}

func (s *stubCaffeineStore) HourlyOverall(ctx context.Context, userID string) (domain.TimeSeries, error) {
	return s.series(ctx, userID)
}

func (s *stubCaffeineStore) WeekdayOverall(ctx context.Context, userID string) (domain.TimeSeries, error) {
	return s.series(ctx, userID)
}

func (s *stubCaffeineStore) TopConsumersTotal(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error) {
	if s.topConsumersFunc != nil {
		return s.topConsumersFunc(ctx, ctype, count)
	}
	s.t.Fatalf("TopConsumersTotal called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCaffeineStore) TopConsumersAverage(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error) {
	if s.topConsumersFunc != nil {
		return s.topConsumersFunc(ctx, ctype, count)
	}
	s.t.Fatalf("TopConsumersAverage called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCaffeineStore) TopConsumersRecent(ctx context.Context, ctype domain.DrinkType, count, windowDays int) ([]domain.TopConsumer, error) {
	if s.topConsumersRecentFunc != nil {
		return s.topConsumersRecentFunc(ctx, ctype, count, windowDays)
	}
	s.t.Fatalf("TopConsumersRecent called unexpectedly")
	return nil, errors.New("unexpected call")
}

type stubCardUsersStore struct {
	t *testing.T

	getUserByUsernameFunc func(context.Context, string) (domain.User, error)
	getUserByTokenFunc    func(context.Context, string, string) (domain.User, error)
	cardsFunc             func(context.Context, int) ([]domain.UserCard, error)
}

func (s *stubCardUsersStore) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	if s.getUserByUsernameFunc != nil {
		return s.getUserByUsernameFunc(ctx, username)
	}
	s.t.Fatalf("GetUserByUsername called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubCardUsersStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	s.t.Fatalf("ListUsers called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCardUsersStore) GetUserByToken(ctx context.Context, username, token string) (domain.User, error) {
	if s.getUserByTokenFunc != nil {
		return s.getUserByTokenFunc(ctx, username, token)
	}
	s.t.Fatalf("GetUserByToken called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubCardUsersStore) RandomUsers(ctx context.Context, count int) ([]domain.UserCard, error) {
	if s.cardsFunc != nil {
		return s.cardsFunc(ctx, count)
	}
	s.t.Fatalf("RandomUsers called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCardUsersStore) RecentlyJoined(ctx context.Context, count int) ([]domain.UserCard, error) {
	if s.cardsFunc != nil {
		return s.cardsFunc(ctx, count)
	}
	s.t.Fatalf("RecentlyJoined called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubCardUsersStore) LongestJoined(ctx context.Context, count, days int) ([]domain.UserCard, error) {
	if s.cardsFunc != nil {
		return s.cardsFunc(ctx, count)
	}
	s.t.Fatalf("LongestJoined called unexpectedly")
	return nil, errors.New("unexpected call")
}

var berlinUser = domain.User{ID: "user-1", Username: "alice", Timezone: "Europe/Berlin", IsActive: true, Public: true}

func TestCaffeineServiceSubmit(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	date := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	store := &stubCaffeineStore{
		t: t,
		findRecentFunc: func(_ context.Context, userID string, d time.Time, ctype domain.DrinkType, distance time.Duration) (domain.Caffeine, error) {
			if userID != "user-1" || ctype != domain.DrinkCoffee || !d.Equal(date) {
				t.Fatalf("unexpected guard query: %s %s %s", userID, ctype, d)
			}
			if distance != 5*time.Minute {
				t.Fatalf("unexpected guard distance: %s", distance)
			}
			return domain.Caffeine{}, domain.ErrNotFound
		},
		createCaffeineFunc: func(_ context.Context, userID string, ctype domain.DrinkType, d time.Time, tz string) (domain.Caffeine, error) {
			if tz != "Europe/Berlin" {
				t.Fatalf("record must carry the user's timezone, got %q", tz)
			}
			return domain.Caffeine{ID: "caf-1", UserID: userID, CType: ctype, Date: d, Timezone: tz}, nil
		},
	}

	svc := &CaffeineService{
		Store:                store,
		MinimumDrinkDistance: 5,
		Now:                  func() time.Time { return now },
	}

	c, err := svc.Submit(context.Background(), berlinUser, domain.DrinkCoffee, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "caf-1" {
		t.Fatalf("unexpected record: %+v", c)
	}
}

func TestCaffeineServiceSubmitDuplicate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	date := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	existing := time.Date(2025, 3, 1, 9, 27, 0, 0, time.UTC)

	store := &stubCaffeineStore{
		t: t,
		findRecentFunc: func(_ context.Context, _ string, _ time.Time, _ domain.DrinkType, _ time.Duration) (domain.Caffeine, error) {
			return domain.Caffeine{ID: "caf-0", Date: existing}, nil
		},
	}

	svc := &CaffeineService{
		Store:                store,
		MinimumDrinkDistance: 5,
		Now:                  func() time.Time { return now },
	}

	_, err := svc.Submit(context.Background(), berlinUser, domain.DrinkMate, date)
	var freqErr *domain.DrinkFrequencyError
	if !errors.As(err, &freqErr) {
		t.Fatalf("expected frequency error, got %v", err)
	}
	if freqErr.Drink != domain.DrinkMate || freqErr.Minutes != 5 || !freqErr.At.Equal(existing) {
		t.Fatalf("unexpected frequency error: %+v", freqErr)
	}
	if !strings.Contains(freqErr.Error(), "last mate was less than 5 minutes ago") {
		t.Fatalf("unexpected frequency message: %s", freqErr.Error())
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("frequency error must unwrap to validation")
	}
}

func TestCaffeineServiceSubmitFutureDate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	// 13:00 UTC naive is in the future even for Berlin local time (13:00).
	date := time.Date(2025, 3, 1, 13, 30, 0, 0, time.UTC)

	svc := &CaffeineService{
		Store:                &stubCaffeineStore{t: t},
		MinimumDrinkDistance: 5,
		Now:                  func() time.Time { return now },
	}

	_, err := svc.Submit(context.Background(), berlinUser, domain.DrinkCoffee, date)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCaffeineServiceSubmitNoTimezone(t *testing.T) {
	svc := &CaffeineService{Store: &stubCaffeineStore{t: t}, MinimumDrinkDistance: 5}

	u := berlinUser
	u.Timezone = ""
	_, err := svc.Submit(context.Background(), u, domain.DrinkCoffee, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCaffeineServiceSubmitOnTheRunUnknownToken(t *testing.T) {
	users := &stubCardUsersStore{
		t: t,
		getUserByTokenFunc: func(_ context.Context, username, token string) (domain.User, error) {
			return domain.User{}, domain.ErrNotFound
		},
	}

	svc := &CaffeineService{Store: &stubCaffeineStore{t: t}, Users: users, MinimumDrinkDistance: 5}

	_, err := svc.SubmitOnTheRun(context.Background(), "alice", "bad-token", domain.DrinkCoffee, time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCaffeineServiceProfilePrivate(t *testing.T) {
	users := &stubCardUsersStore{
		t: t,
		getUserByUsernameFunc: func(_ context.Context, username string) (domain.User, error) {
			u := berlinUser
			u.Public = false
			return u, nil
		},
	}

	svc := &CaffeineService{Store: &stubCaffeineStore{t: t}, Users: users}

	if _, err := svc.Profile(context.Background(), "someone-else", "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("private profile must look like a missing user, got %v", err)
	}
	if _, err := svc.Profile(context.Background(), "", "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("private profile must be hidden from anonymous visitors, got %v", err)
	}
}

func TestCaffeineServiceProfileOwnerSeesPrivate(t *testing.T) {
	users := &stubCardUsersStore{
		t: t,
		getUserByUsernameFunc: func(_ context.Context, username string) (domain.User, error) {
			u := berlinUser
			u.Public = false
			return u, nil
		},
	}
	store := &stubCaffeineStore{
		t: t,
		seriesFunc: func(_ context.Context, userID string) (domain.TimeSeries, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			return domain.NewHourlySeries(), nil
		},
		totalCountsFunc: func(_ context.Context, userID string) (domain.TotalCounts, error) {
			return domain.TotalCounts{Coffee: 3, Mate: 1}, nil
		},
		latestForUserFunc: func(_ context.Context, userID string, count int) ([]domain.Caffeine, error) {
			return nil, nil
		},
	}

	svc := &CaffeineService{Store: store, Users: users}

	ps, err := svc.Profile(context.Background(), "user-1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ps.IsOwner || ps.Totals.Coffee != 3 {
		t.Fatalf("unexpected profile stats: %+v", ps)
	}
}
