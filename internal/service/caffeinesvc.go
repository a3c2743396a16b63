package service

import (
	"context"
	"errors"
	"time"

	"coffeestatsweb/internal/domain"
)

type CaffeineStore interface {
	CreateCaffeine(ctx context.Context, userID string, ctype domain.DrinkType, date time.Time, timezone string) (domain.Caffeine, error)
	FindRecentCaffeine(ctx context.Context, userID string, date time.Time, ctype domain.DrinkType, distance time.Duration) (domain.Caffeine, error)
	GetCaffeine(ctx context.Context, id string) (domain.CaffeineActivity, error)
	DeleteCaffeine(ctx context.Context, userID, id string) error
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Caffeine, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.CaffeineActivity, error)
	LatestForUser(ctx context.Context, userID string, count int) ([]domain.Caffeine, error)
	LatestActivity(ctx context.Context, count int) ([]domain.CaffeineActivity, error)
	TotalCounts(ctx context.Context, userID string) (domain.TotalCounts, error)
	HourlyToday(ctx context.Context, userID string) (domain.TimeSeries, error)
	DailyThisMonth(ctx context.Context, userID string) (domain.TimeSeries, error)
	MonthlyThisYear(ctx context.Context, userID string) (domain.TimeSeries, error)
	HourlyOverall(ctx context.Context, userID string) (domain.TimeSeries, error)
	WeekdayOverall(ctx context.Context, userID string) (domain.TimeSeries, error)
	TopConsumersTotal(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error)
	TopConsumersAverage(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error)
	TopConsumersRecent(ctx context.Context, ctype domain.DrinkType, count, windowDays int) ([]domain.TopConsumer, error)
}

type CardUsersStore interface {
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	GetUserByToken(ctx context.Context, username, token string) (domain.User, error)
	RandomUsers(ctx context.Context, count int) ([]domain.UserCard, error)
	RecentlyJoined(ctx context.Context, count int) ([]domain.UserCard, error)
	LongestJoined(ctx context.Context, count, days int) ([]domain.UserCard, error)
}

type CaffeineService struct {
	Store CaffeineStore
	Users CardUsersStore
	// MinimumDrinkDistance is the duplicate guard window in minutes.
	MinimumDrinkDistance int
	Now                  func() time.Time
}

func (s *CaffeineService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Submit records one drink for the user. date is the naive wall clock time
// in the user's timezone; submitting a drink of the same type within the
// guard window around an existing entry fails with a DrinkFrequencyError.
func (s *CaffeineService) Submit(ctx context.Context, user domain.User, ctype domain.DrinkType, date time.Time) (domain.Caffeine, error) {
	if user.Timezone == "" {
		return domain.Caffeine{}, domain.NewValidationError(map[string]string{"timezone": "timezone must be set before submitting drinks"})
	}
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return domain.Caffeine{}, domain.NewValidationError(map[string]string{"timezone": "unknown timezone"})
	}

	// Compare naive wall clock values in the user's zone.
	localNow := s.now().In(loc)
	naiveNow := time.Date(localNow.Year(), localNow.Month(), localNow.Day(),
		localNow.Hour(), localNow.Minute(), localNow.Second(), 0, time.UTC)
	if date.After(naiveNow) {
		return domain.Caffeine{}, domain.NewValidationError(map[string]string{"date": "must not be in the future"})
	}

	distance := time.Duration(s.MinimumDrinkDistance) * time.Minute
	recent, err := s.Store.FindRecentCaffeine(ctx, user.ID, date, ctype, distance)
	if err == nil {
		return domain.Caffeine{}, &domain.DrinkFrequencyError{
			Drink:    ctype,
			Minutes:  s.MinimumDrinkDistance,
			At:       recent.Date,
			Timezone: user.Timezone,
		}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Caffeine{}, err
	}

	return s.Store.CreateCaffeine(ctx, user.ID, ctype, date, user.Timezone)
}

// SubmitOnTheRun records a drink authenticated by the user's on-the-run
// token instead of a session. An unknown username/token pair reports
// ErrNotFound.
func (s *CaffeineService) SubmitOnTheRun(ctx context.Context, username, token string, ctype domain.DrinkType, date time.Time) (domain.Caffeine, error) {
	u, err := s.Users.GetUserByToken(ctx, username, token)
	if err != nil {
		return domain.Caffeine{}, err
	}
	return s.Submit(ctx, u, ctype, date)
}

// ResolveOnTheRun checks an on-the-run credential pair without recording
// anything, for rendering the submission page.
func (s *CaffeineService) ResolveOnTheRun(ctx context.Context, username, token string) (domain.User, error) {
	return s.Users.GetUserByToken(ctx, username, token)
}

// Delete removes one of the caller's own entries. Entries of other users
// report ErrNotFound, not ErrForbidden, to avoid leaking entry ids.
func (s *CaffeineService) Delete(ctx context.Context, userID, id string) error {
	return s.Store.DeleteCaffeine(ctx, userID, id)
}

func (s *CaffeineService) Get(ctx context.Context, id string) (domain.CaffeineActivity, error) {
	return s.Store.GetCaffeine(ctx, id)
}

func (s *CaffeineService) ListAll(ctx context.Context, limit, offset int) ([]domain.CaffeineActivity, error) {
	return s.Store.ListAll(ctx, limit, offset)
}

// ListForUsername resolves username and returns that user's entries, newest
// first. Unknown usernames report ErrNotFound.
func (s *CaffeineService) ListForUsername(ctx context.Context, username string, limit, offset int) (domain.User, []domain.Caffeine, error) {
	u, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, nil, err
	}
	entries, err := s.Store.ListForUser(ctx, u.ID, limit, offset)
	if err != nil {
		return domain.User{}, nil, err
	}
	return u, entries, nil
}

func (s *CaffeineService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	return s.Users.ListUsers(ctx, limit, offset)
}

func (s *CaffeineService) GetUser(ctx context.Context, username string) (domain.User, error) {
	return s.Users.GetUserByUsername(ctx, username)
}

func (s *CaffeineService) RandomUsers(ctx context.Context, count int) ([]domain.UserCard, error) {
	return s.Users.RandomUsers(ctx, count)
}

// ProfileStats is everything the profile page shows for one user.
type ProfileStats struct {
	User    domain.User
	IsOwner bool
	Today   domain.TimeSeries
	Month   domain.TimeSeries
	Year    domain.TimeSeries
	Hours   domain.TimeSeries
	Weekday domain.TimeSeries
	Totals  domain.TotalCounts
	Latest  []domain.Caffeine
}

// Profile assembles the stats page for username as seen by viewer (empty
// viewer ID for anonymous visitors). Private profiles are only visible to
// their owner; for everyone else they report ErrNotFound, the same as a
// username that does not exist.
func (s *CaffeineService) Profile(ctx context.Context, viewerID, username string) (ProfileStats, error) {
	u, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return ProfileStats{}, err
	}
	isOwner := viewerID != "" && viewerID == u.ID
	if !u.IsActive || (!u.Public && !isOwner) {
		return ProfileStats{}, domain.ErrNotFound
	}

	ps := ProfileStats{User: u, IsOwner: isOwner}
	if ps.Today, err = s.Store.HourlyToday(ctx, u.ID); err != nil {
		return ProfileStats{}, err
	}
	if ps.Month, err = s.Store.DailyThisMonth(ctx, u.ID); err != nil {
		return ProfileStats{}, err
	}
	if ps.Year, err = s.Store.MonthlyThisYear(ctx, u.ID); err != nil {
		return ProfileStats{}, err
	}
	if ps.Hours, err = s.Store.HourlyOverall(ctx, u.ID); err != nil {
		return ProfileStats{}, err
	}
	if ps.Weekday, err = s.Store.WeekdayOverall(ctx, u.ID); err != nil {
		return ProfileStats{}, err
	}
	if ps.Totals, err = s.Store.TotalCounts(ctx, u.ID); err != nil {
		return ProfileStats{}, err
	}
	if ps.Latest, err = s.Store.LatestForUser(ctx, u.ID, 10); err != nil {
		return ProfileStats{}, err
	}
	return ps, nil
}

// OverallStats aggregates across all users.
type OverallStats struct {
	Today   domain.TimeSeries
	Month   domain.TimeSeries
	Year    domain.TimeSeries
	Hours   domain.TimeSeries
	Weekday domain.TimeSeries
	Totals  domain.TotalCounts
}

func (s *CaffeineService) Overall(ctx context.Context) (OverallStats, error) {
	var (
		os  OverallStats
		err error
	)
	if os.Today, err = s.Store.HourlyToday(ctx, ""); err != nil {
		return OverallStats{}, err
	}
	if os.Month, err = s.Store.DailyThisMonth(ctx, ""); err != nil {
		return OverallStats{}, err
	}
	if os.Year, err = s.Store.MonthlyThisYear(ctx, ""); err != nil {
		return OverallStats{}, err
	}
	if os.Hours, err = s.Store.HourlyOverall(ctx, ""); err != nil {
		return OverallStats{}, err
	}
	if os.Weekday, err = s.Store.WeekdayOverall(ctx, ""); err != nil {
		return OverallStats{}, err
	}
	if os.Totals, err = s.Store.TotalCounts(ctx, ""); err != nil {
		return OverallStats{}, err
	}
	return os, nil
}

// ExploreData is the community discovery page.
type ExploreData struct {
	Activity       []domain.CaffeineActivity
	MostActive     []domain.TopConsumer
	TopTotal       []domain.TopConsumer
	TopAverage     []domain.TopConsumer
	RandomUsers    []domain.UserCard
	RecentlyJoined []domain.UserCard
	LongestJoined  []domain.UserCard
}

const recentWindowDays = 30

func (s *CaffeineService) Explore(ctx context.Context) (ExploreData, error) {
	var (
		ed  ExploreData
		err error
	)
	if ed.Activity, err = s.Store.LatestActivity(ctx, 10); err != nil {
		return ExploreData{}, err
	}
	if ed.MostActive, err = s.Store.TopConsumersRecent(ctx, domain.DrinkCoffee, 10, recentWindowDays); err != nil {
		return ExploreData{}, err
	}
	if ed.TopTotal, err = s.Store.TopConsumersTotal(ctx, domain.DrinkCoffee, 10); err != nil {
		return ExploreData{}, err
	}
	if ed.TopAverage, err = s.Store.TopConsumersAverage(ctx, domain.DrinkCoffee, 10); err != nil {
		return ExploreData{}, err
	}
	if ed.RandomUsers, err = s.Users.RandomUsers(ctx, 4); err != nil {
		return ExploreData{}, err
	}
	if ed.RecentlyJoined, err = s.Users.RecentlyJoined(ctx, 5); err != nil {
		return ExploreData{}, err
	}
	if ed.LongestJoined, err = s.Users.LongestJoined(ctx, 5, recentWindowDays); err != nil {
		return ExploreData{}, err
	}
	return ed, nil
}
