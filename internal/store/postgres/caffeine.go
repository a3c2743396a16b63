package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coffeestatsweb/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaffeineStore persists consumption events and answers the reporting
// queries. The date column is a naive timestamp interpreted via the row's own
// timezone column; entrytime is the server-side creation instant.
type CaffeineStore struct {
	pool *pgxpool.Pool
}

func NewCaffeineStore(pool *pgxpool.Pool) *CaffeineStore {
	return &CaffeineStore{pool: pool}
}

const caffeineCols = `id, user_id, ctype, date, timezone, entrytime`

func scanCaffeine(row userRowScanner) (domain.Caffeine, error) {
	var (
		c          domain.Caffeine
		idUUID     pgtype.UUID
		userIDUUID pgtype.UUID
	)
	err := row.Scan(&idUUID, &userIDUUID, &c.CType, &c.Date, &c.Timezone, &c.EntryTime)
	if err != nil {
		return domain.Caffeine{}, err
	}
	c.ID = uuidOrEmpty(idUUID)
	c.UserID = uuidOrEmpty(userIDUUID)
	return c, nil
}

func (s *CaffeineStore) CreateCaffeine(ctx context.Context, userID string, ctype domain.DrinkType, date time.Time, timezone string) (domain.Caffeine, error) {
	const q = `
		INSERT INTO caffeine (user_id, ctype, date, timezone)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + caffeineCols

	c, err := scanCaffeine(s.pool.QueryRow(ctx, q, userID, ctype, date, timezone))
	if err != nil {
		return domain.Caffeine{}, fmt.Errorf("create caffeine: %w", err)
	}
	return c, nil
}

// FindRecentCaffeine returns the latest entry of the given type whose date
// falls in [date-distance, date+distance), or ErrNotFound.
func (s *CaffeineStore) FindRecentCaffeine(ctx context.Context, userID string, date time.Time, ctype domain.DrinkType, distance time.Duration) (domain.Caffeine, error) {
	const q = `
		SELECT ` + caffeineCols + `
		FROM caffeine
		WHERE user_id = $1 AND ctype = $2 AND date >= $3 AND date < $4
		ORDER BY date DESC
		LIMIT 1
	`

	c, err := scanCaffeine(s.pool.QueryRow(ctx, q, userID, ctype, date.Add(-distance), date.Add(distance)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Caffeine{}, domain.ErrNotFound
		}
		return domain.Caffeine{}, fmt.Errorf("find recent caffeine: %w", err)
	}
	return c, nil
}

// GetCaffeine resolves one entry together with its owner's username.
func (s *CaffeineStore) GetCaffeine(ctx context.Context, id string) (domain.CaffeineActivity, error) {
	const q = `
		SELECT ` + activityCols + `
		FROM caffeine c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = $1
	`

	a, err := scanActivity(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CaffeineActivity{}, domain.ErrNotFound
		}
		return domain.CaffeineActivity{}, fmt.Errorf("get caffeine: %w", err)
	}
	return a, nil
}

// DeleteCaffeine removes one entry, scoped to its owner.
func (s *CaffeineStore) DeleteCaffeine(ctx context.Context, userID, id string) error {
	const q = `DELETE FROM caffeine WHERE id = $1 AND user_id = $2`
	ct, err := s.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return fmt.Errorf("delete caffeine: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *CaffeineStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]domain.Caffeine, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT ` + caffeineCols + `
		FROM caffeine
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2 OFFSET $3
	`
	return s.queryCaffeines(ctx, q, userID, limit, offset)
}

func (s *CaffeineStore) ListAll(ctx context.Context, limit, offset int) ([]domain.CaffeineActivity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT ` + activityCols + `
		FROM caffeine c
		JOIN users u ON u.id = c.user_id
		ORDER BY c.date DESC
		LIMIT $1 OFFSET $2
	`
	return s.queryActivities(ctx, q, limit, offset)
}

// LatestForUser orders by entry time, not consumption time, so freshly
// logged backdated drinks still show up as recent activity.
func (s *CaffeineStore) LatestForUser(ctx context.Context, userID string, count int) ([]domain.Caffeine, error) {
	if count <= 0 || count > 100 {
		count = 10
	}

	const q = `
		SELECT ` + caffeineCols + `
		FROM caffeine
		WHERE user_id = $1
		ORDER BY entrytime DESC
		LIMIT $2
	`
	return s.queryCaffeines(ctx, q, userID, count)
}

func (s *CaffeineStore) queryCaffeines(ctx context.Context, q string, args ...any) ([]domain.Caffeine, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query caffeine: %w", err)
	}
	defer rows.Close()

	var out []domain.Caffeine
	for rows.Next() {
		c, err := scanCaffeine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan caffeine: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query caffeine: %w", err)
	}
	return out, nil
}

const activityCols = `c.id, c.user_id, c.ctype, c.date, c.timezone, c.entrytime, u.username`

func scanActivity(row userRowScanner) (domain.CaffeineActivity, error) {
	var (
		a          domain.CaffeineActivity
		idUUID     pgtype.UUID
		userIDUUID pgtype.UUID
	)
	err := row.Scan(&idUUID, &userIDUUID, &a.CType, &a.Date, &a.Timezone, &a.EntryTime, &a.Username)
	if err != nil {
		return domain.CaffeineActivity{}, err
	}
	a.ID = uuidOrEmpty(idUUID)
	a.UserID = uuidOrEmpty(userIDUUID)
	return a, nil
}

func (s *CaffeineStore) queryActivities(ctx context.Context, q string, args ...any) ([]domain.CaffeineActivity, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []domain.CaffeineActivity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	return out, nil
}

// LatestActivity returns the most recent drinks across all active public
// users, newest consumption first.
func (s *CaffeineStore) LatestActivity(ctx context.Context, count int) ([]domain.CaffeineActivity, error) {
	if count <= 0 || count > 100 {
		count = 10
	}

	const q = `
		SELECT ` + activityCols + `
		FROM caffeine c
		JOIN users u ON u.id = c.user_id
		WHERE u.is_active AND u.public
		ORDER BY c.date DESC
		LIMIT $1
	`
	return s.queryActivities(ctx, q, count)
}

// TotalCounts counts drinks per type, for one user or (with an empty userID)
// site-wide.
func (s *CaffeineStore) TotalCounts(ctx context.Context, userID string) (domain.TotalCounts, error) {
	const q = `
		SELECT ctype, COUNT(id)
		FROM caffeine
		WHERE ($1::uuid IS NULL OR user_id = $1)
		GROUP BY ctype
	`

	rows, err := s.pool.Query(ctx, q, nullIfEmpty(userID))
	if err != nil {
		return domain.TotalCounts{}, fmt.Errorf("total counts: %w", err)
	}
	defer rows.Close()

	var totals domain.TotalCounts
	for rows.Next() {
		var (
			ctype domain.DrinkType
			count int
		)
		if err := rows.Scan(&ctype, &count); err != nil {
			return domain.TotalCounts{}, fmt.Errorf("scan total: %w", err)
		}
		switch ctype {
		case domain.DrinkCoffee:
			totals.Coffee = count
		case domain.DrinkMate:
			totals.Mate = count
		}
	}
	if err := rows.Err(); err != nil {
		return domain.TotalCounts{}, fmt.Errorf("total counts: %w", err)
	}
	return totals, nil
}

// HourlyToday buckets today's drinks by hour of day. An empty userID
// aggregates across all users.
func (s *CaffeineStore) HourlyToday(ctx context.Context, userID string) (domain.TimeSeries, error) {
	const q = `
		SELECT ctype, COUNT(id), date_part('hour', date)::int AS hour
		FROM caffeine
		WHERE date_trunc('day', CURRENT_TIMESTAMP) = date_trunc('day', date)
		  AND ($1::uuid IS NULL OR user_id = $1)
		GROUP BY hour, ctype
	`
	return s.queryTimeSeries(ctx, q, domain.NewHourlySeries(), 0, nullIfEmpty(userID))
}

// DailyThisMonth buckets this month's drinks by day of month.
func (s *CaffeineStore) DailyThisMonth(ctx context.Context, userID string) (domain.TimeSeries, error) {
	const q = `
		SELECT ctype, COUNT(id), date_part('day', date)::int AS day
		FROM caffeine
		WHERE date_trunc('month', CURRENT_TIMESTAMP) = date_trunc('month', date)
		  AND ($1::uuid IS NULL OR user_id = $1)
		GROUP BY day, ctype
	`
	return s.queryTimeSeries(ctx, q, domain.NewDailySeries(time.Now()), 1, nullIfEmpty(userID))
}

// MonthlyThisYear buckets this year's drinks by month.
func (s *CaffeineStore) MonthlyThisYear(ctx context.Context, userID string) (domain.TimeSeries, error) {
	const q = `
		SELECT ctype, COUNT(id), date_part('month', date)::int AS month
		FROM caffeine
		WHERE date_trunc('year', CURRENT_TIMESTAMP) = date_trunc('year', date)
		  AND ($1::uuid IS NULL OR user_id = $1)
		GROUP BY month, ctype
	`
	return s.queryTimeSeries(ctx, q, domain.NewMonthlySeries(), 1, nullIfEmpty(userID))
}

// HourlyOverall buckets all drinks ever recorded by hour of day.
func (s *CaffeineStore) HourlyOverall(ctx context.Context, userID string) (domain.TimeSeries, error) {
	const q = `
		SELECT ctype, COUNT(id), date_part('hour', date)::int AS hour
		FROM caffeine
		WHERE ($1::uuid IS NULL OR user_id = $1)
		GROUP BY hour, ctype
	`
	return s.queryTimeSeries(ctx, q, domain.NewHourlySeries(), 0, nullIfEmpty(userID))
}

// WeekdayOverall buckets all drinks by ISO weekday, Monday=1 .. Sunday=7.
func (s *CaffeineStore) WeekdayOverall(ctx context.Context, userID string) (domain.TimeSeries, error) {
	const q = `
		SELECT ctype, COUNT(id), date_part('isodow', date)::int AS wday
		FROM caffeine
		WHERE ($1::uuid IS NULL OR user_id = $1)
		GROUP BY wday, ctype
	`
	return s.queryTimeSeries(ctx, q, domain.NewWeekdaySeries(), 1, nullIfEmpty(userID))
}

// queryTimeSeries fills a prepared zero-filled series from (ctype, count,
// bucket) rows. bucketBase is what the SQL bucket value means for index 0:
// hours are 0-based, days/months/weekdays are 1-based.
func (s *CaffeineStore) queryTimeSeries(ctx context.Context, q string, series domain.TimeSeries, bucketBase int, args ...any) (domain.TimeSeries, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return domain.TimeSeries{}, fmt.Errorf("time series: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ctype  domain.DrinkType
			count  int
			bucket int
		)
		if err := rows.Scan(&ctype, &count, &bucket); err != nil {
			return domain.TimeSeries{}, fmt.Errorf("scan bucket: %w", err)
		}
		series.Set(ctype, bucket-bucketBase, count)
	}
	if err := rows.Err(); err != nil {
		return domain.TimeSeries{}, fmt.Errorf("time series: %w", err)
	}
	return series, nil
}

// TopConsumersTotal ranks active public users by raw drink count, descending.
func (s *CaffeineStore) TopConsumersTotal(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error) {
	if count <= 0 || count > 50 {
		count = 10
	}

	const q = `
		SELECT ` + topConsumerUserCols + `, COUNT(c.id) AS caffeine_count
		FROM caffeine c
		JOIN users u ON u.id = c.user_id
		WHERE c.ctype = $1 AND u.is_active AND u.public
		GROUP BY u.id
		ORDER BY caffeine_count DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, q, ctype, count)
	if err != nil {
		return nil, fmt.Errorf("top consumers total: %w", err)
	}
	defer rows.Close()

	var out []domain.TopConsumer
	for rows.Next() {
		var (
			tc     domain.TopConsumer
			idUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &tc.User.Username, &tc.User.FirstName, &tc.User.LastName, &tc.User.Location, &tc.User.DateJoined, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan top consumer: %w", err)
		}
		tc.User.ID = uuidOrEmpty(idUUID)
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top consumers total: %w", err)
	}
	return out, nil
}

const topConsumerUserCols = `u.id, u.username, u.first_name, u.last_name, u.location, u.date_joined`

// TopConsumersAverage ranks by drinks per day of membership in the drink
// type, counted from each user's first entry of that type.
func (s *CaffeineStore) TopConsumersAverage(ctx context.Context, ctype domain.DrinkType, count int) ([]domain.TopConsumer, error) {
	if count <= 0 || count > 50 {
		count = 10
	}

	const q = `
		SELECT ` + topConsumerUserCols + `, COUNT(c.id) AS total,
		       COUNT(c.id)::float / (date_part('day', CURRENT_DATE::timestamp - MIN(c.date)) + 1) AS average
		FROM caffeine c
		JOIN users u ON u.id = c.user_id
		WHERE c.ctype = $1 AND u.is_active AND u.public
		GROUP BY u.id
		ORDER BY average DESC
		LIMIT $2
	`
	return s.queryTopConsumersWithAverage(ctx, q, ctype, count)
}

// TopConsumersRecent ranks by drink count in the trailing window, ties
// broken by user id for a deterministic order.
func (s *CaffeineStore) TopConsumersRecent(ctx context.Context, ctype domain.DrinkType, count, windowDays int) ([]domain.TopConsumer, error) {
	if count <= 0 || count > 50 {
		count = 10
	}
	if windowDays <= 0 {
		windowDays = 30
	}

	const q = `
		SELECT ` + topConsumerUserCols + `, COUNT(c.id) AS total,
		       COUNT(c.id)::float / $3 AS average
		FROM caffeine c
		JOIN users u ON u.id = c.user_id
		WHERE c.ctype = $1 AND u.is_active AND u.public
		  AND c.date >= CURRENT_TIMESTAMP - make_interval(days => $3)
		GROUP BY u.id
		ORDER BY total DESC, u.id
		LIMIT $2
	`
	return s.queryTopConsumersWithAverage(ctx, q, ctype, count, windowDays)
}

func (s *CaffeineStore) queryTopConsumersWithAverage(ctx context.Context, q string, args ...any) ([]domain.TopConsumer, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("top consumers: %w", err)
	}
	defer rows.Close()

	var out []domain.TopConsumer
	for rows.Next() {
		var (
			tc     domain.TopConsumer
			idUUID pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &tc.User.Username, &tc.User.FirstName, &tc.User.LastName, &tc.User.Location, &tc.User.DateJoined, &tc.Count, &tc.Average); err != nil {
			return nil, fmt.Errorf("scan top consumer: %w", err)
		}
		tc.User.ID = uuidOrEmpty(idUUID)
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top consumers: %w", err)
	}
	return out, nil
}

// DatesForExport returns every consumption timestamp of one drink type in
// chronological order, for the CSV export mail.
func (s *CaffeineStore) DatesForExport(ctx context.Context, userID string, ctype domain.DrinkType) ([]time.Time, error) {
	const q = `
		SELECT date
		FROM caffeine
		WHERE user_id = $1 AND ctype = $2
		ORDER BY date
	`

	rows, err := s.pool.Query(ctx, q, userID, ctype)
	if err != nil {
		return nil, fmt.Errorf("dates for export: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dates for export: %w", err)
	}
	return out, nil
}
