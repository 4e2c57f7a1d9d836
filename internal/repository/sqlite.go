package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-emergency-dispatch/internal/models"
	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// every connection to ":memory:" is its own database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			institution_id TEXT NOT NULL,
			institution_name TEXT NOT NULL,
			district TEXT,
			state TEXT,
			reporter_name TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL,
			severity TEXT NOT NULL,
			location TEXT NOT NULL,
			description TEXT NOT NULL,
			latitude REAL,
			longitude REAL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS campaign_logs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			alert_id TEXT,
			resend_of TEXT,
			institution_id TEXT NOT NULL,
			institution_name TEXT NOT NULL,
			district TEXT,
			state TEXT,
			channel TEXT NOT NULL,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			language TEXT NOT NULL,
			priority TEXT NOT NULL,
			students INTEGER NOT NULL,
			parents INTEGER NOT NULL,
			staff INTEGER NOT NULL,
			emergency INTEGER NOT NULL,
			total INTEGER NOT NULL,
			sent INTEGER NOT NULL,
			delivered INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			acknowledged INTEGER NOT NULL,
			callbacks INTEGER NOT NULL,
			unsubscribed INTEGER NOT NULL,
			cost REAL NOT NULL,
			status TEXT NOT NULL,
			search_text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_institution ON alerts(institution_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
		CREATE INDEX IF NOT EXISTS idx_campaign_logs_institution ON campaign_logs(institution_id);
		CREATE INDEX IF NOT EXISTS idx_campaign_logs_created_at ON campaign_logs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

const alertColumns = `seq, id, institution_id, institution_name, district, state, reporter_name,
	category, status, severity, location, description, latitude, longitude, created_at, updated_at`

func (s *SQLiteDB) AddAlert(ctx context.Context, a *models.Alert) error {
	var lat, lon sql.NullFloat64
	if a.Coordinates != nil {
		lat = sql.NullFloat64{Float64: a.Coordinates.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: a.Coordinates.Longitude, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, institution_id, institution_name, district, state, reporter_name,
			category, status, severity, location, description, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Institution.ID, a.Institution.Name, a.Institution.District, a.Institution.State,
		a.ReporterName, string(a.Category), string(a.Status), string(a.Severity),
		a.Location, a.Description, lat, lon, a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("error inserting alert: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading alert seq: %w", err)
	}
	a.Seq = seq
	return nil
}

func (s *SQLiteDB) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading alert: %w", err)
	}
	return a, nil
}

func (s *SQLiteDB) UpdateAlert(ctx context.Context, a *models.Alert) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET status = ?, updated_at = ? WHERE id = ?`,
		string(a.Status), a.UpdatedAt.UnixNano(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating alert: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", a.ID, models.ErrNotFound)
	}
	return nil
}

func (s *SQLiteDB) ListAlerts(ctx context.Context, opts AlertFilter) ([]models.Alert, error) {
	var (
		where []string
		args  []any
	)
	if opts.InstitutionID != "" {
		where = append(where, "institution_id = ?")
		args = append(args, opts.InstitutionID)
	}
	if opts.OpenOnly {
		where = append(where, "status IN (?, ?)")
		args = append(args, string(models.AlertStatusPending), string(models.AlertStatusActive))
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*models.Alert, error) {
	var (
		a                    models.Alert
		district, state      sql.NullString
		lat, lon             sql.NullFloat64
		category, status     string
		severity             string
		createdAt, updatedAt int64
	)
	err := row.Scan(&a.Seq, &a.ID, &a.Institution.ID, &a.Institution.Name, &district, &state,
		&a.ReporterName, &category, &status, &severity, &a.Location, &a.Description,
		&lat, &lon, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Institution.District = district.String
	a.Institution.State = state.String
	a.Category = models.AlertCategory(category)
	a.Status = models.AlertStatus(status)
	a.Severity = models.Severity(severity)
	if lat.Valid && lon.Valid {
		a.Coordinates = &models.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	a.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &a, nil
}

const campaignColumns = `seq, id, alert_id, resend_of, institution_id, institution_name, district, state,
	channel, category, title, body, language, priority, students, parents, staff, emergency, total,
	sent, delivered, failed, pending, acknowledged, callbacks, unsubscribed, cost, status, created_at`

func (s *SQLiteDB) AddCampaign(ctx context.Context, l *models.CampaignLog) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO campaign_logs (id, alert_id, resend_of, institution_id, institution_name, district, state,
			channel, category, title, body, language, priority, students, parents, staff, emergency, total,
			sent, delivered, failed, pending, acknowledged, callbacks, unsubscribed, cost, status, search_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.AlertID, l.ResendOf, l.Institution.ID, l.Institution.Name, l.Institution.District, l.Institution.State,
		string(l.Channel), string(l.Category), l.Title, l.Body, l.Language, string(l.Priority),
		l.Recipients.Students, l.Recipients.Parents, l.Recipients.Staff, l.Recipients.Emergency, l.Recipients.Total,
		l.Delivery.Sent, l.Delivery.Delivered, l.Delivery.Failed, l.Delivery.Pending,
		l.Responses.Acknowledged, l.Responses.Callbacks, l.Responses.Unsubscribed,
		l.Cost, string(l.Status), searchText(l), l.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("error inserting campaign log: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("error reading campaign log seq: %w", err)
	}
	l.Seq = seq
	return nil
}

func (s *SQLiteDB) GetCampaign(ctx context.Context, id string) (*models.CampaignLog, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaign_logs WHERE id = ?`, id)
	l, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading campaign log: %w", err)
	}
	return l, nil
}

func (s *SQLiteDB) UpdateCampaignStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE campaign_logs SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("error updating campaign log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating campaign log: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("campaign %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *SQLiteDB) ListCampaigns(ctx context.Context, opts CampaignFilter) ([]models.CampaignLog, error) {
	var (
		where []string
		args  []any
	)
	if opts.InstitutionID != "" {
		where = append(where, "institution_id = ?")
		args = append(args, opts.InstitutionID)
	}
	if opts.AlertID != "" {
		where = append(where, "alert_id = ?")
		args = append(args, opts.AlertID)
	}
	if opts.Channel != nil {
		where = append(where, "channel = ?")
		args = append(args, string(*opts.Channel))
	}
	if opts.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*opts.Status))
	}
	if q := strings.ToLower(strings.TrimSpace(opts.Query)); q != "" {
		// search_text is lower-cased in Go, SQLite's lower() folds ASCII only
		where = append(where, "instr(search_text, ?) > 0")
		args = append(args, q)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaign_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing campaign logs: %w", err)
	}
	defer rows.Close()

	var logs []models.CampaignLog
	for rows.Next() {
		l, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning campaign log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func scanCampaign(row scanner) (*models.CampaignLog, error) {
	var (
		l                               models.CampaignLog
		alertID, resendOf               sql.NullString
		district, state                 sql.NullString
		channel, category, priority, st string
		createdAt                       int64
	)
	err := row.Scan(&l.Seq, &l.ID, &alertID, &resendOf, &l.Institution.ID, &l.Institution.Name, &district, &state,
		&channel, &category, &l.Title, &l.Body, &l.Language, &priority,
		&l.Recipients.Students, &l.Recipients.Parents, &l.Recipients.Staff, &l.Recipients.Emergency, &l.Recipients.Total,
		&l.Delivery.Sent, &l.Delivery.Delivered, &l.Delivery.Failed, &l.Delivery.Pending,
		&l.Responses.Acknowledged, &l.Responses.Callbacks, &l.Responses.Unsubscribed,
		&l.Cost, &st, &createdAt)
	if err != nil {
		return nil, err
	}
	l.AlertID = alertID.String
	l.ResendOf = resendOf.String
	l.Institution.District = district.String
	l.Institution.State = state.String
	l.Channel = models.Channel(channel)
	l.Category = models.AlertCategory(category)
	l.Priority = models.Priority(priority)
	l.Status = models.CampaignStatus(st)
	l.CreatedAt = time.Unix(0, createdAt).UTC()
	return &l, nil
}
