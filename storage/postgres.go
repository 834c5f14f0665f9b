package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	"leadmarket/geo"
	"leadmarket/models"
)

// PostgresStore is the production Store. Transactions run at SERIALIZABLE
// isolation and every update is conditional on the version that was read.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection to PostgreSQL and waits for it to
// accept connections. Schema is managed separately by RunMigrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return &PostgresStore{db: db, now: time.Now}, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// mapError converts driver errors into the store's typed errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001" || pqErr.Code == "40P01":
			return models.ErrConflict
		case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %v", models.ErrTransientStore, err)
		}
		return err
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", models.ErrTransientStore, err)
	}
	return err
}

// ---- transactions ----

type pgTx struct {
	tx  *sql.Tx
	now time.Time
}

// RunInTx implements TxRunner.
func (ps *PostgresStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := ps.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError(fmt.Errorf("postgres: begin: %w", err))
	}
	if err := fn(&pgTx{tx: sqlTx, now: ps.now()}); err != nil {
		_ = sqlTx.Rollback()
		return mapError(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError(fmt.Errorf("postgres: commit: %w", err))
	}
	return nil
}

func (t *pgTx) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	return scanAgent(t.tx.QueryRowContext(ctx, selectAgent+" WHERE id = $1", id), id)
}

func (t *pgTx) GetBuyer(ctx context.Context, id string) (*models.BuyerProfile, error) {
	return scanBuyer(t.tx.QueryRowContext(ctx, selectBuyer+" WHERE id = $1", id), id)
}

func (t *pgTx) GetPurchase(ctx context.Context, id string) (*models.LeadPurchase, error) {
	return scanPurchase(t.tx.QueryRowContext(ctx, selectPurchase+" WHERE id = $1", id), id)
}

func (t *pgTx) UpdateAgent(ctx context.Context, a *models.Agent) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE agents SET credits = $3, is_on_trial = $4, trial_end_date = $5,
			updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $2`,
		a.ID, a.Version, a.Credits, a.IsOnTrial, a.TrialEndDate, t.now)
	return checkVersioned(res, err, "agent", a.ID)
}

func (t *pgTx) UpdateBuyer(ctx context.Context, b *models.BuyerProfile) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE buyers SET is_available_for_purchase = $3, purchased_by = $4,
			purchased_at = $5, updated_at = $6, version = version + 1
		WHERE id = $1 AND version = $2`,
		b.ID, b.Version, b.IsAvailableForPurchase, b.PurchasedBy, b.PurchasedAt, t.now)
	return checkVersioned(res, err, "buyer", b.ID)
}

func (t *pgTx) UpdatePurchase(ctx context.Context, p *models.LeadPurchase) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE lead_purchases SET status = $2, refund_reason = $3, updated_at = $4,
			version = version + 1
		WHERE id = $1`,
		p.ID, p.Status, p.RefundReason, p.UpdatedAt)
	return checkVersioned(res, err, "purchase", p.ID)
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, agent_id, type, description, credits_change, running_balance, related_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		tr.ID, tr.AgentID, tr.Type, tr.Description, tr.CreditsChange, tr.RunningBalance, tr.RelatedID, tr.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert transaction: %w", err)
	}
	return nil
}

func (t *pgTx) InsertPurchase(ctx context.Context, p *models.LeadPurchase) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO lead_purchases (id, agent_id, buyer_id, credits_cost, status, transaction_id, refund_reason, purchased_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.AgentID, p.BuyerID, p.CreditsCost, p.Status, p.TransactionID, p.RefundReason, p.PurchasedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert purchase: %w", err)
	}
	return nil
}

// checkVersioned treats a conditional update that touched no rows as a lost
// race, since the row was read earlier in the same transaction.
func checkVersioned(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return fmt.Errorf("postgres: update %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return models.ErrConflict
	}
	return nil
}

// ---- claims ----

func (ps *PostgresStore) CreateClaim(ctx context.Context, c models.NotificationClaim) error {
	res, err := ps.db.ExecContext(ctx, `
		INSERT INTO notification_claims (buyer_id, property_id, status, claimed_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (buyer_id, property_id) DO NOTHING`,
		c.BuyerID, c.PropertyID, c.Status, c.ClaimedAt)
	if err != nil {
		return mapError(fmt.Errorf("postgres: create claim: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrClaimExists
	}
	return nil
}

func (ps *PostgresStore) MarkClaimSent(ctx context.Context, buyerID, propertyID string, at time.Time) error {
	res, err := ps.db.ExecContext(ctx, `
		UPDATE notification_claims SET status = $3, sent_at = $4
		WHERE buyer_id = $1 AND property_id = $2`,
		buyerID, propertyID, models.ClaimSent, at)
	if err != nil {
		return mapError(fmt.Errorf("postgres: mark claim sent: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Kind: "claim", ID: models.ClaimKey(buyerID, propertyID)}
	}
	return nil
}

func (ps *PostgresStore) DeleteClaim(ctx context.Context, buyerID, propertyID string) error {
	_, err := ps.db.ExecContext(ctx,
		"DELETE FROM notification_claims WHERE buyer_id = $1 AND property_id = $2", buyerID, propertyID)
	if err != nil {
		return mapError(fmt.Errorf("postgres: delete claim: %w", err))
	}
	return nil
}

func (ps *PostgresStore) GetClaim(ctx context.Context, buyerID, propertyID string) (*models.NotificationClaim, error) {
	c := &models.NotificationClaim{BuyerID: buyerID, PropertyID: propertyID}
	err := ps.db.QueryRowContext(ctx, `
		SELECT status, claimed_at, sent_at FROM notification_claims
		WHERE buyer_id = $1 AND property_id = $2`, buyerID, propertyID).
		Scan(&c.Status, &c.ClaimedAt, &c.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "claim", ID: models.ClaimKey(buyerID, propertyID)}
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: get claim: %w", err))
	}
	return c, nil
}

// ---- queries ----

func (ps *PostgresStore) AvailableBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error) {
	return ps.queryBuyers(ctx, selectBuyer+`
		WHERE state_code = $1 AND is_active AND is_available_for_purchase AND purchased_by = ''
		ORDER BY id`, geo.NormalizeState(state))
}

func (ps *PostgresStore) ActiveBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error) {
	return ps.queryBuyers(ctx, selectBuyer+" WHERE state_code = $1 AND is_active ORDER BY id", geo.NormalizeState(state))
}

func (ps *PostgresStore) queryBuyers(ctx context.Context, query string, args ...any) ([]*models.BuyerProfile, error) {
	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: query buyers: %w", err))
	}
	defer rows.Close()

	var out []*models.BuyerProfile
	for rows.Next() {
		b, err := scanBuyer(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, mapError(rows.Err())
}

func (ps *PostgresStore) AgentUserIDs(ctx context.Context) ([]string, error) {
	rows, err := ps.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM agents WHERE user_id <> '' ORDER BY user_id")
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: query agent users: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan agent user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, mapError(rows.Err())
}

func (ps *PostgresStore) ActiveProperties(ctx context.Context, state string) ([]*models.PropertyListing, error) {
	return ps.queryProperties(ctx, selectProperty+" WHERE state_code = $1 AND status = $2 ORDER BY id",
		geo.NormalizeState(state), models.StatusActive)
}

func (ps *PostgresStore) ListProperties(ctx context.Context) ([]*models.PropertyListing, error) {
	return ps.queryProperties(ctx, selectProperty+" ORDER BY id")
}

func (ps *PostgresStore) queryProperties(ctx context.Context, query string, args ...any) ([]*models.PropertyListing, error) {
	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: query properties: %w", err))
	}
	defer rows.Close()

	var out []*models.PropertyListing
	for rows.Next() {
		p, err := scanProperty(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapError(rows.Err())
}

// ---- repository ----

func (ps *PostgresStore) SaveAgent(ctx context.Context, a *models.Agent) error {
	err := ps.db.QueryRowContext(ctx, `
		INSERT INTO agents (id, user_id, first_name, last_name, company, credits, primary_city, primary_state,
			radius_miles, service_cities, languages, is_on_trial, trial_end_date, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			company = EXCLUDED.company, credits = EXCLUDED.credits, primary_city = EXCLUDED.primary_city,
			primary_state = EXCLUDED.primary_state, radius_miles = EXCLUDED.radius_miles,
			service_cities = EXCLUDED.service_cities, languages = EXCLUDED.languages,
			is_on_trial = EXCLUDED.is_on_trial, trial_end_date = EXCLUDED.trial_end_date,
			updated_at = EXCLUDED.updated_at, version = agents.version + 1
		RETURNING version`,
		a.ID, a.UserID, a.FirstName, a.LastName, a.Company, a.Credits,
		a.ServiceArea.PrimaryCity, a.ServiceArea.PrimaryState, a.ServiceArea.RadiusMiles,
		pq.Array(a.ServiceArea.Cities), pq.Array(a.ServiceArea.Languages),
		a.IsOnTrial, a.TrialEndDate, orNow(a.CreatedAt, ps.now), ps.now()).
		Scan(&a.Version)
	if err != nil {
		return mapError(fmt.Errorf("postgres: save agent %s: %w", a.ID, err))
	}
	return nil
}

func (ps *PostgresStore) SaveBuyer(ctx context.Context, b *models.BuyerProfile) error {
	filter, err := json.Marshal(b.Filter)
	if err != nil {
		return fmt.Errorf("postgres: encode filter: %w", err)
	}
	reqs, err := json.Marshal(b.Requirements)
	if err != nil {
		return fmt.Errorf("postgres: encode requirements: %w", err)
	}
	err = ps.db.QueryRowContext(ctx, `
		INSERT INTO buyers (id, user_id, first_name, last_name, email, phone, languages,
			preferred_city, preferred_state, state_code, search_radius, latitude, longitude, filter,
			max_monthly_payment, max_down_payment, requirements, is_active, profile_complete,
			sms_notifications, is_available_for_purchase, purchased_by, purchased_at, lead_price,
			liked_property_ids, created_at, updated_at, last_active_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			email = EXCLUDED.email, phone = EXCLUDED.phone, languages = EXCLUDED.languages,
			preferred_city = EXCLUDED.preferred_city, preferred_state = EXCLUDED.preferred_state,
			state_code = EXCLUDED.state_code, search_radius = EXCLUDED.search_radius,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, filter = EXCLUDED.filter,
			max_monthly_payment = EXCLUDED.max_monthly_payment, max_down_payment = EXCLUDED.max_down_payment,
			requirements = EXCLUDED.requirements, is_active = EXCLUDED.is_active,
			profile_complete = EXCLUDED.profile_complete, sms_notifications = EXCLUDED.sms_notifications,
			is_available_for_purchase = EXCLUDED.is_available_for_purchase,
			purchased_by = EXCLUDED.purchased_by, purchased_at = EXCLUDED.purchased_at,
			lead_price = EXCLUDED.lead_price, liked_property_ids = EXCLUDED.liked_property_ids,
			updated_at = EXCLUDED.updated_at, last_active_at = EXCLUDED.last_active_at,
			version = buyers.version + 1
		WHERE buyers.version = $29
		RETURNING version`,
		b.ID, b.UserID, b.FirstName, b.LastName, b.Email, b.Phone, pq.Array(b.Languages),
		b.PreferredCity, b.PreferredState, geo.NormalizeState(b.PreferredState), b.SearchRadius,
		b.Latitude, b.Longitude, filter, b.MaxMonthlyPayment, b.MaxDownPayment, reqs,
		b.IsActive, b.ProfileComplete, b.SMSNotifications, b.IsAvailableForPurchase,
		b.PurchasedBy, b.PurchasedAt, b.EffectiveLeadPrice(), pq.Array(b.LikedPropertyIDs),
		orNow(b.CreatedAt, ps.now), ps.now(), b.LastActiveAt, b.Version).
		Scan(&b.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("postgres: save buyer %s: %w", b.ID, models.ErrConflict)
	}
	if err != nil {
		return mapError(fmt.Errorf("postgres: save buyer %s: %w", b.ID, err))
	}
	return nil
}

// UpdateBuyerLocation rewrites only the geo columns; purchase state is
// left to transactions.
func (ps *PostgresStore) UpdateBuyerLocation(ctx context.Context, id string, lat, lng *float64, filter *models.BuyerFilter) error {
	raw, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("postgres: encode filter: %w", err)
	}
	res, err := ps.db.ExecContext(ctx, `
		UPDATE buyers SET latitude = $2, longitude = $3, filter = $4, updated_at = $5, version = version + 1
		WHERE id = $1`,
		id, lat, lng, raw, ps.now())
	if err != nil {
		return mapError(fmt.Errorf("postgres: update buyer location %s: %w", id, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Kind: "buyer", ID: id}
	}
	return nil
}

func (ps *PostgresStore) SaveProperty(ctx context.Context, p *models.PropertyListing) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO properties (id, address, city, state, state_code, zip_code, latitude, longitude,
			nearby_cities, bedrooms, bathrooms, square_feet, list_price, down_payment_amount,
			down_payment_percent, monthly_payment, interest_rate, term_years, loan_amount,
			balloon_payment, balloon_years, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address, city = EXCLUDED.city, state = EXCLUDED.state,
			state_code = EXCLUDED.state_code, zip_code = EXCLUDED.zip_code,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			nearby_cities = EXCLUDED.nearby_cities, bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms, square_feet = EXCLUDED.square_feet,
			list_price = EXCLUDED.list_price, down_payment_amount = EXCLUDED.down_payment_amount,
			down_payment_percent = EXCLUDED.down_payment_percent, monthly_payment = EXCLUDED.monthly_payment,
			interest_rate = EXCLUDED.interest_rate, term_years = EXCLUDED.term_years,
			loan_amount = EXCLUDED.loan_amount, balloon_payment = EXCLUDED.balloon_payment,
			balloon_years = EXCLUDED.balloon_years, status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Address, p.City, p.State, geo.NormalizeState(p.State), p.ZipCode, p.Latitude, p.Longitude,
		pq.Array(p.NearbyCities), p.Bedrooms, p.Bathrooms, p.SquareFeet, p.ListPrice, p.DownPaymentAmount,
		p.DownPaymentPercent, p.MonthlyPayment, p.InterestRate, p.TermYears, p.LoanAmount,
		p.BalloonPayment, p.BalloonYears, p.Status, orNow(p.CreatedAt, ps.now), ps.now())
	if err != nil {
		return mapError(fmt.Errorf("postgres: save property %s: %w", p.ID, err))
	}
	return nil
}

func (ps *PostgresStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	return scanAgent(ps.db.QueryRowContext(ctx, selectAgent+" WHERE id = $1", id), id)
}

func (ps *PostgresStore) ListAgents(ctx context.Context) ([]*models.Agent, error) {
	rows, err := ps.db.QueryContext(ctx, selectAgent+" ORDER BY id")
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: list agents: %w", err))
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		a, err := scanAgent(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, mapError(rows.Err())
}

func (ps *PostgresStore) GetBuyer(ctx context.Context, id string) (*models.BuyerProfile, error) {
	return scanBuyer(ps.db.QueryRowContext(ctx, selectBuyer+" WHERE id = $1", id), id)
}

func (ps *PostgresStore) GetProperty(ctx context.Context, id string) (*models.PropertyListing, error) {
	return scanProperty(ps.db.QueryRowContext(ctx, selectProperty+" WHERE id = $1", id), id)
}

// ListTransactions returns the agent's ledger entries, newest first.
func (ps *PostgresStore) ListTransactions(ctx context.Context, agentID string) ([]models.Transaction, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, agent_id, type, description, credits_change, running_balance, related_id, created_at
		FROM transactions WHERE agent_id = $1 ORDER BY seq DESC`, agentID)
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: list transactions: %w", err))
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AgentID, &t.Type, &t.Description, &t.CreditsChange,
			&t.RunningBalance, &t.RelatedID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, mapError(rows.Err())
}

// ListPurchases returns the agent's purchases, newest first.
func (ps *PostgresStore) ListPurchases(ctx context.Context, agentID string) ([]models.LeadPurchase, error) {
	rows, err := ps.db.QueryContext(ctx, selectPurchase+" WHERE agent_id = $1 ORDER BY purchased_at DESC", agentID)
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: list purchases: %w", err))
	}
	defer rows.Close()

	var out []models.LeadPurchase
	for rows.Next() {
		p, err := scanPurchase(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, mapError(rows.Err())
}

// ---- scanning ----

type scanner interface {
	Scan(dest ...any) error
}

const selectAgent = `
	SELECT id, user_id, first_name, last_name, company, credits, primary_city, primary_state,
		radius_miles, service_cities, languages, is_on_trial, trial_end_date, created_at, updated_at, version
	FROM agents`

func scanAgent(row scanner, id string) (*models.Agent, error) {
	a := &models.Agent{}
	err := row.Scan(&a.ID, &a.UserID, &a.FirstName, &a.LastName, &a.Company, &a.Credits,
		&a.ServiceArea.PrimaryCity, &a.ServiceArea.PrimaryState, &a.ServiceArea.RadiusMiles,
		pq.Array(&a.ServiceArea.Cities), pq.Array(&a.ServiceArea.Languages),
		&a.IsOnTrial, &a.TrialEndDate, &a.CreatedAt, &a.UpdatedAt, &a.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "agent", ID: id}
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: scan agent: %w", err))
	}
	a.ServiceArea.AgentID = a.ID
	return a, nil
}

const selectBuyer = `
	SELECT id, user_id, first_name, last_name, email, phone, languages, preferred_city, preferred_state,
		search_radius, latitude, longitude, filter, max_monthly_payment, max_down_payment, requirements,
		is_active, profile_complete, sms_notifications, is_available_for_purchase, purchased_by,
		purchased_at, lead_price, liked_property_ids, created_at, updated_at, last_active_at, version
	FROM buyers`

func scanBuyer(row scanner, id string) (*models.BuyerProfile, error) {
	b := &models.BuyerProfile{}
	var filter, reqs []byte
	err := row.Scan(&b.ID, &b.UserID, &b.FirstName, &b.LastName, &b.Email, &b.Phone,
		pq.Array(&b.Languages), &b.PreferredCity, &b.PreferredState, &b.SearchRadius,
		&b.Latitude, &b.Longitude, &filter, &b.MaxMonthlyPayment, &b.MaxDownPayment, &reqs,
		&b.IsActive, &b.ProfileComplete, &b.SMSNotifications, &b.IsAvailableForPurchase,
		&b.PurchasedBy, &b.PurchasedAt, &b.LeadPrice, pq.Array(&b.LikedPropertyIDs),
		&b.CreatedAt, &b.UpdatedAt, &b.LastActiveAt, &b.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "buyer", ID: id}
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: scan buyer: %w", err))
	}
	if len(filter) > 0 && string(filter) != "null" {
		b.Filter = &models.BuyerFilter{}
		if err := json.Unmarshal(filter, b.Filter); err != nil {
			return nil, fmt.Errorf("postgres: decode filter of buyer %s: %w", b.ID, err)
		}
	}
	if len(reqs) > 0 {
		if err := json.Unmarshal(reqs, &b.Requirements); err != nil {
			return nil, fmt.Errorf("postgres: decode requirements of buyer %s: %w", b.ID, err)
		}
	}
	return b, nil
}

const selectProperty = `
	SELECT id, address, city, state, zip_code, latitude, longitude, nearby_cities, bedrooms, bathrooms,
		square_feet, list_price, down_payment_amount, down_payment_percent, monthly_payment, interest_rate,
		term_years, loan_amount, balloon_payment, balloon_years, status, created_at, updated_at
	FROM properties`

func scanProperty(row scanner, id string) (*models.PropertyListing, error) {
	p := &models.PropertyListing{}
	err := row.Scan(&p.ID, &p.Address, &p.City, &p.State, &p.ZipCode, &p.Latitude, &p.Longitude,
		pq.Array(&p.NearbyCities), &p.Bedrooms, &p.Bathrooms, &p.SquareFeet, &p.ListPrice,
		&p.DownPaymentAmount, &p.DownPaymentPercent, &p.MonthlyPayment, &p.InterestRate,
		&p.TermYears, &p.LoanAmount, &p.BalloonPayment, &p.BalloonYears, &p.Status,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "property", ID: id}
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: scan property: %w", err))
	}
	return p, nil
}

const selectPurchase = `
	SELECT id, agent_id, buyer_id, credits_cost, status, transaction_id, refund_reason,
		purchased_at, updated_at
	FROM lead_purchases`

func scanPurchase(row scanner, id string) (*models.LeadPurchase, error) {
	p := &models.LeadPurchase{}
	err := row.Scan(&p.ID, &p.AgentID, &p.BuyerID, &p.CreditsCost, &p.Status, &p.TransactionID,
		&p.RefundReason, &p.PurchasedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "purchase", ID: id}
	}
	if err != nil {
		return nil, mapError(fmt.Errorf("postgres: scan purchase: %w", err))
	}
	return p, nil
}

func orNow(t time.Time, now func() time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t
}
