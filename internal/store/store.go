// Package store is the PocketBase-backed persistence layer for the admission
// core. All correctness-critical writes (issuance lock, payment transitions,
// check-in uniqueness) go through here; nothing is cached across requests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"

	"guestpass/internal/status"
	"guestpass/models"
	"guestpass/services"
)

type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

// WithinTransaction runs fn against a transactional copy of the store. All
// reads and writes inside fn observe and join the same transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&Store{app: txApp})
	})
}

// WithinPaymentTx adapts WithinTransaction to the payment service's
// transaction seam.
func (s *Store) WithinPaymentTx(ctx context.Context, fn func(tx services.PaymentTx) error) error {
	return s.WithinTransaction(ctx, func(tx *Store) error {
		return fn(tx)
	})
}

func (s *Store) FindRegistration(ctx context.Context, id string) (*models.Registration, error) {
	record, err := s.app.FindRecordById("registrations", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return registrationFromRecord(record), nil
}

func (s *Store) FindGuest(ctx context.Context, id string) (*models.Guest, error) {
	record, err := s.app.FindRecordById("guests", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrGuestNotFound
		}
		return nil, fmt.Errorf("find guest: %w", err)
	}
	return &models.Guest{
		ID:    record.Id,
		Name:  record.GetString("name"),
		Email: record.GetString("email"),
	}, nil
}

func (s *Store) FindEvent(ctx context.Context, id string) (*models.Event, error) {
	record, err := s.app.FindRecordById("events", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrEventNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	ev := &models.Event{
		ID:       record.Id,
		Name:     record.GetString("name"),
		StartsAt: record.GetDateTime("starts_at").Time(),
	}
	if ends := record.GetDateTime("ends_at"); !ends.IsZero() {
		t := ends.Time()
		ev.EndsAt = &t
	}
	return ev, nil
}

// ClaimTicketToken is the issuance lock: a single conditional UPDATE that only
// succeeds while the registration's token field is still empty. Zero rows
// affected means another caller won the race and the existing token must be
// re-read.
func (s *Store) ClaimTicketToken(ctx context.Context, registrationID, token string, issuedAt time.Time) (bool, error) {
	res, err := s.app.DB().NewQuery(
		"UPDATE registrations SET ticket_token = {:token}, ticket_issued_at = {:issuedAt}" +
			" WHERE id = {:id} AND (ticket_token = '' OR ticket_token IS NULL)",
	).Bind(dbx.Params{
		"token":    token,
		"issuedAt": issuedAt.UTC().Format(types.DefaultDateLayout),
		"id":       registrationID,
	}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("claim ticket token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim ticket token: %w", err)
	}
	return affected == 1, nil
}

func (s *Store) SetRegistrationStatus(ctx context.Context, registrationID string, st models.RegistrationStatus) error {
	record, err := s.app.FindRecordById("registrations", registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrRegistrationNotFound
		}
		return fmt.Errorf("set registration status: %w", err)
	}
	record.Set("status", string(st))
	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("set registration status: %w", err)
	}
	return nil
}

func (s *Store) FindPaymentBySession(ctx context.Context, sessionRef string) (*models.Payment, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"payments",
		"session_ref = {:ref}",
		dbx.Params{"ref": sessionRef},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment by session: %w", err)
	}
	return paymentFromRecord(record), nil
}

func (s *Store) FindPaymentByRegistration(ctx context.Context, registrationID string) (*models.Payment, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"payments",
		"registration = {:reg}",
		dbx.Params{"reg": registrationID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment by registration: %w", err)
	}
	return paymentFromRecord(record), nil
}

// SavePayment creates the row when p.ID is empty, otherwise updates it. The
// generated id is written back into p.
func (s *Store) SavePayment(ctx context.Context, p *models.Payment) error {
	var record *core.Record
	if p.ID == "" {
		collection, err := s.app.FindCollectionByNameOrId("payments")
		if err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		record = core.NewRecord(collection)
	} else {
		var err error
		record, err = s.app.FindRecordById("payments", p.ID)
		if err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
	}

	record.Set("registration", p.RegistrationID)
	record.Set("status", string(p.Status))
	record.Set("method", string(p.Method))
	record.Set("session_ref", p.SessionRef)
	record.Set("intent_ref", p.IntentRef)
	record.Set("amount", p.Amount.String())
	if p.PaidAt != nil {
		dt, err := types.ParseDateTime(p.PaidAt.UTC())
		if err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		record.Set("paid_at", dt)
	}

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	p.ID = record.Id
	return nil
}

func (s *Store) FindCheckIn(ctx context.Context, registrationID string) (*models.CheckIn, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"checkins",
		"registration = {:reg}",
		dbx.Params{"reg": registrationID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find checkin: %w", err)
	}
	return checkInFromRecord(record), nil
}

// CreateCheckIn inserts the admission row. The unique index on registration
// turns a concurrent double-submit into ErrAlreadyCheckedIn instead of a
// second row.
func (s *Store) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	collection, err := s.app.FindCollectionByNameOrId("checkins")
	if err != nil {
		return fmt.Errorf("create checkin: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("registration", c.RegistrationID)
	record.Set("staff", c.StaffID)
	record.Set("override", c.Override)
	dt, err := types.ParseDateTime(c.CheckedInAt.UTC())
	if err != nil {
		return fmt.Errorf("create checkin: %w", err)
	}
	record.Set("checked_in_at", dt)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return status.ErrAlreadyCheckedIn
		}
		return fmt.Errorf("create checkin: %w", err)
	}
	c.ID = record.Id
	return nil
}

// ReplaceCheckIn deletes any prior admission row and creates the override row
// in one transaction, so no observer ever sees zero or two rows.
func (s *Store) ReplaceCheckIn(ctx context.Context, c *models.CheckIn) error {
	return s.WithinTransaction(ctx, func(tx *Store) error {
		prior, err := tx.app.FindFirstRecordByFilter(
			"checkins",
			"registration = {:reg}",
			dbx.Params{"reg": c.RegistrationID},
		)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("replace checkin: %w", err)
		}
		if prior != nil {
			if err := tx.app.DeleteWithContext(ctx, prior); err != nil {
				return fmt.Errorf("replace checkin: %w", err)
			}
		}
		return tx.CreateCheckIn(ctx, c)
	})
}

func (s *Store) FindTableAssignment(ctx context.Context, registrationID string) (*models.TableAssignment, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"table_assignments",
		"registration = {:reg}",
		dbx.Params{"reg": registrationID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find table assignment: %w", err)
	}
	return &models.TableAssignment{
		ID:             record.Id,
		RegistrationID: record.GetString("registration"),
		TableName:      record.GetString("table_name"),
		TableType:      record.GetString("table_type"),
		SeatNumber:     record.GetInt("seat_number"),
	}, nil
}

func registrationFromRecord(record *core.Record) *models.Registration {
	reg := &models.Registration{
		ID:          record.Id,
		GuestID:     record.GetString("guest"),
		EventID:     record.GetString("event"),
		TicketClass: models.TicketClass(record.GetString("ticket_class")),
		Status:      models.RegistrationStatus(record.GetString("status")),
		TicketToken: record.GetString("ticket_token"),
	}
	if issued := record.GetDateTime("ticket_issued_at"); !issued.IsZero() {
		t := issued.Time()
		reg.TicketIssuedAt = &t
	}
	return reg
}

func paymentFromRecord(record *core.Record) *models.Payment {
	amount, err := decimal.NewFromString(record.GetString("amount"))
	if err != nil {
		amount = decimal.Zero
	}
	p := &models.Payment{
		ID:             record.Id,
		RegistrationID: record.GetString("registration"),
		Status:         models.PaymentStatus(record.GetString("status")),
		Method:         models.PaymentMethod(record.GetString("method")),
		SessionRef:     record.GetString("session_ref"),
		IntentRef:      record.GetString("intent_ref"),
		Amount:         amount,
	}
	if paid := record.GetDateTime("paid_at"); !paid.IsZero() {
		t := paid.Time()
		p.PaidAt = &t
	}
	return p
}

func checkInFromRecord(record *core.Record) *models.CheckIn {
	return &models.CheckIn{
		ID:             record.Id,
		RegistrationID: record.GetString("registration"),
		StaffID:        record.GetString("staff"),
		Override:       record.GetBool("override"),
		CheckedInAt:    record.GetDateTime("checked_in_at").Time(),
	}
}
