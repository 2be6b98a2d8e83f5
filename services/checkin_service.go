package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"guestpass/internal/status"
	"guestpass/models"
	"guestpass/monitoring"
)

// CheckinStore is the storage surface for the check-in state machine.
type CheckinStore interface {
	FindRegistration(ctx context.Context, id string) (*models.Registration, error)
	FindGuest(ctx context.Context, id string) (*models.Guest, error)
	FindCheckIn(ctx context.Context, registrationID string) (*models.CheckIn, error)
	CreateCheckIn(ctx context.Context, c *models.CheckIn) error
	ReplaceCheckIn(ctx context.Context, c *models.CheckIn) error
	FindTableAssignment(ctx context.Context, registrationID string) (*models.TableAssignment, error)
}

// TokenVerifier decodes a scanned ticket without touching storage.
type TokenVerifier interface {
	Verify(tokenString string) (*TicketClaims, error)
}

type ScanState string

const (
	ScanRejected        ScanState = "rejected"
	ScanAlreadyAdmitted ScanState = "already_admitted"
	ScanAdmittable      ScanState = "admittable"
)

// ScanResult is the terminal verdict for one scan submission. Reason carries
// the sentinel for rejected scans; Prior carries the earlier admission for
// already-admitted ones.
type ScanResult struct {
	State        ScanState
	Reason       error
	Claims       *TicketClaims
	Registration *models.Registration
	Prior        *models.CheckIn
}

type CheckinService struct {
	store       CheckinStore
	verifier    TokenVerifier
	broadcaster Broadcaster
}

func NewCheckinService(store CheckinStore, verifier TokenVerifier, broadcaster Broadcaster) *CheckinService {
	return &CheckinService{
		store:       store,
		verifier:    verifier,
		broadcaster: broadcaster,
	}
}

// Evaluate runs the scan through the admission state machine without writing
// anything. Every outcome is terminal for this scan; nothing is retried.
func (s *CheckinService) Evaluate(ctx context.Context, scanned string) (*ScanResult, error) {
	claims, err := s.verifier.Verify(scanned)
	if err != nil {
		monitoring.TrackCheckIn("rejected")
		return &ScanResult{State: ScanRejected, Reason: err}, nil
	}

	reg, err := s.store.FindRegistration(ctx, claims.RegistrationID)
	if err != nil {
		if errors.Is(err, status.ErrRegistrationNotFound) {
			monitoring.TrackCheckIn("rejected")
			return &ScanResult{State: ScanRejected, Reason: err, Claims: claims}, nil
		}
		return nil, err
	}

	// A token that verifies but no longer matches the stored value was
	// superseded, not forged. Reject it as stale.
	if reg.TicketToken != scanned {
		monitoring.TrackCheckIn("rejected")
		return &ScanResult{State: ScanRejected, Reason: status.ErrTokenMismatch, Claims: claims, Registration: reg}, nil
	}

	prior, err := s.store.FindCheckIn(ctx, reg.ID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		monitoring.TrackCheckIn("already_admitted")
		return &ScanResult{State: ScanAlreadyAdmitted, Claims: claims, Registration: reg, Prior: prior}, nil
	}

	return &ScanResult{State: ScanAdmittable, Claims: claims, Registration: reg}, nil
}

// Submit records the admission. Without override, an existing check-in wins
// and the caller gets ErrAlreadyCheckedIn; with override, the prior row is
// replaced atomically. On success the admission event is broadcast, best
// effort.
func (s *CheckinService) Submit(ctx context.Context, registrationID, staffID string, override bool) (*models.CheckIn, error) {
	reg, err := s.store.FindRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	guest, err := s.store.FindGuest(ctx, reg.GuestID)
	if err != nil {
		return nil, err
	}

	checkin := &models.CheckIn{
		RegistrationID: reg.ID,
		StaffID:        staffID,
		Override:       override,
		CheckedInAt:    time.Now(),
	}

	if override {
		err = s.store.ReplaceCheckIn(ctx, checkin)
	} else {
		err = s.store.CreateCheckIn(ctx, checkin)
	}
	if err != nil {
		if errors.Is(err, status.ErrAlreadyCheckedIn) {
			monitoring.TrackCheckIn("already_admitted")
		} else {
			monitoring.TrackCheckIn("error")
		}
		return nil, err
	}
	monitoring.TrackCheckIn("admitted")

	s.publishAdmission(ctx, reg, guest, checkin)
	return checkin, nil
}

// publishAdmission notifies live subscribers. Check-in success never depends
// on whether anyone is listening, so every failure here is swallowed.
func (s *CheckinService) publishAdmission(ctx context.Context, reg *models.Registration, guest *models.Guest, checkin *models.CheckIn) {
	if s.broadcaster == nil {
		return
	}

	ev := models.AdmissionEvent{
		GuestID:    guest.ID,
		GuestName:  guest.Name,
		AdmittedAt: checkin.CheckedInAt,
	}

	table, err := s.store.FindTableAssignment(ctx, reg.ID)
	if err != nil {
		slog.Error("table assignment lookup failed", "registration", reg.ID, "error", err)
	} else if table != nil {
		ev.TableName = table.TableName
		ev.TableType = table.TableType
		ev.SeatNumber = table.SeatNumber
	}

	s.broadcaster.Publish(ev)
}
