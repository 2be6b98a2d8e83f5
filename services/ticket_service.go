package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"guestpass/internal/status"
	"guestpass/models"
	"guestpass/monitoring"
	"guestpass/utils"
)

// TicketStore is the storage surface the ticket service needs. Implemented by
// internal/store.
type TicketStore interface {
	FindRegistration(ctx context.Context, id string) (*models.Registration, error)
	FindGuest(ctx context.Context, id string) (*models.Guest, error)
	FindEvent(ctx context.Context, id string) (*models.Event, error)
	ClaimTicketToken(ctx context.Context, registrationID, token string, issuedAt time.Time) (bool, error)
}

// TicketClaims are the decoded contents of a signed ticket token. Verification
// is self-contained; storage is only consulted to detect replacement.
type TicketClaims struct {
	RegistrationID string
	GuestID        string
	GuestName      string
	TicketClass    models.TicketClass
	ExpiresAt      time.Time
}

// IssuedTicket is a previously issued token plus its renderable form.
type IssuedTicket struct {
	Token    string     `json:"token"`
	QRPNG    []byte     `json:"qr_png"`
	IssuedAt *time.Time `json:"issued_at,omitempty"`
}

type TicketService struct {
	store  TicketStore
	secret []byte
	grace  time.Duration
}

func NewTicketService(store TicketStore, secret string, grace time.Duration) *TicketService {
	return &TicketService{
		store:  store,
		secret: []byte(secret),
		grace:  grace,
	}
}

// Issue creates and persists the signed ticket for a registration, at most
// once. Concurrent callers race on a single conditional write; the losers
// re-read and return the winner's token, so webhook retries and admin
// approvals can both call Issue safely.
func (s *TicketService) Issue(ctx context.Context, registrationID string) (string, error) {
	reg, err := s.store.FindRegistration(ctx, registrationID)
	if err != nil {
		return "", err
	}
	if reg.TicketToken != "" {
		return reg.TicketToken, nil
	}

	guest, err := s.store.FindGuest(ctx, reg.GuestID)
	if err != nil {
		return "", err
	}
	event, err := s.store.FindEvent(ctx, reg.EventID)
	if err != nil {
		return "", err
	}

	// Expiry follows the event, not the issuance moment: a ticket issued the
	// night before must still open the door.
	expiresAt := event.AdmissionDeadline().Add(s.grace)
	now := time.Now()

	token, err := s.sign(reg, guest, expiresAt, now)
	if err != nil {
		return "", fmt.Errorf("sign ticket: %w", err)
	}

	won, err := s.store.ClaimTicketToken(ctx, reg.ID, token, now)
	if err != nil {
		monitoring.TrackTicketIssued("error")
		return "", err
	}
	if !won {
		// Someone else issued first. Their token is the ticket.
		current, err := s.store.FindRegistration(ctx, reg.ID)
		if err != nil {
			return "", err
		}
		if current.TicketToken == "" {
			return "", fmt.Errorf("issuance lock lost but no token stored for registration %s", reg.ID)
		}
		monitoring.TrackTicketIssued("existing")
		return current.TicketToken, nil
	}

	monitoring.TrackTicketIssued("issued")
	return token, nil
}

// Verify checks signature and expiry and returns the decoded claims. It never
// touches storage.
func (s *TicketService) Verify(tokenString string) (*TicketClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, status.ErrTokenExpired
		}
		return nil, status.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, status.ErrInvalidToken
	}

	regID, _ := claims["reg"].(string)
	guestID, _ := claims["guest"].(string)
	name, _ := claims["name"].(string)
	class, _ := claims["class"].(string)
	if regID == "" || guestID == "" || !models.TicketClass(class).Valid() {
		return nil, status.ErrInvalidToken
	}

	out := &TicketClaims{
		RegistrationID: regID,
		GuestID:        guestID,
		GuestName:      name,
		TicketClass:    models.TicketClass(class),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// GetExisting returns the previously issued ticket with its QR rendering, or
// nil when no token has been issued yet. Repeated delivery attempts go through
// here so they never reissue.
func (s *TicketService) GetExisting(ctx context.Context, registrationID string) (*IssuedTicket, error) {
	reg, err := s.store.FindRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.TicketToken == "" {
		return nil, nil
	}

	png, err := utils.QRCodePNG(reg.TicketToken, 256)
	if err != nil {
		return nil, fmt.Errorf("render ticket qr: %w", err)
	}
	return &IssuedTicket{
		Token:    reg.TicketToken,
		QRPNG:    png,
		IssuedAt: reg.TicketIssuedAt,
	}, nil
}

func (s *TicketService) sign(reg *models.Registration, guest *models.Guest, expiresAt, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"reg":   reg.ID,
		"guest": guest.ID,
		"name":  guest.Name,
		"class": string(reg.TicketClass),
		"exp":   expiresAt.Unix(),
		"iat":   issuedAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
