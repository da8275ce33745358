package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/auth"
	"github.com/medilink/telehealth/internal/platform/cache"
)

const (
	minPasswordLength  = 6
	accountCachePrefix = "account:"
)

type Service struct {
	repo       Repository
	tokens     *auth.TokenManager
	cache      cache.Cache
	cacheTTL   time.Duration
	bcryptCost int
	now        func() time.Time
}

func NewService(repo Repository, tokens *auth.TokenManager, c cache.Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		repo:       repo,
		tokens:     tokens,
		cache:      c,
		cacheTTL:   cacheTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Register creates an account and signs the caller in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.normalize()
	if in.Name == "" || in.Phone == "" || in.Password == "" {
		return nil, apperr.Validation("name, phone and password are required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	if !auth.ValidRole(in.Role) {
		return nil, apperr.Validation("role must be patient, doctor or admin")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		return nil, apperr.Validation("email is not valid")
	}
	if in.ConsultationFee < 0 {
		return nil, apperr.Validation("consultation_fee must not be negative")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &Account{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Language:     in.Language,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.IsDoctor() {
		a.Specialization = strings.TrimSpace(in.Specialization)
		a.ConsultationFee = in.ConsultationFee
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return s.issue(a)
}

// Login verifies a phone/password pair and returns a signed session.
func (s *Service) Login(ctx context.Context, phone, password string) (*Session, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, apperr.Validation("phone and password are required")
	}
	a, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	return s.issue(a)
}

func (s *Service) issue(a *Account) (*Session, error) {
	token, expires, err := s.tokens.Issue(a.ID, a.Role)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, Account: a}, nil
}

// Get returns an account, consulting the cache first.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	if id == "" {
		return nil, apperr.Validation("account id is required")
	}
	var cached Account
	if hit, err := s.cache.Get(ctx, accountCachePrefix+id, &cached); err == nil && hit {
		return &cached, nil
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, accountCachePrefix+id, a, s.cacheTTL)
	return a, nil
}

// DisplayName resolves the name shown next to chat messages and calls.
func (s *Service) DisplayName(ctx context.Context, id string) (string, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return a.Name, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		trimmed := strings.TrimSpace(*u.Name)
		if trimmed == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		u.Name = &trimmed
	}
	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		if email != "" && !strings.Contains(email, "@") {
			return nil, apperr.Validation("email is not valid")
		}
		u.Email = &email
	}
	if !a.IsDoctor() && (u.ConsultationFee != nil || u.Specialization != nil) {
		return nil, apperr.Validation("only doctors have a specialization or consultation fee")
	}
	if u.ConsultationFee != nil && *u.ConsultationFee < 0 {
		return nil, apperr.Validation("consultation_fee must not be negative")
	}
	if u.Experience != nil && *u.Experience < 0 {
		return nil, apperr.Validation("experience must not be negative")
	}

	u.apply(a)
	a.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return a, nil
}

// SetAvailability toggles whether a doctor accepts bookings.
func (s *Service) SetAvailability(ctx context.Context, id, role string, available bool) (*Account, error) {
	if role != RoleDoctor {
		return nil, apperr.Forbidden("only doctors can change availability")
	}
	if err := s.repo.SetAvailability(ctx, id, available); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListAvailableDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]DoctorSummary, int, error) {
	doctors, total, err := s.repo.ListAvailableDoctors(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DoctorSummary, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, d.Summary())
	}
	return out, total, nil
}

// UpdateRating writes back a doctor's rating aggregate.
func (s *Service) UpdateRating(ctx context.Context, doctorID string, rating float64, total int) error {
	if rating < 0 || rating > 5 {
		return apperr.Validation("rating must be between 0 and 5")
	}
	if total < 0 {
		return apperr.Validation("total must not be negative")
	}
	if err := s.repo.UpdateRating(ctx, doctorID, rating, total); err != nil {
		return err
	}
	s.invalidate(ctx, doctorID)
	return nil
}

// Exists reports whether an account with id exists.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) invalidate(ctx context.Context, id string) {
	_ = s.cache.Delete(ctx, accountCachePrefix+id)
}
