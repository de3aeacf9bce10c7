package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Domenick1991/studiobooking/internal/auth"
	"github.com/Domenick1991/studiobooking/internal/availability"
	"github.com/Domenick1991/studiobooking/internal/domain"
	"github.com/Domenick1991/studiobooking/internal/pricing"
	"github.com/Domenick1991/studiobooking/internal/repository"
)

// maxCalendarRange bounds public calendar queries.
const maxCalendarRange = 62 * 24 * time.Hour

type BookingUseCase interface {
	CreateBooking(ctx context.Context, callerID string, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, callerID, id string) (*domain.Booking, error)
	ListBookings(ctx context.Context, callerID string, query ListQuery) ([]domain.Booking, error)
	Calendar(ctx context.Context, from, to time.Time) ([]BusyInterval, error)
	AttachSessionDetails(ctx context.Context, callerID, id string, details domain.SessionDetails) (*domain.Booking, error)
	ConfirmBooking(ctx context.Context, callerID, id string) (*domain.Booking, error)
	RejectBooking(ctx context.Context, callerID, id string) (*domain.Booking, error)
	CompleteBooking(ctx context.Context, callerID, id string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, callerID, id string) (*domain.Booking, error)
	ScanOverlaps(ctx context.Context, callerID string) ([]domain.Overlap, error)
}

type Authorizer interface {
	IsAdmin(ctx context.Context, callerID string) (bool, error)
	RequireAdmin(ctx context.Context, callerID string) error
	RequireOwnerOrAdmin(ctx context.Context, callerID, ownerID string) error
}

// Locker provides the per-booking mutation lock.
type Locker interface {
	AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error)
	ReleaseBookingLock(ctx context.Context, bookingID, token string) error
	// ExtendBookingLock resets the ttl of a lock still held under token and
	// reports false once the lock has been lost.
	ExtendBookingLock(ctx context.Context, bookingID, token string, ttl time.Duration) (bool, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	services           repository.ServiceRepository
	rules              repository.PricingRuleRepository
	authz              Authorizer
	checker            *availability.Checker
	locker             Locker
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	lockTTL            time.Duration
	publishTimeout     time.Duration
	now                func() time.Time
	newID              func() string
	log                *zap.Logger
}

type CreateBookingInput struct {
	ServiceID       string    `json:"service_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	SongCount       int       `json:"song_count"`
	BeatLicenseID   string    `json:"beat_license_id"`
	Notes           string    `json:"notes"`
}

type ListQuery struct {
	UserID     string
	EngineerID string
	Status     domain.BookingStatus
	From       time.Time
	To         time.Time
	Limit      int
}

// BusyInterval is the public view of an occupied slot.
type BusyInterval struct {
	Start  time.Time            `json:"start"`
	End    time.Time            `json:"end"`
	Status domain.BookingStatus `json:"status"`
}

type BookingServiceOption func(*BookingService)

func WithProducer(producer Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithLocker(locker Locker, ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithPublishTimeout bounds every event publish made after a write.
func WithPublishTimeout(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.publishTimeout = d
	}
}

func WithLogger(log *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	services repository.ServiceRepository,
	rules repository.PricingRuleRepository,
	authz Authorizer,
	checker *availability.Checker,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings: bookings,
		services: services,
		rules:    rules,
		authz:    authz,
		checker:  checker,
		locker:   NewLocalLocker(),
		lockTTL:  60 * time.Second,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      zap.NewNop(),

		publishTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// CreateBooking prices the request, re-checks the slot against the persisted
// calendar and stores a pending booking. The insert itself refuses overlaps,
// so of two racing submissions at most one succeeds.
func (s *BookingService) CreateBooking(ctx context.Context, callerID string, input CreateBookingInput) (*domain.Booking, error) {
	if err := auth.RequireCaller(callerID); err != nil {
		return nil, err
	}
	if input.ServiceID == "" {
		return nil, domain.InputError("service_id is required")
	}
	if input.Start.IsZero() {
		return nil, domain.InputError("start is required")
	}

	svc, err := s.services.GetByID(ctx, input.ServiceID)
	if err != nil {
		return nil, mapRepoErr(err, "service")
	}
	if !svc.Active {
		return nil, domain.PreconditionError("service %s is not available", svc.ID)
	}
	var rule *domain.PricingRule
	if svc.PricingRuleID != "" {
		if rule, err = s.rules.GetByID(ctx, svc.PricingRuleID); err != nil {
			return nil, mapRepoErr(err, "pricing rule")
		}
	}

	start := input.Start.UTC()
	var end time.Time
	if !input.End.IsZero() && !svc.Type.HasFixedDuration() {
		end = input.End.UTC()
	} else if end, err = availability.DeriveEnd(*svc, start, input.DurationMinutes); err != nil {
		return nil, err
	}
	candidate := availability.Candidate{Start: start, End: end}
	if !end.After(start) {
		return nil, availability.Verdict{Reason: domain.ReasonInvalidRange}.Err()
	}

	price, err := pricing.Compute(*svc, rule, pricing.Params{
		DurationMinutes: int(end.Sub(start) / time.Minute),
		SongCount:       input.SongCount,
		BeatLicenseID:   input.BeatLicenseID,
	})
	if err != nil {
		return nil, err
	}

	existing, err := s.bookings.ListActiveBetween(ctx, start, end)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "load calendar", err)
	}
	if err := s.checker.IsSlotAvailable(candidate, existing).Err(); err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		ID:           s.newID(),
		Start:        start,
		End:          end,
		UserID:       callerID,
		EngineerID:   svc.EngineerID,
		ProducerName: svc.ProducerName,
		ServiceID:    svc.ID,
		ServiceType:  svc.Type,
		ServiceName:  svc.Name,
		TotalPrice:   price,
		SongCount:    input.SongCount,
		BeatLicense:  input.BeatLicenseID,
		Status:       domain.BookingStatusPending,
		Notes:        input.Notes,
	}
	if err := s.bookings.CreateNoOverlap(ctx, booking); err != nil {
		return nil, mapRepoErr(err, "booking")
	}

	if stored, err := s.bookings.GetByID(ctx, booking.ID); err == nil {
		booking = stored
	}
	s.log.Info("booking created",
		zap.String("booking_id", booking.ID), zap.String("user_id", callerID), zap.Int64("total_price", price))
	s.publish(ctx, domain.EventBookingCreated, booking, "")
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, callerID, id string) (*domain.Booking, error) {
	if err := auth.RequireCaller(callerID); err != nil {
		return nil, err
	}
	b, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireOwnerOrAdmin(ctx, callerID, b.UserID); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookings applies equality filters. Non-administrators only ever see
// their own bookings, whatever user filter they send.
func (s *BookingService) ListBookings(ctx context.Context, callerID string, query ListQuery) ([]domain.Booking, error) {
	admin, err := s.authz.IsAdmin(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if query.Status != "" && !query.Status.IsValid() {
		return nil, domain.InputError("unknown status %q", query.Status)
	}
	if !admin {
		query.UserID = callerID
	}
	bookings, err := s.bookings.List(ctx, repository.BookingFilter{
		UserID:     query.UserID,
		EngineerID: query.EngineerID,
		Status:     query.Status,
		From:       query.From,
		To:         query.To,
		Limit:      query.Limit,
	})
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "list bookings", err)
	}
	return bookings, nil
}

// Calendar returns occupied intervals in [from, to) without personal data.
func (s *BookingService) Calendar(ctx context.Context, from, to time.Time) ([]BusyInterval, error) {
	if !to.After(from) {
		return nil, domain.InputError("to must be after from")
	}
	if to.Sub(from) > maxCalendarRange {
		return nil, domain.InputError("calendar range is limited to %d days", int(maxCalendarRange/(24*time.Hour)))
	}
	bookings, err := s.bookings.ListActiveBetween(ctx, from, to)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "load calendar", err)
	}
	busy := make([]BusyInterval, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, BusyInterval{Start: b.Start, End: b.End, Status: b.Status})
	}
	return busy, nil
}

func (s *BookingService) AttachSessionDetails(ctx context.Context, callerID, id string, details domain.SessionDetails) (*domain.Booking, error) {
	if err := auth.RequireCaller(callerID); err != nil {
		return nil, err
	}
	unlock, err := s.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.RequireOwnerOrAdmin(ctx, callerID, b.UserID); err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, domain.PreconditionError("booking %s is %s", b.ID, b.Status)
	}
	return s.Amend(ctx, b, domain.BookingPatch{SessionDetails: &details})
}

func (s *BookingService) ScanOverlaps(ctx context.Context, callerID string) ([]domain.Overlap, error) {
	if err := s.authz.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	return s.DetectOverlaps(ctx)
}

// DetectOverlaps reports active bookings sharing part of their interval and
// notifies about each pair so an administrator can resolve it.
func (s *BookingService) DetectOverlaps(ctx context.Context) ([]domain.Overlap, error) {
	overlaps, err := s.bookings.FindOverlaps(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "scan overlaps", err)
	}
	for i := range overlaps {
		o := &overlaps[i]
		s.log.Warn("overlapping bookings detected",
			zap.String("booking_id", o.First.ID), zap.String("other_booking_id", o.Second.ID))
		s.notify(ctx, domain.EventBookingOverlapDetected, &o.Second, "")
	}
	return overlaps, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking, prev domain.BookingStatus) {
	if s.producer == nil {
		return
	}
	event := domain.NewBookingEvent(eventType, booking, prev)
	if s.bookingTopic != "" {
		pubCtx, cancel := s.publishContext(ctx)
		err := s.producer.Publish(pubCtx, s.bookingTopic, booking.ID, event)
		cancel()
		if err != nil {
			s.log.Warn("failed to publish booking event",
				zap.String("booking_id", booking.ID), zap.String("type", eventType), zap.Error(err))
		}
	}
	s.notify(ctx, eventType, booking, prev)
}

func (s *BookingService) notify(ctx context.Context, eventType string, booking *domain.Booking, prev domain.BookingStatus) {
	if s.producer == nil || s.notificationsTopic == "" {
		return
	}
	event := domain.NewBookingEvent(eventType, booking, prev)
	pubCtx, cancel := s.publishContext(ctx)
	defer cancel()
	if err := s.producer.Publish(pubCtx, s.notificationsTopic, booking.ID, event); err != nil {
		s.log.Warn("failed to publish notification",
			zap.String("booking_id", booking.ID), zap.String("type", eventType), zap.Error(err))
	}
}

// publishContext detaches publishing from the caller's cancellation but never
// lets it run longer than the publish timeout.
func (s *BookingService) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
}

func mapRepoErr(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.NotFoundError("%s not found", what)
	case errors.Is(err, repository.ErrOverlap):
		return domain.ConflictError("requested slot is already booked", domain.ReasonConflict)
	case errors.Is(err, repository.ErrStaleStatus):
		return domain.ConflictError("booking was modified concurrently, reload and retry", domain.ReasonStaleStatus)
	default:
		return domain.NewError(domain.KindInternal, what, err)
	}
}

var _ BookingUseCase = (*BookingService)(nil)
