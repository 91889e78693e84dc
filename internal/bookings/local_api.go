package bookings

import (
	"context"

	"github.com/wizardoma/radiance-wellness/internal/booking"
)

// LocalAPI serves booking.BookingAPI from the in-process service, for
// wizards hosted by the same binary as the backend.
type LocalAPI struct {
	service *Service
}

// NewLocalAPI adapts service.
func NewLocalAPI(service *Service) *LocalAPI {
	if service == nil {
		panic("bookings: service required")
	}
	return &LocalAPI{service: service}
}

func (a *LocalAPI) SubmitBooking(ctx context.Context, req booking.SubmitRequest) (*booking.Confirmation, error) {
	conf, _, err := a.service.Submit(ctx, req)
	return conf, err
}

func (a *LocalAPI) GetBookingByReference(ctx context.Context, reference string) (*booking.Confirmation, error) {
	return a.service.GetByReference(ctx, reference)
}
