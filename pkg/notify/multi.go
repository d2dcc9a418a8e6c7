package notify

import (
	"context"
	"errors"
)

// Multi delivers to every display and joins their errors. A failing
// display does not stop delivery to the others.
type Multi []Display

func (m Multi) SetBadge(ctx context.Context, b Badge) error {
	var errs []error
	for _, d := range m {
		if err := d.SetBadge(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
