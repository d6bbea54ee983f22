package listener

import (
	"context"
	"errors"
	"net"

	"github.com/yndnr/webhost-go/internal/core/domain"
)

// Bound is a planned listener with its open socket.
type Bound struct {
	Spec
	net.Listener
}

// Bind opens every planned listener in order. If one fails, the ones
// already opened are closed and ErrListenerBind is returned.
func (p *Plan) Bind(ctx context.Context) ([]Bound, error) {
	var lc net.ListenConfig

	bound := make([]Bound, 0, len(p.Specs))
	for _, spec := range p.Specs {
		ln, err := lc.Listen(ctx, "tcp", spec.Address)
		if err != nil {
			closeErr := CloseAll(bound)
			return nil, domain.ErrListenerBind.
				WithDetails(spec.String()).
				WithCause(errors.Join(err, closeErr))
		}
		bound = append(bound, Bound{Spec: spec, Listener: ln})
	}
	return bound, nil
}

// CloseAll closes every listener and returns the joined errors.
func CloseAll(bound []Bound) error {
	var errs []error
	for _, b := range bound {
		if err := b.Listener.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
