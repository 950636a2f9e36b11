package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

type Reader interface {
	GetFurniture(ctx context.Context, id int64) (*domain.Furniture, error)
}

// Lookup resolves catalog items for order recording. Callers treat every
// error as "no name available"; the breaker keeps a failing store from adding
// latency to confirmations.
type Lookup struct {
	reader  Reader
	breaker *gobreaker.CircuitBreaker[*domain.Furniture]
	timeout time.Duration
}

func NewLookup(reader Reader, timeout time.Duration, logger *slog.Logger) *Lookup {
	return &Lookup{
		reader: reader,
		breaker: circuitbreaker.New[*domain.Furniture](circuitbreaker.Settings{
			Name:        "catalog-lookup",
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
			Ignore: func(err error) bool {
				return errors.Is(err, ErrFurnitureNotFound)
			},
			Logger: logger,
		}),
		timeout: timeout,
	}
}

func (l *Lookup) Find(ctx context.Context, id int64) (*domain.Furniture, error) {
	return l.breaker.Execute(func() (*domain.Furniture, error) {
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}
		return l.reader.GetFurniture(ctx, id)
	})
}
