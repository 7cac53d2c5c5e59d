package errx

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps session store errors to AppError. Connectivity problems and
// timeouts become 503 so callers can tell them apart from command failures.
func WrapRedis(err error) error {
	var netErr net.Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	case errors.Is(err, redis.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return New(err, http.StatusServiceUnavailable, RedisUnavailableMessage)
	default:
		return New(err, http.StatusBadGateway, RedisErrorMessage)
	}
}
