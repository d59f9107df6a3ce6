package livestore

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PGNotifySource reads changes from PostgreSQL LISTEN/NOTIFY.
type PGNotifySource struct {
	dsn     string
	channel string
	logger  *zap.Logger

	MinReconnect time.Duration
	MaxReconnect time.Duration
	PingInterval time.Duration
}

// NewPGNotifySource listens on ChangeChannel using dsn.
func NewPGNotifySource(dsn string, logger *zap.Logger) *PGNotifySource {
	return &PGNotifySource{
		dsn:          dsn,
		channel:      ChangeChannel,
		logger:       logger,
		MinReconnect: 10 * time.Second,
		MaxReconnect: time.Minute,
		PingInterval: 90 * time.Second,
	}
}

// Start implements Source.
func (s *PGNotifySource) Start(ctx context.Context, emit func(Change)) error {
	listener := pq.NewListener(s.dsn, s.MinReconnect, s.MaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn("Postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	defer listener.Close()

	if err := listener.Listen(s.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.channel, err)
	}
	s.logger.Info("Postgres change feed started", zap.String("channel", s.channel))

	ticker := time.NewTicker(s.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			s.handle(n, emit)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					s.logger.Warn("Postgres listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

func (s *PGNotifySource) handle(n *pq.Notification, emit func(Change)) {
	if n == nil {
		// connection was re-established; notifications may have been lost
		emit(Change{})
		return
	}
	c, err := ParseChange([]byte(n.Extra))
	if err != nil {
		s.logger.Warn("Malformed change notification",
			zap.String("payload", n.Extra),
			zap.Error(err),
		)
		emit(Change{})
		return
	}
	emit(c)
}
