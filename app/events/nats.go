package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

type natsConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes each event on <prefix>.<event type>.
type NATSPublisher struct {
	conn          natsConn
	subjectPrefix string
}

func DialNATS(url, subjectPrefix string) (*NATSPublisher, error) {
	logger := logrus.WithField("module", "events")
	conn, err := nats.Connect(url,
		nats.Name("course-shop-bot"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	return newNATSPublisher(conn, subjectPrefix), nil
}

func newNATSPublisher(conn natsConn, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{
		conn:          conn,
		subjectPrefix: strings.TrimSuffix(strings.TrimSpace(subjectPrefix), "."),
	}
}

func (p *NATSPublisher) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return errors.New("event is nil")
	}
	body, err := event.Marshal()
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject(event.Type), body); err != nil {
		return err
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSPublisher) subject(eventType string) string {
	if p.subjectPrefix == "" {
		return eventType
	}
	return p.subjectPrefix + "." + eventType
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
