package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/portal-node/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalSubject overrides the global discovery subject (e.g. from PEER_EVENT_SUBJECT).
	GlobalSubject string
}

// CommsPublisher publishes peer discovery events to COMMS subjects.
type CommsPublisher struct {
	nc            *comms.Conn
	globalSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	globalSubject := commsutil.SubjectPeersDiscovered
	if opts != nil && opts.GlobalSubject != "" {
		globalSubject = opts.GlobalSubject
	}
	return &CommsPublisher{nc: nc, globalSubject: globalSubject}
}

// HeaderSubnetwork carries the event's subnetwork so subscribers on the
// global subject can filter without decoding the body.
const HeaderSubnetwork = "Portal-Subnetwork"

// PublishPeersDiscovered publishes the event to the per-subnetwork subject
// and then the global subject. The first failed publish is returned.
func (p *CommsPublisher) PublishPeersDiscovered(_ context.Context, event *PeersDiscoveredEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	for _, subject := range []string{commsutil.BuildPeersSubject(event.Subnetwork), p.globalSubject} {
		msg := comms.NewMsg(subject)
		msg.Data = data
		msg.Header.Set(HeaderSubnetwork, event.Subnetwork)
		if err := p.nc.PublishMsg(msg); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
			return fmt.Errorf("%s - publish %s: %w", commsPublisherLogPrefix, subject, err)
		}
	}

	slog.Debug(fmt.Sprintf("%s - Published %d peers for %s", commsPublisherLogPrefix, event.Added, event.Subnetwork))
	return nil
}
