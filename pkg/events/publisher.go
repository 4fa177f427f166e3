package events

import "context"

// PeerPublisher is the interface for publishing peer discovery events.
type PeerPublisher interface {
	PublishPeersDiscovered(ctx context.Context, event *PeersDiscoveredEvent) error
}

// NoOpPublisher is a PeerPublisher that does nothing (for nodes running without COMMS).
type NoOpPublisher struct{}

// PublishPeersDiscovered is a no-op.
func (p *NoOpPublisher) PublishPeersDiscovered(_ context.Context, _ *PeersDiscoveredEvent) error {
	return nil
}

// CallbackPublisher is a PeerPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *PeersDiscoveredEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *PeersDiscoveredEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishPeersDiscovered calls the callback.
func (p *CallbackPublisher) PublishPeersDiscovered(ctx context.Context, event *PeersDiscoveredEvent) error {
	return p.callback(ctx, event)
}
