package jsonrpc

// Message pairs an endpoint selector with the reply channel of one call. It is
// created by the router, moved into exactly one destination mailbox and
// consumed once.
type Message[S any, E any] struct {
	Endpoint S
	Resp     *Responder[E]
}

// PortalRequest is addressed to the general overlay actor. Its endpoints are
// heterogeneous, so the original params travel with it.
type PortalRequest struct {
	Message[PortalEndpoint, error]
	Params Params
}

// HistoryRequest is addressed to the history network actor.
type HistoryRequest = Message[HistoryEndpoint, string]

// StateRequest is addressed to the state network actor.
type StateRequest = Message[StateEndpoint, string]

// NewPortalRequest builds a general overlay message and returns the receiving
// half of its reply channel.
func NewPortalRequest(endpoint PortalEndpoint, params Params) (PortalRequest, *Receiver[error]) {
	resp, recv := NewResponder[error]()
	return PortalRequest{
		Message: Message[PortalEndpoint, error]{Endpoint: endpoint, Resp: resp},
		Params:  params,
	}, recv
}

// NewHistoryRequest builds a history network message.
func NewHistoryRequest(endpoint HistoryEndpoint) (HistoryRequest, *Receiver[string]) {
	resp, recv := NewResponder[string]()
	return HistoryRequest{Endpoint: endpoint, Resp: resp}, recv
}

// NewStateRequest builds a state network message.
func NewStateRequest(endpoint StateEndpoint) (StateRequest, *Receiver[string]) {
	resp, recv := NewResponder[string]()
	return StateRequest{Endpoint: endpoint, Resp: resp}, recv
}

// Clone copies the message. The copy replies into the same receiver.
func (r PortalRequest) Clone() PortalRequest {
	return PortalRequest{
		Message: Message[PortalEndpoint, error]{Endpoint: r.Endpoint, Resp: r.Resp},
		Params:  r.Params.Clone(),
	}
}
