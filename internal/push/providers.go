package push

import "context"

// StaticProvider serves a token fixed at startup, typically from config or
// the environment. Permission is granted iff a token is configured.
type StaticProvider struct {
	token    string
	messages *ChannelProvider
}

// NewStaticProvider creates a StaticProvider. Foreground messages are read
// from messages, which may be nil.
func NewStaticProvider(token string, messages *ChannelProvider) *StaticProvider {
	return &StaticProvider{token: token, messages: messages}
}

func (p *StaticProvider) RequestPermission(context.Context) (bool, error) {
	return p.token != "", nil
}

func (p *StaticProvider) Token(context.Context) (string, error) {
	return p.token, nil
}

func (p *StaticProvider) NextMessage(ctx context.Context) (Message, error) {
	if p.messages == nil {
		<-ctx.Done()
		return Message{}, ctx.Err()
	}
	return p.messages.NextMessage(ctx)
}

// ChannelProvider delivers in-process messages. It grants permission and
// hands out the configured token.
type ChannelProvider struct {
	token string
	ch    chan Message
}

// NewChannelProvider creates a provider with a buffered message channel.
func NewChannelProvider(token string, buffer int) *ChannelProvider {
	return &ChannelProvider{token: token, ch: make(chan Message, buffer)}
}

// Send queues a message for the next NextMessage call. It blocks when the
// buffer is full until ctx ends.
func (p *ChannelProvider) Send(ctx context.Context, m Message) error {
	select {
	case p.ch <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ChannelProvider) RequestPermission(context.Context) (bool, error) {
	return true, nil
}

func (p *ChannelProvider) Token(context.Context) (string, error) {
	return p.token, nil
}

func (p *ChannelProvider) NextMessage(ctx context.Context) (Message, error) {
	select {
	case m := <-p.ch:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
