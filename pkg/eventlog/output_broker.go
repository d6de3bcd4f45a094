package eventlog

// Publisher is the subset of the message-broker collaborator (spec.md §1)
// the event log needs: the ability to publish one Record to a routing
// key/topic. pkg/broker.Client implements this.
type Publisher interface {
	PublishEvent(topic string, rec Record) error
}

// BrokerOutput republishes Records onto the message broker on a fixed
// routing key, per spec.md §4.G.
type BrokerOutput struct {
	pub   Publisher
	topic string
}

func NewBrokerOutput(pub Publisher, topic string) *BrokerOutput {
	return &BrokerOutput{pub: pub, topic: topic}
}

func (b *BrokerOutput) Emit(rec Record) error {
	return b.pub.PublishEvent(b.topic, rec)
}
